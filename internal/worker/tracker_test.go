package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounts(t *testing.T) {
	tracker := NewTracker()
	tracker.SetTotal(3)

	tracker.Increment(true)
	tracker.Increment(true)
	tracker.Increment(false)

	total, processed, success, failed := tracker.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, processed)
	assert.Equal(t, 2, success)
	assert.Equal(t, 1, failed)

	// Purely observational, must never panic.
	tracker.ShowProgress()
	tracker.ShowFinalSummary()
}
