package worker

import (
	"sync"
	"time"

	"github.com/antosikiss/replicator/pkg/metrics"
	"go.uber.org/zap"
)

// ProgressTracker aggregates batch counters for operator visibility. It has
// no effect on the pipeline and never blocks or fails.
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	processed int
	success   int
	failed    int
	startTime time.Time
}

func NewTracker() *ProgressTracker {
	return &ProgressTracker{startTime: time.Now()}
}

func (t *ProgressTracker) SetTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = n
}

func (t *ProgressTracker) Increment(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	if success {
		t.success++
		metrics.IncreaseJobsTotalMetric("success")
	} else {
		t.failed++
		metrics.IncreaseJobsTotalMetric("failure")
	}
}

// Counts returns total, processed, success and failed.
func (t *ProgressTracker) Counts() (int, int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.processed, t.success, t.failed
}

// ShowProgress logs the running rate and estimated time to completion.
func (t *ProgressTracker) ShowProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()
	if elapsed <= 0 || t.processed == 0 {
		zap.S().Named("tracker").Infof("progress: %d/%d", t.processed, t.total)
		return
	}
	rate := float64(t.processed) / elapsed
	eta := float64(t.total-t.processed) / rate

	zap.S().Named("tracker").Infof("progress: %d/%d (ok %d, failed %d) rate %.2f/s eta %.0fs",
		t.processed, t.total, t.success, t.failed, rate, eta)
}

// ShowFinalSummary logs the batch outcome.
func (t *ProgressTracker) ShowFinalSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Round(time.Second)
	zap.S().Named("tracker").Infof("batch finished: processed %d | success %d | failed %d | elapsed %s",
		t.processed, t.success, t.failed, elapsed)
}
