package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	now := time.Unix(1000, 0)
	breaker := NewBreaker(5, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
		assert.True(t, breaker.CanProceed())
	}

	breaker.RecordFailure()
	assert.False(t, breaker.CanProceed())
}

func TestBreakerSelfHealsAfterCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	breaker := NewBreaker(5, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	assert.False(t, breaker.CanProceed())

	now = now.Add(59 * time.Second)
	assert.False(t, breaker.CanProceed())

	now = now.Add(2 * time.Second)
	assert.True(t, breaker.CanProceed())
	assert.Equal(t, 0, breaker.Failures(), "cooldown expiry resets the count")
}

func TestBreakerSuccessFullyHeals(t *testing.T) {
	breaker := NewBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
	}
	breaker.RecordSuccess()
	assert.Equal(t, 0, breaker.Failures())

	// No gradual decay: one success resets everything.
	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
	}
	assert.True(t, breaker.CanProceed())
}

func TestBreakerDefaults(t *testing.T) {
	breaker := NewBreaker(0, 0)
	assert.Equal(t, DefaultBreakerThreshold, breaker.threshold)
	assert.Equal(t, DefaultBreakerCooldown, breaker.cooldown)
}
