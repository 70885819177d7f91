package worker

import (
	"sync"
	"time"

	"github.com/antosikiss/replicator/pkg/metrics"
)

const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 60 * time.Second
)

// CircuitBreaker pauses new job starts after repeated failures. It is
// global, not per provider: one provider's outage throttles all starts.
// The breaker self-heals after the cooldown window; a single success fully
// resets the failure count.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	failures    int
	lastFailure time.Time

	now func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now
	return b
}

// CanProceed reports whether a new job may start. Once the cooldown has
// elapsed since the last failure the count resets and jobs flow again.
func (b *CircuitBreaker) CanProceed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		metrics.UpdateBreakerOpenMetric(false)
		return true
	}
	if b.now().Sub(b.lastFailure) > b.cooldown {
		b.failures = 0
		metrics.UpdateBreakerOpenMetric(false)
		return true
	}
	metrics.UpdateBreakerOpenMetric(true)
	return false
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	metrics.UpdateBreakerOpenMetric(false)
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
