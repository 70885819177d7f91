package worker

import (
	"context"
	"sync"

	"github.com/antosikiss/replicator/pkg/metrics"
)

// Limiter bounds how many task bodies execute concurrently. Callers beyond
// the cap queue in FIFO order; each released slot wakes exactly one waiter,
// regardless of whether the finishing task succeeded.
type Limiter struct {
	mu      sync.Mutex
	max     int
	running int
	waiters []chan struct{}
}

func NewLimiter(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{max: max}
}

// Run executes fn once a slot is available. The slot is always released,
// also when fn returns an error. A context canceled while waiting returns
// ctx.Err() without ever occupying a slot.
func (l *Limiter) Run(ctx context.Context, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

// Running returns the number of currently executing tasks.
func (l *Limiter) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// QueueLen returns the number of callers waiting for a slot.
func (l *Limiter) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.running < l.max {
		l.running++
		l.publish()
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.publish()
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == ready {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.publish()
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The slot was handed over concurrently with cancellation;
		// give it back so no capacity leaks.
		l.release()
		return ctx.Err()
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) > 0 {
		// Hand the slot to the oldest waiter; running stays unchanged.
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(ready)
	} else {
		l.running--
	}
	l.publish()
}

// publish mirrors the counters into prometheus. Caller holds the lock.
func (l *Limiter) publish() {
	metrics.UpdateJobsRunningMetric(l.running)
	metrics.UpdateJobsQueuedMetric(len(l.waiters))
}
