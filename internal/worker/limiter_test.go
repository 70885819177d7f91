package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLimiterCapAndFIFO(t *testing.T) {
	limiter := NewLimiter(2)
	ctx := context.Background()

	gates := make([]chan struct{}, 5)
	for i := range gates {
		gates[i] = make(chan struct{})
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	start := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Run(ctx, func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				<-gates[i]
				return nil
			})
		}()
	}

	started := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(order)
	}

	// Fill both slots, then enqueue three waiters one at a time so the
	// FIFO order is deterministic.
	start(0)
	start(1)
	waitFor(t, func() bool { return limiter.Running() == 2 })

	start(2)
	waitFor(t, func() bool { return limiter.QueueLen() == 1 })
	start(3)
	waitFor(t, func() bool { return limiter.QueueLen() == 2 })
	start(4)
	waitFor(t, func() bool { return limiter.QueueLen() == 3 })

	assert.Equal(t, 2, started(), "only maxConcurrent tasks may run")

	// Releasing one slot admits exactly one waiter, the oldest.
	close(gates[0])
	waitFor(t, func() bool { return started() == 3 })
	assert.Equal(t, 2, order[2])
	assert.Equal(t, 2, limiter.Running())
	assert.Equal(t, 2, limiter.QueueLen())

	close(gates[1])
	waitFor(t, func() bool { return started() == 4 })
	assert.Equal(t, 3, order[3])

	close(gates[2])
	waitFor(t, func() bool { return started() == 5 })
	assert.Equal(t, 4, order[4])

	close(gates[3])
	close(gates[4])
	wg.Wait()

	assert.Equal(t, 0, limiter.Running())
	assert.Equal(t, 0, limiter.QueueLen())
}

func TestLimiterReleasesSlotOnError(t *testing.T) {
	limiter := NewLimiter(1)
	ctx := context.Background()

	err := limiter.Run(ctx, func() error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	// The failed task must have released its slot.
	done := false
	err = limiter.Run(ctx, func() error { done = true; return nil })
	require.NoError(t, err)
	assert.True(t, done)
}

func TestLimiterCanceledWhileQueued(t *testing.T) {
	limiter := NewLimiter(1)

	gate := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = limiter.Run(context.Background(), func() error {
			<-gate
			return nil
		})
	}()
	waitFor(t, func() bool { return limiter.Running() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- limiter.Run(ctx, func() error { return nil })
	}()
	waitFor(t, func() bool { return limiter.QueueLen() == 1 })

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, limiter.QueueLen())

	close(gate)
	wg.Wait()
	assert.Equal(t, 0, limiter.Running())
}
