package batch

import (
	"context"
	"sync"
	"time"

	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/pipeline"
	"github.com/antosikiss/replicator/internal/provider"
	"github.com/antosikiss/replicator/internal/store"
	"github.com/antosikiss/replicator/internal/worker"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// Runner discovers pending records and pushes each one through the pipeline
// with bounded concurrency. The breaker and limiter outlive individual
// batches so repeated invocations share failure state.
type Runner struct {
	cfg     *config.Config
	store   store.Store
	breaker *worker.CircuitBreaker
	limiter *worker.Limiter
}

func NewRunner(cfg *config.Config, s store.Store) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   s,
		breaker: worker.NewBreaker(worker.DefaultBreakerThreshold, worker.DefaultBreakerCooldown),
		limiter: worker.NewLimiter(cfg.Service.MaxConcurrent),
	}
}

func (r *Runner) newPipeline(ctx context.Context, tracker *worker.ProgressTracker) (*pipeline.Pipeline, error) {
	settings, err := r.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	adapters, err := provider.New(r.cfg, settings)
	if err != nil {
		return nil, err
	}
	return pipeline.New(r.store, adapters, r.breaker, tracker, settings), nil
}

// RunBatch performs one batch invocation: a single listing query, then all
// discovered records dispatched through the limiter. Job errors stay with
// their job; only listing and configuration errors are fatal.
func (r *Runner) RunBatch(ctx context.Context) error {
	log := zap.S().Named("batch")

	tracker := worker.NewTracker()
	pipe, err := r.newPipeline(ctx, tracker)
	if err != nil {
		return err
	}

	records, err := r.store.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		log.Info("no pending jobs")
		return nil
	}

	log.Infof("found %d pending jobs", len(records))
	tracker.SetTotal(len(records))

	var wg sync.WaitGroup
	for i := range records {
		record := records[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.limiter.Run(ctx, func() error {
				_, err := pipe.Process(ctx, &record)
				return err
			})
		}()
	}
	wg.Wait()

	tracker.ShowFinalSummary()
	return nil
}

// ProcessRecord runs the pipeline for a single record, used by the HTTP
// trigger endpoint.
func (r *Runner) ProcessRecord(ctx context.Context, id string) (pipeline.Result, error) {
	tracker := worker.NewTracker()
	tracker.SetTotal(1)

	pipe, err := r.newPipeline(ctx, tracker)
	if err != nil {
		return pipeline.ResultFailed, err
	}

	record, err := r.store.Get(ctx, id)
	if err != nil {
		return pipeline.ResultFailed, err
	}
	return pipe.Process(ctx, record)
}

// Watch invokes RunBatch on a jittered interval until the context is done.
// A failed run is logged and the loop continues; records added mid-batch
// are picked up on the next tick.
func (r *Runner) Watch(ctx context.Context, interval time.Duration) {
	log := zap.S().Named("batch")

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20})
	defer ticker.Stop()

	for {
		if err := r.RunBatch(ctx); err != nil {
			log.Errorf("batch run failed: %s", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
