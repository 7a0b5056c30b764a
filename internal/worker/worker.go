package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// Config holds worker configuration
type Config struct {
	Definition Definition
	Store      Store
	Trigger    Trigger
	Logger     *slog.Logger
	WorkerID   string
}

// Worker is the single-threaded loop for one queue: the trigger yields
// claimed jobs, the executor runs them one at a time and the rate limiter
// paces the next claim.
type Worker struct {
	def      Definition
	trigger  Trigger
	executor *Executor
	limiter  *RateLimiter
	logger   *slog.Logger
	workerID string
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	logger := cfg.Logger.With(
		slog.String("queue", cfg.Definition.Queue),
		slog.String("worker_id", cfg.WorkerID),
	)

	return &Worker{
		def:      cfg.Definition,
		trigger:  cfg.Trigger,
		executor: NewExecutor(cfg.Definition, cfg.Store, logger),
		limiter:  NewRateLimiter(cfg.Definition.MaxJobsPerSecond),
		logger:   logger,
		workerID: cfg.WorkerID,
	}
}

// Run processes jobs until ctx is done (nil) or the store is unavailable
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("trigger", w.def.Trigger),
		slog.Duration("poll_interval", w.def.PollInterval),
		slog.Float64("max_jobs_per_second", w.def.MaxJobsPerSecond),
		slog.Any("jobs", w.def.JobNames()),
	)

	err := w.trigger.Run(ctx, w.dispatch)
	if err != nil {
		w.logger.Error("Worker stopped", slog.String("error", err.Error()))
		return err
	}

	w.logger.Info("Worker stopped")
	return nil
}

func (w *Worker) dispatch(ctx context.Context, job *domain.Job) error {
	result, err := w.executor.Execute(ctx, job)
	if err != nil && errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}

	if delay := w.limiter.Delay(result.Elapsed); delay > 0 {
		w.logger.Debug("Pacing next claim", slog.Duration("delay", delay))
	}
	// a canceled wait is noticed by the trigger loop
	_ = w.limiter.Wait(ctx, result.Elapsed)
	return nil
}
