package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// Finisher persists the terminal status of a claimed job
type Finisher interface {
	Finish(ctx context.Context, jobID int64, status string) (time.Duration, error)
}

// Result is the outcome of executing one job
type Result struct {
	Status  string
	Elapsed time.Duration
}

// Executor runs claimed jobs against a definition's handlers. It is the
// only writer of a job's status after the claim.
type Executor struct {
	def    Definition
	store  Finisher
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates an executor for def
func NewExecutor(def Definition, store Finisher, logger *slog.Logger) *Executor {
	return &Executor{
		def:    def,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs the handler for job and records its status. Handler failures
// never surface as errors; only a failure to persist the status does.
// Result.Elapsed is finished_at - started_at when the store reports it,
// otherwise the locally measured duration.
func (e *Executor) Execute(ctx context.Context, job *domain.Job) (Result, error) {
	start := e.now()
	status := e.run(ctx, job)
	measured := e.now().Sub(start)

	elapsed, err := e.store.Finish(ctx, job.ID, status)
	if err != nil {
		e.logger.Error("Failed to record job status",
			slog.String("queue", e.def.Queue),
			slog.String("job", job.Name),
			slog.Int64("id", job.ID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		return Result{Status: status, Elapsed: measured}, err
	}

	e.logger.Info("Job finished",
		slog.String("queue", e.def.Queue),
		slog.String("job", job.Name),
		slog.Int64("id", job.ID),
		slog.String("status", status),
		slog.Duration("duration", elapsed),
	)

	return Result{Status: status, Elapsed: elapsed}, nil
}

// run resolves and invokes the handler, converting every failure to an err: status
func (e *Executor) run(ctx context.Context, job *domain.Job) (status string) {
	handler, ok := e.def.Lookup(job.Name)
	if !ok {
		return domain.ErrStatus("unknown job " + job.Name)
	}

	args, err := job.DecodeArgs()
	if err != nil {
		return domain.ErrStatus(err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Job handler panicked",
				slog.String("queue", e.def.Queue),
				slog.String("job", job.Name),
				slog.Int64("id", job.ID),
				slog.Any("panic", p),
			)
			status = domain.ErrStatus(fmt.Sprintf("panic: %v", p))
		}
	}()

	out, err := handler.Handle(ctx, args)
	if err != nil {
		return domain.ErrStatus(err.Error())
	}

	switch out {
	case "":
		return domain.StatusOK
	case domain.StatusPending, domain.StatusStarted:
		return domain.ErrStatus("invalid status " + out)
	}
	return out
}
