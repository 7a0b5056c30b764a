package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// PollingTrigger claims the oldest pending job on a fixed delay. Execution
// time is not subtracted from the next wait.
type PollingTrigger struct {
	queue    string
	interval time.Duration
	drain    bool
	claimer  Claimer
	logger   *slog.Logger
}

// NewPollingTrigger creates a poller for queue. With drain set, every tick
// keeps claiming until the queue is empty before waiting again.
func NewPollingTrigger(queue string, interval time.Duration, drain bool, claimer Claimer, logger *slog.Logger) *PollingTrigger {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingTrigger{
		queue:    queue,
		interval: interval,
		drain:    drain,
		claimer:  claimer,
		logger:   logger,
	}
}

// Run polls until ctx is done or the store becomes unavailable
func (t *PollingTrigger) Run(ctx context.Context, dispatch Dispatch) error {
	t.logger.Info("Polling for jobs",
		slog.String("queue", t.queue),
		slog.Duration("interval", t.interval),
		slog.Bool("drain", t.drain),
	)

	for {
		if err := sleepContext(ctx, t.interval); err != nil {
			t.logger.Info("Poller stopped - context canceled", slog.String("queue", t.queue))
			return nil
		}

		if err := t.tick(ctx, dispatch); err != nil {
			return err
		}
	}
}

func (t *PollingTrigger) tick(ctx context.Context, dispatch Dispatch) error {
	for ctx.Err() == nil {
		job, err := t.claimer.ClaimNext(ctx, t.queue)
		if err != nil {
			if errors.Is(err, domain.ErrNoPendingJob) {
				return nil
			}
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return err
			}
			t.logger.Error("Failed to claim job",
				slog.String("queue", t.queue),
				slog.String("error", err.Error()),
			)
			return nil
		}

		if err := dispatch(ctx, job); err != nil {
			return err
		}

		if !t.drain {
			return nil
		}
	}
	return nil
}
