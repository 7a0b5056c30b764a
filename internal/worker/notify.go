package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// NotificationTrigger claims jobs as their ids arrive on a notification
// source. Each claimed job is executed before the next notification is read.
type NotificationTrigger struct {
	queue      string
	claimer    Claimer
	source     NotificationSource
	logger     *slog.Logger
	sweepEvery time.Duration
}

// NewNotificationTrigger creates a listener-driven trigger for queue
func NewNotificationTrigger(queue string, claimer Claimer, source NotificationSource, logger *slog.Logger) *NotificationTrigger {
	return &NotificationTrigger{
		queue:   queue,
		claimer: claimer,
		source:  source,
		logger:  logger,
	}
}

// WithSweepInterval also sweeps the queue every d. Used when a producer may
// commit a job without managing to announce it.
func (t *NotificationTrigger) WithSweepInterval(d time.Duration) *NotificationTrigger {
	t.sweepEvery = d
	return t
}

// Run subscribes, claims the backlog already pending, then listens until ctx
// is done or the source closes. The source is always closed on return.
func (t *NotificationTrigger) Run(ctx context.Context, dispatch Dispatch) error {
	defer func() {
		if cerr := t.source.Close(); cerr != nil {
			t.logger.Warn("Failed to close notification source",
				slog.String("queue", t.queue),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	notes, err := t.source.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	// jobs queued before the subscription existed never produce a notification
	if err := t.sweep(ctx, dispatch); err != nil {
		return err
	}

	t.logger.Info("Waiting for job notifications",
		slog.String("queue", t.queue),
		slog.Duration("sweep_interval", t.sweepEvery),
	)

	var sweepTick <-chan time.Time
	if t.sweepEvery > 0 {
		ticker := time.NewTicker(t.sweepEvery)
		defer ticker.Stop()
		sweepTick = ticker.C
	}

	for {
		select {
		case <-sweepTick:
			if err := t.sweep(ctx, dispatch); err != nil {
				return err
			}

		case <-ctx.Done():
			t.logger.Info("Listener stopped - context canceled", slog.String("queue", t.queue))
			return nil

		case note, ok := <-notes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, domain.ErrListenerClosed)
			}

			if err := t.handle(ctx, note, dispatch); err != nil {
				return err
			}
		}
	}
}

func (t *NotificationTrigger) handle(ctx context.Context, note Notification, dispatch Dispatch) error {
	if note.Resync {
		t.logger.Info("Listener reconnected, sweeping queue", slog.String("queue", t.queue))
		err := t.sweep(ctx, dispatch)
		note.Ack(err == nil)
		return err
	}

	jobID, err := strconv.ParseInt(note.JobID, 10, 64)
	if err != nil {
		t.logger.Warn("Ignoring notification with invalid job id",
			slog.String("queue", t.queue),
			slog.String("payload", note.JobID),
		)
		note.Ack(true)
		return nil
	}

	job, err := t.claimer.ClaimByID(ctx, t.queue, jobID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobAlreadyClaimed):
		// another queue's job, a duplicate, or a claim lost to a racing trigger
		t.logger.Debug("Notification skipped, job not claimable",
			slog.String("queue", t.queue),
			slog.Int64("job_id", jobID),
		)
		note.Ack(true)
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		note.Ack(false)
		return err
	default:
		t.logger.Error("Failed to claim notified job",
			slog.String("queue", t.queue),
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
		note.Ack(false)
		return nil
	}

	err = dispatch(ctx, job)
	note.Ack(true)
	return err
}

// sweep claims and dispatches every pending job of the queue
func (t *NotificationTrigger) sweep(ctx context.Context, dispatch Dispatch) error {
	for ctx.Err() == nil {
		job, err := t.claimer.ClaimNext(ctx, t.queue)
		if err != nil {
			if errors.Is(err, domain.ErrNoPendingJob) {
				return nil
			}
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return err
			}
			t.logger.Error("Failed to claim job during sweep",
				slog.String("queue", t.queue),
				slog.String("error", err.Error()),
			)
			return nil
		}

		if err := dispatch(ctx, job); err != nil {
			return err
		}
	}
	return nil
}
