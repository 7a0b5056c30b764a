package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/cuongbtq/pgjobqueue/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, queue, name, args, status, created_at, started_at, finished_at`

// Connection is the part of postgresql.Client the storage depends on
type Connection interface {
	DB() *sqlx.DB
	Reconnect(ctx context.Context) error
}

// Storage handles all database operations for the worker.
// Each worker process owns one Storage and one connection.
type Storage struct {
	conn   Connection
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(conn Connection, logger *slog.Logger) *Storage {
	return &Storage{
		conn:   conn,
		logger: logger,
	}
}

// withReconnect runs op, and on a broken connection reconnects once and runs it again.
// A second connection failure is reported as domain.ErrStoreUnavailable.
func (s *Storage) withReconnect(ctx context.Context, name string, op func(db *sqlx.DB) error) error {
	err := op(s.conn.DB())
	if err == nil || !postgresql.IsConnectionError(err) {
		return err
	}

	s.logger.Warn("Connection lost, reconnecting",
		slog.String("operation", name),
		slog.String("error", err.Error()),
	)

	if rerr := s.conn.Reconnect(ctx); rerr != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, name, errors.Join(err, rerr))
	}

	err = op(s.conn.DB())
	if err != nil && postgresql.IsConnectionError(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, name, err)
	}
	return err
}

// ClaimNext atomically claims the oldest pending job of queue.
// Returns domain.ErrNoPendingJob when there is nothing to claim.
func (s *Storage) ClaimNext(ctx context.Context, queue string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    started_at = NOW()
		WHERE id = (
			SELECT id
			FROM jobs
			WHERE queue = $2
			  AND started_at IS NULL
			  AND status = $3
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		  AND started_at IS NULL
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.withReconnect(ctx, "claim_next", func(db *sqlx.DB) error {
		return db.GetContext(ctx, &job, query, domain.StatusStarted, queue, domain.StatusPending)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPendingJob
		}
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}

	s.logger.Debug("Job claimed",
		slog.Int64("job_id", job.ID),
		slog.String("queue", job.Queue),
		slog.String("job", job.Name),
	)

	return &job, nil
}

// ClaimByID claims a specific job if it still belongs to queue and is unclaimed.
// Returns domain.ErrJobAlreadyClaimed when another claim won or the id is unknown.
func (s *Storage) ClaimByID(ctx context.Context, queue string, jobID int64) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    started_at = NOW()
		WHERE id = $2
		  AND queue = $3
		  AND started_at IS NULL
		  AND status = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.withReconnect(ctx, "claim_by_id", func(db *sqlx.DB) error {
		return db.GetContext(ctx, &job, query, domain.StatusStarted, jobID, queue, domain.StatusPending)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job %d: %w", jobID, err)
	}

	s.logger.Debug("Job claimed",
		slog.Int64("job_id", job.ID),
		slog.String("queue", job.Queue),
		slog.String("job", job.Name),
	)

	return &job, nil
}

// Finish records the terminal status of a started job and returns
// finished_at - started_at as computed by the database.
func (s *Storage) Finish(ctx context.Context, jobID int64, status string) (time.Duration, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    finished_at = NOW()
		WHERE id = $2
		  AND started_at IS NOT NULL
		  AND finished_at IS NULL
		RETURNING EXTRACT(EPOCH FROM (finished_at - started_at))::float8
	`

	var seconds float64
	err := s.withReconnect(ctx, "finish", func(db *sqlx.DB) error {
		return db.GetContext(ctx, &seconds, query, status, jobID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("finish job %d: %w", jobID, domain.ErrJobNotFound)
		}
		return 0, fmt.Errorf("failed to finish job %d: %w", jobID, err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var job domain.Job
	err := s.withReconnect(ctx, "get_job", func(db *sqlx.DB) error {
		return db.GetContext(ctx, &job, query, jobID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}
