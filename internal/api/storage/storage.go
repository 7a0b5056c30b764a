package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const jobColumns = `id, queue, name, args, status, created_at, started_at, finished_at`

// StatusFailed filters every job whose status starts with "err: "
const StatusFailed = "err"

// DB is satisfied by *postgresql.Client
type DB interface {
	DB() *sqlx.DB
}

// Storage is the producer side of the jobs table: it inserts pending jobs
// and reads them back. It never claims or finishes a job.
type Storage struct {
	db DB
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateJob inserts a pending job. The jobs insert trigger announces its id
// on the notification channel when the transaction commits.
func (s *Storage) CreateJob(ctx context.Context, queue, name string, args types.JSONText) (*domain.Job, error) {
	if len(args) == 0 {
		args = types.JSONText(`{}`)
	}

	query := `
		INSERT INTO jobs (queue, name, args, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.DB().GetContext(ctx, &job, query, queue, name, args, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return &job, nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := s.db.DB().GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	Queue    string
	Name     string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListJobs returns up to PageSize+1 jobs, newest first, so callers can tell
// whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
        SELECT ` + jobColumns + `
        FROM jobs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, filter.Queue)
		argIdx++
	}

	if filter.Name != "" {
		query += fmt.Sprintf(" AND name = $%d", argIdx)
		args = append(args, filter.Name)
		argIdx++
	}

	switch filter.Status {
	case "":
	case StatusFailed:
		query += fmt.Sprintf(" AND status LIKE $%d", argIdx)
		args = append(args, domain.StatusErrPrefix+"%")
		argIdx++
	default:
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.DB().SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
