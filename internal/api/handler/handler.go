package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/pgjobqueue/internal/api/storage"
	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/jmoiron/sqlx/types"
)

// JobRepository is the job table as seen by the API
type JobRepository interface {
	CreateJob(ctx context.Context, queue, name string, args types.JSONText) (*domain.Job, error)
	GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
}

// JobPublisher announces new job ids to the broker. Satisfied by *rabbitmq.Client.
type JobPublisher interface {
	PublishJobID(ctx context.Context, routingKey string, jobID int64) error
}

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers.
// Publisher is nil when RabbitMQ is disabled.
type Dependencies struct {
	Logger     *slog.Logger
	Repository JobRepository
	Publisher  JobPublisher
	Health     HealthChecker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	repo      JobRepository
	publisher JobPublisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		repo:      deps.Repository,
		publisher: deps.Publisher,
	}
}
