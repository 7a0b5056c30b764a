package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

type CreateJobRequest struct {
	Queue string         `json:"queue" binding:"required"`
	Name  string         `json:"name" binding:"required"`
	Args  map[string]any `json:"args"`
}

type ListJobsRequest struct {
	Queue    string `form:"queue"`
	Name     string `form:"name"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID         int64           `json:"id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"created_at"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	DurationMS *int64          `json:"duration_ms,omitempty"`
}

// NewJobDTO renders a job row for the API
func NewJobDTO(job *domain.Job) JobDTO {
	out := JobDTO{
		ID:        job.ID,
		Queue:     job.Queue,
		Name:      job.Name,
		Args:      json.RawMessage(job.Args),
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339Nano),
	}
	if len(out.Args) == 0 {
		out.Args = json.RawMessage(`{}`)
	}
	if job.StartedAt != nil {
		out.StartedAt = job.StartedAt.Format(time.RFC3339Nano)
	}
	if job.FinishedAt != nil {
		out.FinishedAt = job.FinishedAt.Format(time.RFC3339Nano)
		ms := job.Elapsed().Milliseconds()
		out.DurationMS = &ms
	}
	return out
}
