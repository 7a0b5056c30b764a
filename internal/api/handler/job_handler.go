package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/pgjobqueue/internal/api/dto"
	"github.com/cuongbtq/pgjobqueue/internal/api/storage"
	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// Inserts a pending job and, when a broker is configured, publishes its id
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	args := types.JSONText(`{}`)
	if req.Args != nil {
		raw, err := json.Marshal(req.Args)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid args",
			})
			return
		}
		args = raw
	}

	job, err := h.repo.CreateJob(c.Request.Context(), req.Queue, req.Name, args)
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Job enqueued",
		slog.Int64("id", job.ID),
		slog.String("queue", job.Queue),
		slog.String("job", job.Name),
	)

	// the row is already committed; a failed publish only delays pickup
	if h.publisher != nil {
		if err := h.publisher.PublishJobID(c.Request.Context(), job.Queue, job.ID); err != nil {
			h.logger.Error("Failed to publish job id",
				slog.Int64("id", job.ID),
				slog.String("queue", job.Queue),
				slog.String("error", err.Error()),
			)
		}
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return
	}

	job, err := h.repo.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional queue, name and status filters.
// status=err matches every failed job.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	switch req.Status {
	case "", domain.StatusPending, domain.StatusStarted, domain.StatusOK, storage.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "status must be one of pending, started, ok, err",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.repo.ListJobs(c.Request.Context(), storage.JobFilter{
		Queue:    req.Queue,
		Name:     req.Name,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}
