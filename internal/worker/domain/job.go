package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Args is the decoded job payload handed to handlers verbatim.
type Args map[string]any

// Job represents a row of the jobs table
type Job struct {
	ID         int64          `db:"id"`
	Queue      string         `db:"queue"`
	Name       string         `db:"name"`
	Args       types.JSONText `db:"args"`
	Status     string         `db:"status"`
	CreatedAt  time.Time      `db:"created_at"`
	StartedAt  *time.Time     `db:"started_at"`
	FinishedAt *time.Time     `db:"finished_at"`
}

// DecodeArgs unmarshals the JSONB payload. An empty payload decodes to empty Args.
func (j *Job) DecodeArgs() (Args, error) {
	args := Args{}
	if len(j.Args) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(j.Args, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return args, nil
}

// Elapsed returns finished_at - started_at, or zero while the job is unfinished.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
