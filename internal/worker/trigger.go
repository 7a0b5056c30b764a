package worker

import (
	"context"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// Claimer is the claiming half of the job store
type Claimer interface {
	ClaimNext(ctx context.Context, queue string) (*domain.Job, error)
	ClaimByID(ctx context.Context, queue string, jobID int64) (*domain.Job, error)
}

// Store is everything a worker needs from the job store
type Store interface {
	Claimer
	Finisher
}

// Dispatch executes a claimed job and paces the loop afterwards. It only
// returns an error the loop cannot survive.
type Dispatch func(ctx context.Context, job *domain.Job) error

// Trigger decides when the worker looks for work. Run blocks until ctx is
// done (returning nil) or the trigger can no longer operate.
type Trigger interface {
	Run(ctx context.Context, dispatch Dispatch) error
}
