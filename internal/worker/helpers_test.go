package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/jmoiron/sqlx/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(id int64, queue, name, args string) *domain.Job {
	return &domain.Job{
		ID:        id,
		Queue:     queue,
		Name:      name,
		Args:      types.JSONText(args),
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
}

// fakeStore is an in-memory job table with the same claim rules as the
// Postgres store: a job is claimable once, finishable once.
type fakeStore struct {
	mu       sync.Mutex
	jobs     []*domain.Job
	statuses map[int64]string

	claimErr      error
	claimByIDErr  error
	finishErr     error
	finishElapsed time.Duration
}

func newFakeStore(jobs ...*domain.Job) *fakeStore {
	s := &fakeStore{statuses: map[int64]string{}}
	for _, j := range jobs {
		s.jobs = append(s.jobs, j)
		s.statuses[j.ID] = domain.StatusPending
	}
	return s
}

// add inserts pending jobs, as a producer would after the worker started
func (s *fakeStore) add(jobs ...*domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.jobs = append(s.jobs, j)
		s.statuses[j.ID] = domain.StatusPending
	}
}

func (s *fakeStore) claim(job *domain.Job) *domain.Job {
	now := time.Now()
	s.statuses[job.ID] = domain.StatusStarted
	out := *job
	out.Status = domain.StatusStarted
	out.StartedAt = &now
	return &out
}

func (s *fakeStore) ClaimNext(_ context.Context, queue string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}
	for _, j := range s.jobs {
		if j.Queue == queue && s.statuses[j.ID] == domain.StatusPending {
			return s.claim(j), nil
		}
	}
	return nil, domain.ErrNoPendingJob
}

func (s *fakeStore) ClaimByID(_ context.Context, queue string, jobID int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if s.claimByIDErr != nil {
		return nil, s.claimByIDErr
	}
	for _, j := range s.jobs {
		if j.ID == jobID && j.Queue == queue && s.statuses[j.ID] == domain.StatusPending {
			return s.claim(j), nil
		}
	}
	return nil, domain.ErrJobAlreadyClaimed
}

func (s *fakeStore) Finish(_ context.Context, jobID int64, status string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishErr != nil {
		return 0, s.finishErr
	}
	if s.statuses[jobID] != domain.StatusStarted {
		return 0, domain.ErrJobNotFound
	}
	s.statuses[jobID] = status
	return s.finishElapsed, nil
}

func (s *fakeStore) Status(jobID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[jobID]
}

// recorder collects dispatched jobs
type recorder struct {
	mu   sync.Mutex
	jobs []int64
	err  error
}

func (r *recorder) dispatch(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.ID)
	return r.err
}

func (r *recorder) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.jobs...)
}

// fakeSource feeds notifications from a test-controlled channel
type fakeSource struct {
	ch         chan Notification
	err        error
	mu         sync.Mutex
	acks       []bool
	subscribed bool
	closed     bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan Notification)}
}

func (s *fakeSource) Notifications(context.Context) (<-chan Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	return s.ch, nil
}

func (s *fakeSource) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) note(jobID string) Notification {
	return Notification{JobID: jobID, ack: s.ack}
}

func (s *fakeSource) resync() Notification {
	return Notification{Resync: true, ack: s.ack}
}

func (s *fakeSource) ack(handled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = append(s.acks, handled)
}

func (s *fakeSource) Acks() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.acks...)
}

func (s *fakeSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
