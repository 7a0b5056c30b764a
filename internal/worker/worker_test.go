package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(def Definition, store *fakeStore) *Worker {
	return NewWorker(&Config{
		Definition: def,
		Store:      store,
		Trigger:    NewPollingTrigger(def.Queue, def.PollInterval, def.Drain, store, discardLogger()),
		Logger:     discardLogger(),
		WorkerID:   "test-worker",
	})
}

func TestWorker_RunsJobsToTerminalStatus(t *testing.T) {
	def := Definition{
		Queue:            "emails",
		Trigger:          domain.TriggerPoll,
		PollInterval:     5 * time.Millisecond,
		MaxJobsPerSecond: 1000,
		Drain:            true,
		Handlers: map[string]Handler{
			"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
				return "ok", nil
			}),
		},
	}
	store := newFakeStore(
		newJob(1, "emails", "Welcome", `{"user_id": 1}`),
		newJob(2, "emails", "Bogus", `{}`),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- newTestWorker(def, store).Run(ctx) }()

	assert.Eventually(t, func() bool {
		return domain.IsTerminal(store.Status(1)) && domain.IsTerminal(store.Status(2))
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "ok", store.Status(1))
	assert.Equal(t, "err: unknown job Bogus", store.Status(2))
}

func TestWorker_PacesClaims(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	def := Definition{
		Queue:            "emails",
		PollInterval:     time.Millisecond,
		MaxJobsPerSecond: 10,
		Drain:            true,
		Handlers: map[string]Handler{
			"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return "ok", nil
			}),
		},
	}
	store := newFakeStore(
		newJob(1, "emails", "Welcome", `{}`),
		newJob(2, "emails", "Welcome", `{}`),
		newJob(3, "emails", "Welcome", `{}`),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- newTestWorker(def, store).Run(ctx) }()

	assert.Eventually(t, func() bool {
		return store.Status(3) == "ok"
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), 100*time.Millisecond)
	}
}

func TestWorker_StopsWhenStoreUnavailable(t *testing.T) {
	def := Definition{
		Queue:            "emails",
		PollInterval:     time.Millisecond,
		MaxJobsPerSecond: 1000,
		Handlers: map[string]Handler{
			"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
				return "ok", nil
			}),
		},
	}
	store := newFakeStore(newJob(1, "emails", "Welcome", `{}`))
	store.finishErr = domain.ErrStoreUnavailable

	select {
	case err := <-runAsync(newTestWorker(def, store)):
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept running with an unavailable store")
	}
}

func TestWorker_SurvivesOtherFinishErrors(t *testing.T) {
	def := Definition{
		Queue:            "emails",
		PollInterval:     time.Millisecond,
		MaxJobsPerSecond: 1000,
		Handlers: map[string]Handler{
			"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
				return "ok", nil
			}),
		},
	}
	store := newFakeStore(newJob(1, "emails", "Welcome", `{}`))
	store.finishErr = domain.ErrJobNotFound

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, newTestWorker(def, store).Run(ctx))
	assert.Equal(t, domain.StatusStarted, store.Status(1))
}

func runAsync(w *Worker) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	return done
}

func TestQueueBindingName(t *testing.T) {
	assert.Equal(t, "jobs.slack", QueueBindingName("jobs", "slack"))
	assert.Equal(t, "slack", QueueBindingName("", "slack"))
}
