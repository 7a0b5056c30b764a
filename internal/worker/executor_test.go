package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name       string
		jobName    string
		args       string
		handler    HandlerFunc
		wantStatus string
		wantPrefix string
	}{
		{
			name:    "handler succeeds",
			jobName: "Welcome",
			args:    `{"user_id": 1}`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				return "ok", nil
			},
			wantStatus: "ok",
		},
		{
			name:    "empty status means ok",
			jobName: "Welcome",
			args:    `{}`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				return "", nil
			},
			wantStatus: "ok",
		},
		{
			name:       "unknown job name",
			jobName:    "Bogus",
			args:       `{}`,
			wantStatus: "err: unknown job Bogus",
		},
		{
			name:    "handler error",
			jobName: "Welcome",
			args:    `{}`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				return "", errors.New("smtp timeout")
			},
			wantStatus: "err: smtp timeout",
		},
		{
			name:    "handler panic",
			jobName: "Welcome",
			args:    `{}`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				panic("kaboom")
			},
			wantStatus: "err: panic: kaboom",
		},
		{
			name:    "handler returns a non-terminal status",
			jobName: "Welcome",
			args:    `{}`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				return domain.StatusPending, nil
			},
			wantStatus: "err: invalid status pending",
		},
		{
			name:    "malformed args",
			jobName: "Welcome",
			args:    `{"user_id":`,
			handler: func(ctx context.Context, args domain.Args) (string, error) {
				return "ok", nil
			},
			wantPrefix: "err: invalid args",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := map[string]Handler{}
			if tt.handler != nil {
				handlers["Welcome"] = tt.handler
			}
			def := Definition{Queue: "emails", Handlers: handlers}

			job := newJob(1, "emails", tt.jobName, tt.args)
			store := newFakeStore(job)
			_, err := store.ClaimNext(context.Background(), "emails")
			require.NoError(t, err)

			result, err := NewExecutor(def, store, discardLogger()).Execute(context.Background(), job)
			require.NoError(t, err)

			if tt.wantPrefix != "" {
				assert.Contains(t, result.Status, tt.wantPrefix)
			} else {
				assert.Equal(t, tt.wantStatus, result.Status)
			}
			assert.Equal(t, result.Status, store.Status(1))
			assert.True(t, domain.IsTerminal(store.Status(1)))
		})
	}
}

func TestExecutor_PassesArgsVerbatim(t *testing.T) {
	var got domain.Args
	def := Definition{Queue: "emails", Handlers: map[string]Handler{
		"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
			got = args
			return "ok", nil
		}),
	}}

	job := newJob(7, "emails", "Welcome", `{"user_id": 1, "tags": ["a", "b"]}`)
	store := newFakeStore(job)
	_, err := store.ClaimByID(context.Background(), "emails", 7)
	require.NoError(t, err)

	_, err = NewExecutor(def, store, discardLogger()).Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, domain.Args{"user_id": float64(1), "tags": []any{"a", "b"}}, got)
}

func TestExecutor_ElapsedFromStore(t *testing.T) {
	def := Definition{Queue: "emails", Handlers: map[string]Handler{
		"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
			return "ok", nil
		}),
	}}

	job := newJob(1, "emails", "Welcome", `{}`)
	store := newFakeStore(job)
	store.finishElapsed = 1500 * time.Millisecond
	_, err := store.ClaimNext(context.Background(), "emails")
	require.NoError(t, err)

	result, err := NewExecutor(def, store, discardLogger()).Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, result.Elapsed)
}

func TestExecutor_FinishFailure(t *testing.T) {
	def := Definition{Queue: "emails", Handlers: map[string]Handler{
		"Welcome": HandlerFunc(func(ctx context.Context, args domain.Args) (string, error) {
			return "ok", nil
		}),
	}}

	job := newJob(1, "emails", "Welcome", `{}`)
	store := newFakeStore(job)
	store.finishErr = domain.ErrStoreUnavailable

	exec := NewExecutor(def, store, discardLogger())
	clock := time.Unix(0, 0)
	exec.now = func() time.Time {
		clock = clock.Add(200 * time.Millisecond)
		return clock
	}

	result, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 200*time.Millisecond, result.Elapsed)
}
