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

func TestPollingTrigger_Tick(t *testing.T) {
	tests := []struct {
		name  string
		drain bool
		want  []int64
	}{
		{name: "one job per tick", drain: false, want: []int64{1}},
		{name: "drain empties the queue", drain: true, want: []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(
				newJob(1, "emails", "Welcome", `{}`),
				newJob(2, "emails", "Welcome", `{}`),
				newJob(3, "emails", "Welcome", `{}`),
				newJob(4, "slack", "PostMessage", `{}`),
			)
			rec := &recorder{}

			trigger := NewPollingTrigger("emails", time.Second, tt.drain, store, discardLogger())
			require.NoError(t, trigger.tick(context.Background(), rec.dispatch))

			assert.Equal(t, tt.want, rec.IDs())
			assert.Equal(t, domain.StatusPending, store.Status(4))
		})
	}
}

func TestPollingTrigger_TickEmptyQueue(t *testing.T) {
	rec := &recorder{}
	trigger := NewPollingTrigger("emails", time.Second, true, newFakeStore(), discardLogger())

	require.NoError(t, trigger.tick(context.Background(), rec.dispatch))
	assert.Empty(t, rec.IDs())
}

func TestPollingTrigger_TickErrors(t *testing.T) {
	tests := []struct {
		name     string
		claimErr error
		wantErr  error
	}{
		{name: "store unavailable stops the loop", claimErr: domain.ErrStoreUnavailable, wantErr: domain.ErrStoreUnavailable},
		{name: "other claim errors are logged", claimErr: errors.New("deadlock detected"), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(newJob(1, "emails", "Welcome", `{}`))
			store.claimErr = tt.claimErr
			rec := &recorder{}

			trigger := NewPollingTrigger("emails", time.Second, false, store, discardLogger())
			err := trigger.tick(context.Background(), rec.dispatch)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Empty(t, rec.IDs())
		})
	}
}

func TestPollingTrigger_Run(t *testing.T) {
	store := newFakeStore(
		newJob(1, "emails", "Welcome", `{}`),
		newJob(2, "emails", "Welcome", `{}`),
	)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := NewPollingTrigger("emails", 10*time.Millisecond, false, store, discardLogger())

	done := make(chan error, 1)
	go func() { done <- trigger.Run(ctx, rec.dispatch) }()

	assert.Eventually(t, func() bool {
		return len(rec.IDs()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	assert.Equal(t, []int64{1, 2}, rec.IDs())
}

func TestPollingTrigger_RunWaitsBeforeFirstClaim(t *testing.T) {
	store := newFakeStore(newJob(1, "emails", "Welcome", `{}`))
	rec := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	trigger := NewPollingTrigger("emails", time.Hour, false, store, discardLogger())
	require.NoError(t, trigger.Run(ctx, rec.dispatch))

	assert.Empty(t, rec.IDs())
	assert.Equal(t, domain.StatusPending, store.Status(1))
}

func TestPollingTrigger_RunDispatchError(t *testing.T) {
	store := newFakeStore(newJob(1, "emails", "Welcome", `{}`))
	rec := &recorder{err: domain.ErrStoreUnavailable}

	trigger := NewPollingTrigger("emails", time.Millisecond, false, store, discardLogger())
	err := trigger.Run(context.Background(), rec.dispatch)

	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, []int64{1}, rec.IDs())
}
