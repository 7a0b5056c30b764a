package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingDriver refuses every connection with err
type failingDriver struct{ err error }

func (d failingDriver) Open(string) (driver.Conn, error) { return nil, d.err }

var errQueryRejected = errors.New("permission denied for table jobs")

func init() {
	sql.Register("pgjobqueue-badconn", failingDriver{err: driver.ErrBadConn})
	sql.Register("pgjobqueue-rejected", failingDriver{err: errQueryRejected})
}

type fakeConnection struct {
	driverName   string
	db           *sqlx.DB
	reconnects   int
	reconnectErr error
}

func newFakeConnection(t *testing.T, driverName string) *fakeConnection {
	t.Helper()
	c := &fakeConnection{driverName: driverName}
	c.db = c.open(t)
	return c
}

func (c *fakeConnection) open(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open(c.driverName, "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func (c *fakeConnection) DB() *sqlx.DB { return c.db }

func (c *fakeConnection) Reconnect(context.Context) error {
	c.reconnects++
	return c.reconnectErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStorage_ReconnectsOnceThenGivesUp(t *testing.T) {
	conn := newFakeConnection(t, "pgjobqueue-badconn")
	store := NewStorage(conn, discardLogger())

	_, err := store.ClaimNext(context.Background(), "emails")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, conn.reconnects)
}

func TestStorage_ReconnectFailure(t *testing.T) {
	conn := newFakeConnection(t, "pgjobqueue-badconn")
	conn.reconnectErr = errors.New("connection refused")
	store := NewStorage(conn, discardLogger())

	_, err := store.Finish(context.Background(), 1, domain.StatusOK)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, conn.reconnects)
}

func TestStorage_OtherErrorsDoNotReconnect(t *testing.T) {
	conn := newFakeConnection(t, "pgjobqueue-rejected")
	store := NewStorage(conn, discardLogger())

	_, err := store.ClaimByID(context.Background(), "emails", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errQueryRejected)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 0, conn.reconnects)
}
