package postgresql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "jobs",
		Password: "secret",
		Database: "pgjobqueue",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=jobs password=secret dbname=pgjobqueue sslmode=disable",
		cfg.DSN(),
	)

	cfg.ApplicationName = "pgjobqueue-worker"
	assert.Equal(t,
		"host=localhost port=5432 user=jobs password=secret dbname=pgjobqueue sslmode=disable application_name=pgjobqueue-worker",
		cfg.DSN(),
	)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "bad conn", err: driver.ErrBadConn, want: true},
		{name: "conn done", err: sql.ErrConnDone, want: true},
		{name: "wrapped eof", err: fmt.Errorf("read: %w", io.EOF), want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "connection refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, want: true},
		{name: "connection reset", err: syscall.ECONNRESET, want: true},
		{name: "connection exception class", err: &pq.Error{Code: "08006"}, want: true},
		{name: "admin shutdown", err: &pq.Error{Code: "57P01"}, want: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}
