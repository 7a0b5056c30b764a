package postgresql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Config holds PostgreSQL connection configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DSN renders the config as a lib/pq keyword/value connection string
func (c *Config) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
	if c.ApplicationName != "" {
		dsn += " application_name=" + c.ApplicationName
	}
	return dsn
}

// Client represents a PostgreSQL database client.
// The underlying pool can be replaced by Reconnect, so callers must fetch it
// through DB for every operation instead of caching it.
type Client struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	config *Config
	logger *slog.Logger
}

// NewClient creates a new PostgreSQL client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	logger.Info("Connecting to PostgreSQL",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.String("database", config.Database),
	)

	db, err := open(context.Background(), config)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL",
			slog.Any("error", err),
		)
		return nil, err
	}

	logger.Info("Successfully connected to PostgreSQL",
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Int("max_idle_conns", config.MaxIdleConns),
		slog.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return &Client{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// NewFromDB wraps an already opened pool. Reconnect will still dial using config.
func NewFromDB(db *sqlx.DB, config *Config, logger *slog.Logger) *Client {
	return &Client{db: db, config: config, logger: logger}
}

func open(ctx context.Context, config *Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return db, nil
}

// DB returns the current sqlx.DB instance
func (c *Client) DB() *sqlx.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Config returns the connection configuration the client was built with
func (c *Client) Config() *Config {
	return c.config
}

// Reconnect dials a fresh pool and swaps it in, closing the broken one
func (c *Client) Reconnect(ctx context.Context) error {
	c.logger.Warn("Reconnecting to PostgreSQL",
		slog.String("host", c.config.Host),
		slog.String("database", c.config.Database),
	)

	db, err := open(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to reconnect to PostgreSQL",
			slog.Any("error", err),
		)
		return err
	}

	c.mu.Lock()
	old := c.db
	c.db = db
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	c.logger.Info("Reconnected to PostgreSQL")
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	c.logger.Info("Closing PostgreSQL connection")

	db := c.DB()
	if db != nil {
		if err := db.Close(); err != nil {
			c.logger.Error("Failed to close PostgreSQL connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("PostgreSQL connection closed successfully")
	return nil
}

// Ping checks the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.DB().PingContext(ctx)
}

// HealthCheck performs a health check on the database
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := c.DB().GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database query health check failed: %w", err)
	}

	return nil
}

// Stats returns database statistics
func (c *Client) Stats() string {
	stats := c.DB().Stats()
	return fmt.Sprintf(
		"MaxOpenConns: %d, OpenConns: %d, InUse: %d, Idle: %d, WaitCount: %d, WaitDuration: %s",
		stats.MaxOpenConnections,
		stats.OpenConnections,
		stats.InUse,
		stats.Idle,
		stats.WaitCount,
		stats.WaitDuration,
	)
}

// IsConnectionError reports whether err means the connection itself is gone,
// as opposed to a query or constraint failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 is connection_exception, 57P01..57P03 are server shutdown states
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
