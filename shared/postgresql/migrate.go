package postgresql

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// DefaultMigrationsTable is the goose version table used when none is configured
const DefaultMigrationsTable = "goose_db_version"

// Migrate applies every pending goose migration found in migrations
func (c *Client) Migrate(ctx context.Context, migrations fs.FS, table string) error {
	if table == "" {
		table = DefaultMigrationsTable
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{logger: c.logger})
	goose.SetTableName(table)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	c.logger.Info("Applying database migrations",
		slog.String("table", table),
	)

	if err := goose.UpContext(ctx, c.DB().DB, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, c.DB().DB)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	c.logger.Info("Database migrations applied",
		slog.Int64("version", version),
	)

	return nil
}

// gooseLogger routes goose output through slog
type gooseLogger struct {
	logger *slog.Logger
}

func (g *gooseLogger) Printf(format string, args ...any) {
	g.logger.Debug(fmt.Sprintf(format, args...))
}

// Fatalf only logs; goose returns the error to the caller afterwards
func (g *gooseLogger) Fatalf(format string, args ...any) {
	g.logger.Error(fmt.Sprintf(format, args...))
}
