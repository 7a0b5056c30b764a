// Package supervisor runs one isolated worker per registered queue and owns
// the shutdown decision for all of them.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cuongbtq/pgjobqueue/internal/worker"
	"golang.org/x/sync/errgroup"
)

// ErrAllWorkersFailed is returned when every child exited with an error
var ErrAllWorkersFailed = errors.New("all workers exited with an error")

// Process is a running worker
type Process interface {
	Wait() error
	Kill() error
	Pid() int
}

// Spawner starts the worker of one queue
type Spawner interface {
	Spawn(ctx context.Context, queue string) (Process, error)
}

// Supervisor spawns a child per queue of a validated registry and waits on them
type Supervisor struct {
	registry *worker.Registry
	spawner  Spawner
	logger   *slog.Logger
}

// New creates a supervisor. The registry has already been validated, so a
// supervisor never starts children for a non-conforming set of workers.
func New(registry *worker.Registry, spawner Spawner, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		spawner:  spawner,
		logger:   logger,
	}
}

// Run starts every child and blocks. When ctx is canceled all children are
// killed and Run returns nil. If the children exit on their own, Run returns
// once all of them are gone.
func (s *Supervisor) Run(ctx context.Context) error {
	queues := s.registry.Queues()
	procs := make([]Process, 0, len(queues))

	for _, queue := range queues {
		p, err := s.spawner.Spawn(ctx, queue)
		if err != nil {
			s.killAll(procs)
			return fmt.Errorf("failed to spawn worker for queue %s: %w", queue, err)
		}

		s.logger.Info("Worker started",
			slog.String("queue", queue),
			slog.Int("pid", p.Pid()),
		)
		procs = append(procs, p)
	}

	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	for i, p := range procs {
		queue := queues[i]
		g.Go(func() error {
			err := p.Wait()
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				failed.Add(1)
				s.logger.Error("Worker exited",
					slog.String("queue", queue),
					slog.Int("pid", p.Pid()),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("queue %s: %w", queue, err)
			}
			s.logger.Info("Worker exited", slog.String("queue", queue), slog.Int("pid", p.Pid()))
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, killing workers", slog.Int("workers", len(procs)))
		s.killAll(procs)
		<-done
		s.logger.Info("All workers stopped")
		return nil

	case err := <-done:
		if int(failed.Load()) == len(procs) {
			return fmt.Errorf("%w: %w", ErrAllWorkersFailed, err)
		}
		return nil
	}
}

func (s *Supervisor) killAll(procs []Process) {
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			s.logger.Warn("Failed to kill worker",
				slog.Int("pid", p.Pid()),
				slog.String("error", err.Error()),
			)
		}
	}
}
