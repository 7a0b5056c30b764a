package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/pgjobqueue/internal/worker"
)

// ShutdownSignals are the signals the supervisor reacts to. SIGKILL cannot
// be caught and is left to the operating system.
var ShutdownSignals = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
}

// NotifyContext returns a context canceled on the first shutdown signal
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}

// IgnoreShutdownSignals is called by child processes so only the parent
// decides when workers stop.
func IgnoreShutdownSignals() {
	signal.Ignore(ShutdownSignals...)
}

// ExecSpawner re-executes a binary in single-queue mode, one OS process per queue
type ExecSpawner struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner re-executes the running binary with args plus "-queue <name>"
func NewExecSpawner(args ...string) (*ExecSpawner, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}

	return &ExecSpawner{
		Path:   path,
		Args:   args,
		Env:    os.Environ(),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, nil
}

// Spawn starts the child process for queue
func (s *ExecSpawner) Spawn(_ context.Context, queue string) (Process, error) {
	args := append(append([]string{}, s.Args...), "-queue", queue)

	cmd := exec.Command(s.Path, args...)
	cmd.Env = s.Env
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.SysProcAttr = childProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.Path, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

// RunFunc runs the worker of one definition until ctx is done
type RunFunc func(ctx context.Context, def worker.Definition) error

// InProcessSpawner runs each worker in a goroutine of the current process.
// Every worker still opens its own connections.
type InProcessSpawner struct {
	registry *worker.Registry
	run      RunFunc
}

// NewInProcessSpawner creates a spawner that resolves queues through registry
func NewInProcessSpawner(registry *worker.Registry, run RunFunc) *InProcessSpawner {
	return &InProcessSpawner{
		registry: registry,
		run:      run,
	}
}

// Spawn starts the worker for queue. The worker is detached from ctx
// cancellation and only stops on Kill.
func (s *InProcessSpawner) Spawn(ctx context.Context, queue string) (Process, error) {
	def, ok := s.registry.Definition(queue)
	if !ok {
		return nil, fmt.Errorf("no worker registered for queue %s", queue)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &goroutineProcess{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		p.err = s.run(runCtx, def)
	}()

	return p, nil
}

type goroutineProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *goroutineProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *goroutineProcess) Kill() error {
	p.cancel()
	return nil
}

func (p *goroutineProcess) Pid() int {
	return os.Getpid()
}
