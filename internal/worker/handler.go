package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// DefaultPollInterval is used when a definition leaves PollInterval unset
const DefaultPollInterval = 10 * time.Second

// Handler executes one job. The returned string becomes the job status,
// "ok" by convention. A returned error is recorded as "err: <message>".
type Handler interface {
	Handle(ctx context.Context, args domain.Args) (string, error)
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(ctx context.Context, args domain.Args) (string, error)

// Handle calls f(ctx, args)
func (f HandlerFunc) Handle(ctx context.Context, args domain.Args) (string, error) {
	return f(ctx, args)
}

// Definition describes one queue and the handlers that work it
type Definition struct {
	Queue            string
	Trigger          string
	PollInterval     time.Duration
	MaxJobsPerSecond float64
	Drain            bool
	Handlers         map[string]Handler
}

// Lookup returns the handler registered for a job name
func (d Definition) Lookup(name string) (Handler, bool) {
	h, ok := d.Handlers[name]
	return h, ok
}

// JobNames returns the registered job names in sorted order
func (d Definition) JobNames() []string {
	names := make([]string, 0, len(d.Handlers))
	for name := range d.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Definition) withDefaults() Definition {
	if d.Trigger == "" {
		d.Trigger = domain.TriggerPoll
	}
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	return d
}

// problems lists everything that keeps d from being a conforming worker
func (d Definition) problems() []string {
	var out []string

	label := d.Queue
	if label == "" {
		label = "<unnamed>"
		out = append(out, "worker has no queue name")
	}

	switch d.Trigger {
	case domain.TriggerPoll, domain.TriggerNotify, domain.TriggerAMQP:
	default:
		out = append(out, fmt.Sprintf("queue %s: unknown trigger %q", label, d.Trigger))
	}

	if d.PollInterval <= 0 {
		out = append(out, fmt.Sprintf("queue %s: poll interval must be greater than 0", label))
	}

	if d.MaxJobsPerSecond <= 0 {
		out = append(out, fmt.Sprintf("queue %s: max jobs per second must be greater than 0", label))
	}

	if len(d.Handlers) == 0 {
		out = append(out, fmt.Sprintf("queue %s: no job handlers registered", label))
	}
	for _, name := range d.JobNames() {
		if name == "" {
			out = append(out, fmt.Sprintf("queue %s: handler registered with empty job name", label))
			continue
		}
		if d.Handlers[name] == nil {
			out = append(out, fmt.Sprintf("queue %s: job %s has a nil handler", label, name))
		}
	}

	return out
}

func (d Definition) clone() Definition {
	handlers := make(map[string]Handler, len(d.Handlers))
	for name, h := range d.Handlers {
		handlers[name] = h
	}
	d.Handlers = handlers
	return d
}
