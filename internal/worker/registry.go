package worker

import (
	"sort"
	"strings"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// Registry is the validated, immutable set of worker definitions
type Registry struct {
	defs    []Definition
	byQueue map[string]int
}

// NewRegistry validates defs and returns a *domain.StartupValidationError
// listing every problem when any definition does not conform or a queue
// name is declared more than once.
func NewRegistry(defs ...Definition) (*Registry, error) {
	var problems []string

	if len(defs) == 0 {
		problems = append(problems, "no workers defined")
	}

	counts := make(map[string]int, len(defs))
	normalized := make([]Definition, 0, len(defs))
	for _, def := range defs {
		def = def.withDefaults()
		problems = append(problems, def.problems()...)
		counts[def.Queue]++
		normalized = append(normalized, def.clone())
	}

	var dups []string
	for queue, n := range counts {
		if n > 1 && queue != "" {
			dups = append(dups, queue)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		problems = append(problems, "duplicate queues: "+strings.Join(dups, ", "))
	}

	if err := domain.NewStartupValidationError(problems); err != nil {
		return nil, err
	}

	r := &Registry{
		defs:    normalized,
		byQueue: make(map[string]int, len(normalized)),
	}
	for i, def := range normalized {
		r.byQueue[def.Queue] = i
	}
	return r, nil
}

// Queues returns queue names in registration order
func (r *Registry) Queues() []string {
	queues := make([]string, len(r.defs))
	for i, def := range r.defs {
		queues[i] = def.Queue
	}
	return queues
}

// Definition returns a copy of the definition for queue
func (r *Registry) Definition(queue string) (Definition, bool) {
	i, ok := r.byQueue[queue]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i].clone(), true
}
