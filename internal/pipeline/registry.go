package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry maps stage names to implementations. It is populated at startup
// and read-only during dispatch, so it may be freely shared.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]Stage{}}
}

// Register binds a stage under its name, replacing any prior binding.
func (r *Registry) Register(st Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[st.Name()]; exists {
		slog.Warn("replacing pipeline stage", "stage", st.Name())
	}
	r.stages[st.Name()] = st
}

// Has reports whether a stage name is bound.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stages[name]
	return ok
}

// Resolve returns the stage bound to a name. An unknown name is a
// configuration error.
func (r *Registry) Resolve(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline stage %q", name)
	}
	return st, nil
}

// Names returns the bound stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
