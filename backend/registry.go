package backend

import (
	"fmt"
	"sync"
)

// Registry maps backend names to implementations. It is injected into the
// engine at construction instead of living as process-global state: populate
// it during setup, call Freeze, then share it across any number of
// concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	frozen   bool
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a named backend. Registration fails after Freeze or when the
// name is already taken.
func (r *Registry) Register(name string, b Backend) error {
	if name == "" {
		return fmt.Errorf("backend name must not be empty")
	}
	if b == nil {
		return fmt.Errorf("backend %q must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("registry is frozen; register backends during setup")
	}
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.backends[name] = b
	return nil
}

// Freeze makes the registry immutable. Safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve looks up a backend by name.
func (r *Registry) Resolve(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered backend names. Order is unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
