package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the named pipeline definitions the runtime can invoke.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates and stores a definition. Registering the same name again
// replaces the earlier definition.
func (r *Registry) Register(def *Definition) error {
	err := def.Validate()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[def.Name] = def

	return nil
}

// Get returns the definition registered under the name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPipelineNotFound, name)
	}

	return def, nil
}

// Names returns the registered pipeline names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
