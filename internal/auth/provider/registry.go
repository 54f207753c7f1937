package provider

import (
	"fmt"
	"sort"
)

// Registry holds all configured strategies and allows lookup by name.
// It performs no auth logic itself.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry registers the given strategies by name.
// A duplicate name is a wiring mistake and is reported as an error.
func NewRegistry(list ...Strategy) (*Registry, error) {
	m := make(map[string]Strategy, len(list))
	for _, s := range list {
		if _, dup := m[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate oauth provider: %s", s.Name())
		}
		m[s.Name()] = s
	}
	return &Registry{strategies: m}, nil
}

// Get returns the strategy by name or an error if not registered.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return s, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
