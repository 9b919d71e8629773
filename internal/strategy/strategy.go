// Package strategy provides built-in strategy presets and a Registry for
// looking them up by name.
package strategy

import (
	"sort"

	"backlab/internal/domain"
)

// Registry holds a named collection of strategy presets for lookup and
// enumeration.
type Registry struct {
	presets map[string]domain.Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		presets: make(map[string]domain.Strategy),
	}
}

// Register adds a preset to the registry, keyed by its Name.
func (r *Registry) Register(s domain.Strategy) {
	r.presets[s.Name] = s
}

// Get retrieves a preset by name. The second return value indicates whether
// the preset was found.
func (r *Registry) Get(name string) (domain.Strategy, bool) {
	s, ok := r.presets[name]
	return s, ok
}

// List returns a sorted slice of all registered preset names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
