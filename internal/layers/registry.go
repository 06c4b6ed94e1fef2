package layers

import "github.com/rotisserie/eris"

// Registry maps layer names to their implementations.
type Registry struct {
	layers map[string]Layer
	order  []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layers: make(map[string]Layer),
	}
}

// Register adds a layer. Registering a name twice replaces the earlier layer
// but keeps its position.
func (r *Registry) Register(l Layer) {
	name := l.Name()
	if _, ok := r.layers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.layers[name] = l
}

// Get returns a layer by name.
func (r *Registry) Get(name string) (Layer, error) {
	l, ok := r.layers[name]
	if !ok {
		return nil, eris.Errorf("layers: unknown layer %q", name)
	}
	return l, nil
}

// All returns all layers in registration order.
func (r *Registry) All() []Layer {
	result := make([]Layer, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.layers[name])
	}
	return result
}

// ByRole returns the layers with the given role, in registration order.
func (r *Registry) ByRole(role Role) []Layer {
	var result []Layer
	for _, name := range r.order {
		if r.layers[name].Role() == role {
			result = append(result, r.layers[name])
		}
	}
	return result
}

// Names returns all layer names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	return len(r.order)
}
