package resort

import "fmt"

// Registry maps resort ids to parsers in insertion order. It is built once
// at process start and never mutated afterwards.
type Registry struct {
	order   []string
	parsers map[string]Parser
}

// NewRegistry builds a registry, rejecting duplicate ids.
func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{
		order:   make([]string, 0, len(parsers)),
		parsers: make(map[string]Parser, len(parsers)),
	}
	for _, p := range parsers {
		id := p.Definition().ID
		if _, dup := r.parsers[id]; dup {
			return nil, fmt.Errorf("duplicate resort id %q", id)
		}
		r.order = append(r.order, id)
		r.parsers[id] = p
	}
	return r, nil
}

// Get returns the parser for id.
func (r *Registry) Get(id string) (Parser, bool) {
	p, ok := r.parsers[id]
	return p, ok
}

// Parsers returns all parsers in registry order.
func (r *Registry) Parsers() []Parser {
	out := make([]Parser, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.parsers[id])
	}
	return out
}

// IDs returns resort ids in registry order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered resorts.
func (r *Registry) Len() int {
	return len(r.order)
}
