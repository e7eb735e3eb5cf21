package node

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/algo-synth/fault"
)

var (
	// ErrDuplicateType is returned when a type id is registered twice.
	ErrDuplicateType = errors.New("duplicate node type")

	// ErrUnknownType is returned for type ids absent from the registry.
	ErrUnknownType = fmt.Errorf("%w: unknown node type", fault.ErrNotFound)

	// ErrSealed is returned when registering into a sealed registry.
	ErrSealed = errors.New("registry is sealed")
)

// Registry maps node type ids to descriptors. It is populated once at
// startup and sealed; a sealed registry is safe for concurrent readers.
type Registry struct {
	types  map[TypeID]*Descriptor
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[TypeID]*Descriptor)}
}

// Register adds a node kind.
func (r *Registry) Register(d Descriptor) error {
	if r.sealed {
		return fmt.Errorf("%w: %s", ErrSealed, d.Name)
	}
	if d.New == nil {
		return fmt.Errorf("node type %d (%s): nil factory", d.Type, d.Name)
	}
	if d.Channels != 1 && d.Channels != 2 {
		return fmt.Errorf("node type %d (%s): channels must be 1 or 2", d.Type, d.Name)
	}
	if _, exists := r.types[d.Type]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateType, d.Type)
	}
	seen := make(map[ParamID]bool, len(d.Params))
	for _, p := range d.Params {
		if seen[p.ID] {
			return fmt.Errorf("node type %d (%s): duplicate param id %d", d.Type, d.Name, p.ID)
		}
		if p.Min > p.Max || p.Default < p.Min || p.Default > p.Max {
			return fmt.Errorf("node type %d (%s): param %q default outside range", d.Type, d.Name, p.Name)
		}
		seen[p.ID] = true
	}

	desc := d
	r.types[d.Type] = &desc
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic("node registry: " + err.Error())
	}
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup returns the descriptor for the type id.
func (r *Registry) Lookup(t TypeID) (*Descriptor, bool) {
	d, ok := r.types[t]
	return d, ok
}

// Create instantiates a processor for the type id with default parameters
// applied. The processor is not yet prepared.
func (r *Registry) Create(t TypeID) (Processor, error) {
	d, ok := r.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	p := d.New()
	for _, spec := range d.Params {
		p.SetParam(spec.ID, spec.Default)
	}
	return p, nil
}

// Count returns the number of registered node kinds.
func (r *Registry) Count() int {
	return len(r.types)
}

// Types returns all registered type ids in ascending order.
func (r *Registry) Types() []TypeID {
	out := make([]TypeID, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
