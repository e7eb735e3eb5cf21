// Package node defines the node type contract shared by the graph, the
// session and the render engine: descriptors, the processing interface and
// the registry that maps type ids to implementations.
package node

// TypeID identifies a node kind in the registry.
type TypeID uint32

// ParamID identifies a parameter within one node kind.
type ParamID uint32

// PortID identifies an input or output port within one node kind.
type PortID uint32

// PortKind distinguishes audio-rate signal ports from control-rate ports.
type PortKind uint8

const (
	Audio PortKind = iota
	Control
)

func (k PortKind) String() string {
	if k == Control {
		return "control"
	}
	return "audio"
}

// Port describes one input or output.
type Port struct {
	ID   PortID
	Name string
	Kind PortKind
}

// Accepts reports whether a signal of kind src may feed a port of kind k.
// Control signals may drive audio inputs, audio may not drive control inputs.
func (k PortKind) Accepts(src PortKind) bool {
	return k == Audio || src == Control
}

// Unit is the display unit of a parameter.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitHz
	UnitDB
	UnitSeconds
	UnitPercent
	UnitCents
	UnitPan
)

var unitNames = [...]string{"", "Hz", "dB", "s", "%", "ct", "pan"}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return "?"
}

// ParamSpec declares one parameter of a node kind.
type ParamSpec struct {
	ID      ParamID
	Name    string
	Default float32
	Min     float32
	Max     float32
	Unit    Unit
}

// Clamp limits v to the declared range.
func (p ParamSpec) Clamp(v float32) float32 {
	if v != v {
		return p.Default
	}
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Polyphony selects whether a node renders once per block or once per
// active voice.
type Polyphony uint8

const (
	Global Polyphony = iota
	PerVoice
)

// Factory creates a fresh processor instance.
type Factory func() Processor

// Descriptor is the immutable description of a node kind.
type Descriptor struct {
	Type      TypeID
	Name      string
	Category  string
	Inputs    []Port
	Outputs   []Port
	Params    []ParamSpec
	Polyphony Polyphony
	Channels  int
	New       Factory
}

// Param returns the spec of the parameter with the given id.
func (d *Descriptor) Param(id ParamID) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.ID == id {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ParamIndex returns the position of the parameter in Params, or -1.
func (d *Descriptor) ParamIndex(id ParamID) int {
	for i, p := range d.Params {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Input returns the input port with the given id.
func (d *Descriptor) Input(id PortID) (Port, bool) {
	return findPort(d.Inputs, id)
}

// InputIndex returns the position of the input port in Inputs, or -1.
func (d *Descriptor) InputIndex(id PortID) int {
	for i, p := range d.Inputs {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Output returns the output port with the given id.
func (d *Descriptor) Output(id PortID) (Port, bool) {
	return findPort(d.Outputs, id)
}

func findPort(ports []Port, id PortID) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}
