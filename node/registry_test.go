package node

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-synth/fault"
)

type stubProcessor struct {
	params map[ParamID]float32
}

func (s *stubProcessor) Prepare(float64, int)               {}
func (s *stubProcessor) SetParam(id ParamID, v float32)     { s.params[id] = v }
func (s *stubProcessor) Process(*Context, []Buffer, Buffer) {}
func (s *stubProcessor) Reset()                             {}

func stubDescriptor(t TypeID) Descriptor {
	return Descriptor{
		Type:     t,
		Name:     "stub",
		Outputs:  []Port{{ID: 0, Name: "Out"}},
		Params:   []ParamSpec{{ID: 0, Name: "Gain", Default: 0.5, Min: 0, Max: 1}},
		Channels: 1,
		New:      func() Processor { return &stubProcessor{params: map[ParamID]float32{}} },
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubDescriptor(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(stubDescriptor(1))
	if !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("expected ErrDuplicateType, got %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestRegistryCreateAppliesDefaults(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubDescriptor(3))
	p, err := r.Create(3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := p.(*stubProcessor).params[0]; got != 0.5 {
		t.Fatalf("expected default 0.5, got %f", got)
	}
}

func TestRegistryCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(42)
	if !errors.Is(err, ErrUnknownType) || !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("expected unknown type / not found, got %v", err)
	}
}

func TestRegistrySealAndValidation(t *testing.T) {
	r := NewRegistry()
	bad := stubDescriptor(5)
	bad.Params[0].Default = 2
	if err := r.Register(bad); err == nil {
		t.Fatalf("expected default-out-of-range to be rejected")
	}
	noFactory := stubDescriptor(6)
	noFactory.New = nil
	if err := r.Register(noFactory); err == nil {
		t.Fatalf("expected nil factory to be rejected")
	}

	r.MustRegister(stubDescriptor(9))
	r.MustRegister(stubDescriptor(2))
	r.Seal()
	if err := r.Register(stubDescriptor(10)); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	types := r.Types()
	if len(types) != 2 || types[0] != 2 || types[1] != 9 {
		t.Fatalf("expected sorted types [2 9], got %v", types)
	}
}

func TestParamSpecClamp(t *testing.T) {
	p := ParamSpec{Default: 440, Min: 20, Max: 20000}
	if p.Clamp(5) != 20 || p.Clamp(30000) != 20000 || p.Clamp(1000) != 1000 {
		t.Fatalf("clamp out of range")
	}
	nan := float32(0)
	nan = nan / nan
	if p.Clamp(nan) != 440 {
		t.Fatalf("expected NaN to fall back to default")
	}
}

func TestPortKindAccepts(t *testing.T) {
	if !Audio.Accepts(Control) || !Audio.Accepts(Audio) || !Control.Accepts(Control) {
		t.Fatalf("expected compatible kinds to be accepted")
	}
	if Control.Accepts(Audio) {
		t.Fatalf("audio must not feed a control input")
	}
}
