package dsp

import (
	"math"
	"testing"
)

func TestNoteToFreqReferencePitches(t *testing.T) {
	cases := []struct {
		note int
		want float64
	}{
		{69, 440},
		{57, 220},
		{81, 880},
		{60, 261.6256},
	}
	for _, c := range cases {
		got := float64(NoteToFreq(c.note))
		if math.Abs(got-c.want)/c.want > 0.005 {
			t.Fatalf("note %d: got=%f want=%f", c.note, got, c.want)
		}
	}
}

func TestPanGainsConstantPower(t *testing.T) {
	for _, pan := range []float32{-1, -0.5, 0, 0.3, 1} {
		l, r := PanGains(pan)
		power := float64(l*l + r*r)
		if math.Abs(power-1) > 1e-5 {
			t.Fatalf("pan %f: power=%f", pan, power)
		}
	}
	l, r := PanGains(-1)
	if math.Abs(float64(l)-1) > 1e-6 || math.Abs(float64(r)) > 1e-6 {
		t.Fatalf("hard left: l=%f r=%f", l, r)
	}
	l, r = PanGains(0)
	if math.Abs(float64(l-r)) > 1e-6 {
		t.Fatalf("center should be balanced: l=%f r=%f", l, r)
	}
}

func TestRampReachesTargetExactly(t *testing.T) {
	var r Ramp
	r.Reset(0)
	r.Set(1, 4)
	got := []float32{r.Next(), r.Next(), r.Next(), r.Next()}
	want := []float32{0, 0.25, 0.5, 0.75}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: got=%f want=%f", i, got[i], want[i])
		}
	}
	if r.Value() != 1 || r.Next() != 1 {
		t.Fatalf("expected ramp to settle at 1, got %f", r.Value())
	}
}

func TestPeakAndFinite(t *testing.T) {
	if p := Peak([]float32{0.1, -0.7, 0.3}); p != 0.7 {
		t.Fatalf("peak: got=%f", p)
	}
	if IsFinite(float32(math.NaN())) || IsFinite(float32(math.Inf(1))) || !IsFinite(1) {
		t.Fatalf("IsFinite misclassified values")
	}
	if FlushDenormals(1e-35) != 0 || FlushDenormals(0.5) != 0.5 {
		t.Fatalf("FlushDenormals misbehaved")
	}
}
