package filters

import (
	"math"
	"testing"
)

func TestLowPassFirstSampleInitializes(t *testing.T) {
	f := NewLowPass(3.0, 0.03)
	if got := f.Filter(2.5); got != 2.5 {
		t.Errorf("first Filter() = %f, want 2.5", got)
	}
	if f.State() != 2.5 {
		t.Errorf("State() = %f, want 2.5", f.State())
	}
}

func TestLowPassConverges(t *testing.T) {
	f := NewLowPass(3.0, 0.03)
	f.Filter(0)
	var out float64
	for i := 0; i < 500; i++ {
		out = f.Filter(1.0)
	}
	if math.Abs(out-1.0) > 1e-6 {
		t.Errorf("step response did not settle: %f", out)
	}
}

func TestLowPassMonotoneStep(t *testing.T) {
	f := NewLowPass(3.0, 0.03)
	f.Filter(0)
	prev := 0.0
	for i := 0; i < 50; i++ {
		out := f.Filter(1.0)
		if out <= prev || out > 1.0 {
			t.Fatalf("step %d: out=%f prev=%f, want monotone rise within (prev, 1]", i, out, prev)
		}
		prev = out
	}
}

func TestLowPassPeekDoesNotAdvance(t *testing.T) {
	f := NewLowPass(3.0, 0.03)
	f.Filter(0)
	peeked := f.Peek(1.0)
	if f.State() != 0 {
		t.Fatalf("Peek mutated state to %f", f.State())
	}
	if got := f.Filter(1.0); got != peeked {
		t.Errorf("Filter() = %f after Peek() = %f, want equal", got, peeked)
	}
}

func TestLowPassZeroCutoffPassesThrough(t *testing.T) {
	f := NewLowPass(0, 0.03)
	f.Filter(5)
	if got := f.Filter(-3); got != -3 {
		t.Errorf("pass-through Filter() = %f, want -3", got)
	}
}

func TestMovingAverage(t *testing.T) {
	vals := []float64{0, 0, 3, 0, 0}
	if !MovingAverage(1, vals) {
		t.Fatal("MovingAverage returned false for valid window")
	}
	want := []float64{0, 1, 1, 1, 0}
	for i := range want {
		if math.Abs(vals[i]-want[i]) > 1e-12 {
			t.Errorf("vals[%d] = %f, want %f", i, vals[i], want[i])
		}
	}
}

func TestMovingAverageTooShort(t *testing.T) {
	vals := []float64{1, 2}
	if MovingAverage(3, vals) {
		t.Error("MovingAverage accepted a window larger than the slice")
	}
	if vals[0] != 1 || vals[1] != 2 {
		t.Error("MovingAverage mutated a slice it rejected")
	}
}
