package units

import (
	"math"
	"testing"
)

func TestAngleConversions(t *testing.T) {
	if got := Deg2Rad(180); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("Deg2Rad(180) = %f, want pi", got)
	}
	if got := Rad2Deg(math.Pi / 2); math.Abs(got-90) > 1e-12 {
		t.Errorf("Rad2Deg(pi/2) = %f, want 90", got)
	}
	if got := Rad2Deg(Deg2Rad(37.5)); math.Abs(got-37.5) > 1e-12 {
		t.Errorf("round trip = %f, want 37.5", got)
	}
}

func TestSpeedConversions(t *testing.T) {
	if got := KphToMps(36); math.Abs(got-10) > 1e-12 {
		t.Errorf("KphToMps(36) = %f, want 10", got)
	}
	if got := MpsToKph(10); math.Abs(got-36) > 1e-12 {
		t.Errorf("MpsToKph(10) = %f, want 36", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want float64 }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0, 0, 0, 0},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%f, %f, %f) = %f, want %f", c.v, c.lo, c.hi, got, c.want)
		}
	}
}
