package main

import (
	"math"
	"testing"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

func TestBuildScenario(t *testing.T) {
	for _, name := range []string{"straight", "curve", "lane-change"} {
		ref, pose, err := buildScenario(name, 10)
		if err != nil {
			t.Fatalf("buildScenario(%q): %v", name, err)
		}
		if err := ref.Validate(); err != nil {
			t.Errorf("%q reference invalid: %v", name, err)
		}
		if ref.Len() < 100 {
			t.Errorf("%q reference has only %d points", name, ref.Len())
		}
		// the start pose must be near the reference start
		d := math.Hypot(pose.X-ref.X[0], pose.Y-ref.Y[0])
		if d > 1.0 {
			t.Errorf("%q start pose %.2fm from reference start", name, d)
		}
	}

	if _, _, err := buildScenario("donuts", 10); err == nil {
		t.Error("buildScenario accepted an unknown scenario")
	}
}

func TestProgressInterval(t *testing.T) {
	cases := []struct {
		ctp  float64
		want int
	}{
		{0.03, 33},
		{0.1, 10},
		{1.0, 1},
		{2.0, 1}, // slower than 1 Hz: log every tick rather than divide by zero
	}
	for _, c := range cases {
		if got := progressInterval(c.ctp); got != c.want {
			t.Errorf("progressInterval(%f) = %d, want %d", c.ctp, got, c.want)
		}
	}
}

func TestPlantStraightLine(t *testing.T) {
	p := newPlant(trajectory.Pose{}, 10, 2.79, 0.3, 0.03, 0)
	for i := 0; i < 100; i++ {
		p.step(0)
	}
	if math.Abs(p.pose.X-30.0) > 1e-9 {
		t.Errorf("X = %f after 3 s at 10 m/s, want 30", p.pose.X)
	}
	if p.pose.Y != 0 || p.pose.Yaw != 0 {
		t.Errorf("drifted to (%f, %f) with zero steer", p.pose.Y, p.pose.Yaw)
	}
}

func TestPlantTurnsLeft(t *testing.T) {
	p := newPlant(trajectory.Pose{}, 5, 2.79, 0.1, 0.03, 0)
	for i := 0; i < 200; i++ {
		p.step(0.2)
	}
	if p.pose.Y <= 0 {
		t.Errorf("Y = %f after left steer, want > 0", p.pose.Y)
	}
	if p.pose.Yaw <= 0 {
		t.Errorf("Yaw = %f after left steer, want > 0", p.pose.Yaw)
	}
	// the actuator lag has long settled
	if math.Abs(p.steer-0.2) > 1e-6 {
		t.Errorf("steer = %f, want 0.2", p.steer)
	}
}

func TestPlantDelayLine(t *testing.T) {
	p := newPlant(trajectory.Pose{}, 10, 2.79, 0, 0.03, 5)
	// with zero actuator lag the steer tracks the delayed command exactly
	for i := 0; i < 5; i++ {
		p.step(0.1)
		if p.steer != 0 {
			t.Fatalf("steer = %f at step %d, want 0 (command still in flight)", p.steer, i)
		}
	}
	p.step(0.1)
	if p.steer != 0.1 {
		t.Errorf("steer = %f after the delay elapsed, want 0.1", p.steer)
	}
}
