package mpc

import (
	"math"
	"testing"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
)

// constantCurvatureRef builds a horizon-length reference with the given
// smoothed curvature at every step, as the resampler would hand it to the
// matrix builder.
func constantCurvatureRef(n int, k, speed float64) *trajectory.Trajectory {
	tr := trajectory.New(n)
	for i := 0; i < n; i++ {
		x := float64(i) * 0.5
		tr.Push(trajectory.Point{X: x, VX: speed, K: k, SmoothK: k, Time: x / speed})
	}
	return tr
}

func TestFeedForwardDeadBandZeroesReferenceInput(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics)
	wb := c.model.Wheelbase()

	// atan(k*wb) just inside the dead-band
	k := math.Tan(c.cfg.ZeroFeedForward/2) / wb
	ref := constantCurvatureRef(c.cfg.PredictionHorizon, k, 10)
	m := c.generateMPCMatrix(ref, 0.1)
	for i := 0; i < m.UrefEx.Len(); i++ {
		if got := m.UrefEx.AtVec(i); got != 0 {
			t.Fatalf("UrefEx[%d] = %g with curvature inside the dead-band, want exactly 0", i, got)
		}
	}
}

func TestFeedForwardAboveDeadBandPassesThrough(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics)
	wb := c.model.Wheelbase()

	// atan(k*wb) well clear of the dead-band
	k := math.Tan(4*c.cfg.ZeroFeedForward) / wb
	ref := constantCurvatureRef(c.cfg.PredictionHorizon, k, 10)
	m := c.generateMPCMatrix(ref, 0.1)
	want := math.Atan(k * wb)
	for i := 0; i < m.UrefEx.Len(); i++ {
		if got := m.UrefEx.AtVec(i); math.Abs(got-want) > 1e-12 {
			t.Fatalf("UrefEx[%d] = %g, want %g", i, got, want)
		}
	}
}
