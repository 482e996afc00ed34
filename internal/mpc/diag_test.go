package mpc

import (
	"testing"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
)

func TestDiagnosticsLookupFailureReportsZero(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics)
	ref := constantCurvatureRef(c.cfg.PredictionHorizon, 0.01, 10)
	c.rawRef = ref.Clone()
	m := c.generateMPCMatrix(ref, 0.1)

	// pose far beyond the nearest-search distance gate: both lookups fail
	state := VehicleState{Pose: trajectory.Pose{X: 5, Y: 50}, Velocity: 10, Steer: 0.02}
	cmd := Command{SteerAngle: 0.1}
	out := c.buildDiagnostics(ref, mpcData{}, m, cmd, 0.12, state)

	if len(out) != diagLen {
		t.Fatalf("len(diagnostics) = %d, want %d", len(out), diagLen)
	}
	for _, idx := range []int{DiagLatError, DiagYawError, DiagYawRef, DiagVelocityRef, DiagCurvatureSmoothed, DiagCurvatureRaw, DiagLatErrorRaw} {
		if out[idx] != 0 {
			t.Errorf("diagnostics[%d] = %g with failed lookups, want 0", idx, out[idx])
		}
	}
	// fields independent of the lookups stay populated
	if out[DiagSteerCmd] != cmd.SteerAngle {
		t.Errorf("DiagSteerCmd = %g, want %g", out[DiagSteerCmd], cmd.SteerAngle)
	}
	if out[DiagSteerCmdRaw] != 0.12 {
		t.Errorf("DiagSteerCmdRaw = %g, want 0.12", out[DiagSteerCmdRaw])
	}
	if out[DiagSteerMeasured] != state.Steer {
		t.Errorf("DiagSteerMeasured = %g, want %g", out[DiagSteerMeasured], state.Steer)
	}
}
