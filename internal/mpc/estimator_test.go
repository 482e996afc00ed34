package mpc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/config"
	"github.com/banshee-data/steer.control/internal/mpc/qpsolver"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
)

func TestDelayCompensationIdentityWithoutDelay(t *testing.T) {
	tc := config.EmptyTuningConfig()
	cfg := ConfigFromTuning(tc)
	cfg.InputDelay = 0 // empty delay buffer
	model, _ := vehicle.New(vehicle.Kinematics, VehicleParamsFromTuning(tc))
	c, err := New(cfg, model, qpsolver.NewADMM())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.InputBufferLen() != 0 {
		t.Fatalf("InputBufferLen() = %d, want 0", c.InputBufferLen())
	}

	ref := straightRef(100, 1, 10)
	x0 := mat.NewVecDense(3, []float64{0.3, 0.05, 0.02})
	got, err := c.updateStateForDelayCompensation(ref, 1.0, x0)
	if err != nil {
		t.Fatalf("updateStateForDelayCompensation: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got.AtVec(i) != x0.AtVec(i) {
			t.Errorf("x[%d] = %f, want %f unchanged", i, got.AtVec(i), x0.AtVec(i))
		}
	}
}

func TestDelayCompensationAdvancesState(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics)
	c.inputBuffer.Fill(0.1) // pending left-steer commands

	ref := straightRef(100, 1, 10)
	x0 := mat.NewVecDense(3, nil)
	got, err := c.updateStateForDelayCompensation(ref, 1.0, x0)
	if err != nil {
		t.Fatalf("updateStateForDelayCompensation: %v", err)
	}
	// pending left commands pull the steering state left and the vehicle off
	// the straight path
	if got.AtVec(2) <= 0 {
		t.Errorf("steer state = %f after left commands, want > 0", got.AtVec(2))
	}
	if got.AtVec(0) < 0 {
		t.Errorf("lateral error = %f after left commands, want >= 0", got.AtVec(0))
	}
	// the original initial state is untouched
	if x0.AtVec(2) != 0 {
		t.Error("updateStateForDelayCompensation mutated its input")
	}
}

func TestDelayCompensationOutOfDomain(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics)
	ref := straightRef(100, 1, 10) // 10 s long, no guard point here
	x0 := mat.NewVecDense(3, nil)
	if _, err := c.updateStateForDelayCompensation(ref, 9.99, x0); err == nil {
		t.Fatal("accepted a start time whose delay window leaves the trajectory")
	}
}

func TestPredictSteerDisabledPassesThrough(t *testing.T) {
	c := newTestController(t, vehicle.Kinematics) // use_steer_prediction defaults off
	c.inputBuffer.Fill(0.5)
	if got := c.predictSteer(0.1); got != 0.1 {
		t.Errorf("predictSteer = %f, want 0.1 (prediction disabled)", got)
	}
}

func TestPredictSteerApproachesBufferedCommand(t *testing.T) {
	tc := config.EmptyTuningConfig()
	cfg := ConfigFromTuning(tc)
	cfg.UseSteerPrediction = true
	model, _ := vehicle.New(vehicle.Kinematics, VehicleParamsFromTuning(tc))
	c, err := New(cfg, model, qpsolver.NewADMM())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.inputBuffer.Fill(0.5)
	got := c.predictSteer(0.1)
	if got <= 0.1 || got >= 0.5 {
		t.Errorf("predictSteer = %f, want in (0.1, 0.5)", got)
	}
}

func TestInitialStateLayouts(t *testing.T) {
	d := mpcData{lateralErr: 0.3, yawErr: 0.05, steer: 0.02, predictedSteer: 0.04}

	k := newTestController(t, vehicle.Kinematics)
	x0, _ := k.initialState(d)
	if x0.Len() != 3 {
		t.Fatalf("kinematics x0 len = %d, want 3", x0.Len())
	}
	if x0.AtVec(0) != 0.3 || x0.AtVec(1) != 0.05 || x0.AtVec(2) != 0.02 {
		t.Errorf("kinematics x0 = %v", mat.Formatted(x0.T()))
	}

	nd := newTestController(t, vehicle.KinematicsNoDelay)
	x0, _ = nd.initialState(d)
	if x0.Len() != 2 {
		t.Fatalf("no-delay x0 len = %d, want 2", x0.Len())
	}

	dy := newTestController(t, vehicle.Dynamics)
	x0, pending := dy.initialState(d)
	if x0.Len() != 4 {
		t.Fatalf("dynamics x0 len = %d, want 4", x0.Len())
	}
	if !pending.active {
		t.Error("dynamics initialState returned an inactive pending update")
	}
	// commit moves the error memory used for the next finite difference
	pending.commit(dy)
	if dy.latErrPrev != 0.3 || dy.yawErrPrev != 0.05 {
		t.Errorf("commit: latErrPrev=%f yawErrPrev=%f, want 0.3/0.05", dy.latErrPrev, dy.yawErrPrev)
	}

	// a discarded pending update must not leak into the controller
	dy2 := newTestController(t, vehicle.Dynamics)
	_, _ = dy2.initialState(d)
	if dy2.latErrPrev != 0 || dy2.yawErrPrev != 0 {
		t.Error("initialState mutated controller state without commit")
	}
}

func TestInitialStateUsesPredictedSteer(t *testing.T) {
	tc := config.EmptyTuningConfig()
	cfg := ConfigFromTuning(tc)
	cfg.UseSteerPrediction = true
	model, _ := vehicle.New(vehicle.Kinematics, VehicleParamsFromTuning(tc))
	c, err := New(cfg, model, qpsolver.NewADMM())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := mpcData{steer: 0.02, predictedSteer: 0.04}
	x0, _ := c.initialState(d)
	if x0.AtVec(2) != 0.04 {
		t.Errorf("steer state = %f, want predicted 0.04", x0.AtVec(2))
	}
	if math.Abs(x0.AtVec(0)) > 0 || math.Abs(x0.AtVec(1)) > 0 {
		t.Errorf("error states = (%f, %f), want 0", x0.AtVec(0), x0.AtVec(1))
	}
}
