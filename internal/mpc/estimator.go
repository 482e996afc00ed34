package mpc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
)

// mpcData is the per-cycle error state measured against one trajectory.
type mpcData struct {
	nearestPose    trajectory.Pose
	nearestIdx     int
	nearestTime    float64
	steer          float64
	predictedSteer float64
	lateralErr     float64
	yawErr         float64
}

// getData locates the vehicle on the trajectory and validates admissibility.
func (c *Controller) getData(traj *trajectory.Trajectory, state VehicleState) (mpcData, error) {
	nearest, ok := traj.CalcNearestPoseInterp(state.Pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold)
	if !ok {
		return mpcData{}, ErrNearestSearch
	}

	d := mpcData{
		nearestPose:    nearest.Pose,
		nearestIdx:     nearest.Index,
		nearestTime:    nearest.Time,
		steer:          state.Steer,
		predictedSteer: c.predictSteer(state.Steer),
		lateralErr:     trajectory.LateralError(state.Pose, nearest.Pose),
		yawErr:         trajectory.NormalizeRadian(state.Pose.Yaw - nearest.Pose.Yaw),
	}

	distErr := math.Hypot(state.Pose.X-nearest.Pose.X, state.Pose.Y-nearest.Pose.Y)
	if distErr > c.cfg.AdmissiblePositionError {
		return mpcData{}, fmt.Errorf("%w: %.2fm > %.2fm", ErrPositionError, distErr, c.cfg.AdmissiblePositionError)
	}
	if math.Abs(d.yawErr) > c.cfg.AdmissibleYawError {
		return mpcData{}, fmt.Errorf("%w: %.3frad > %.3frad", ErrHeadingError, math.Abs(d.yawErr), c.cfg.AdmissibleYawError)
	}

	// the horizon must fit inside the remaining trajectory time
	maxPredictionTime := c.cfg.MinPredictionLength / float64(c.cfg.PredictionHorizon-1)
	endTime := d.nearestTime + c.cfg.InputDelay + c.cfg.ControlPeriod + maxPredictionTime
	if endTime > traj.Time[traj.Len()-1] {
		return mpcData{}, fmt.Errorf("%w: need %.2fs, have %.2fs", ErrTrajectoryTooShort, endTime, traj.Time[traj.Len()-1])
	}
	return d, nil
}

// predictSteer propagates the measured steering through the buffered command
// history with the first-order actuator lag, estimating the angle the
// actuator will have reached once the delayed commands take effect.
func (c *Controller) predictSteer(measured float64) float64 {
	if !c.cfg.UseSteerPrediction || c.cfg.SteerTau <= 0 {
		return measured
	}
	steer := measured
	alpha := 1 - math.Exp(-c.cfg.ControlPeriod/c.cfg.SteerTau)
	for i := 0; i < c.inputBuffer.Len(); i++ {
		steer += (c.inputBuffer.At(i) - steer) * alpha
	}
	return steer
}

// pendingState carries the deferred error-derivative updates of the dynamic
// model variant. They are committed only when the cycle succeeds so a failed
// cycle cannot disturb the next cycle's finite differences.
type pendingState struct {
	active      bool
	latErr      float64
	yawErr      float64
	latErrDeriv float64
	yawErrDeriv float64
}

func (p pendingState) commit(c *Controller) {
	if !p.active {
		return
	}
	c.latErrPrev = p.latErr
	c.yawErrPrev = p.yawErr
	c.lpfLatErr.Reset(p.latErrDeriv)
	c.lpfYawErr.Reset(p.yawErrDeriv)
}

// initialState builds the error-state vector for the configured model
// variant. The steering component uses the actuator-predicted steer when
// steer prediction is enabled.
func (c *Controller) initialState(d mpcData) (*mat.VecDense, pendingState) {
	steer := d.steer
	if c.cfg.UseSteerPrediction {
		steer = d.predictedSteer
	}

	switch c.model.Variant() {
	case vehicle.Kinematics:
		return mat.NewVecDense(3, []float64{d.lateralErr, d.yawErr, steer}), pendingState{}
	case vehicle.KinematicsNoDelay:
		return mat.NewVecDense(2, []float64{d.lateralErr, d.yawErr}), pendingState{}
	case vehicle.Dynamics:
		dlat := (d.lateralErr - c.latErrPrev) / c.cfg.ControlPeriod
		dyaw := (d.yawErr - c.yawErrPrev) / c.cfg.ControlPeriod
		dlatF := c.lpfLatErr.Peek(dlat)
		dyawF := c.lpfYawErr.Peek(dyaw)
		x0 := mat.NewVecDense(4, []float64{d.lateralErr, dlatF, d.yawErr, dyawF})
		return x0, pendingState{
			active:      true,
			latErr:      d.lateralErr,
			yawErr:      d.yawErr,
			latErrDeriv: dlatF,
			yawErrDeriv: dyawF,
		}
	default:
		// construction rejects unknown variants; this is unreachable
		panic(fmt.Sprintf("mpc: unhandled vehicle model variant %q", c.model.Variant()))
	}
}
