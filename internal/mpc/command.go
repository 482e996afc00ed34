package mpc

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
)

// stackedStates evaluates the prediction model for the optimized input
// sequence: Xex = Aex*x0 + Bex*Uex + Wex.
func stackedStates(m mpcMatrix, x0, uex *mat.VecDense) *mat.VecDense {
	xex := mat.NewVecDense(m.Aex.RawMatrix().Rows, nil)
	xex.MulVec(m.Aex, x0)
	var bu mat.VecDense
	bu.MulVec(m.Bex, uex)
	xex.AddVec(xex, &bu)
	xex.AddVec(xex, m.Wex)
	return xex
}

// desiredSteeringRate derives the steering rate to publish alongside the
// angle. The steering-delay kinematic model carries the steering angle as a
// state, so its one-step prediction gives the rate directly; the other
// variants fall back to the first-order difference toward the filtered
// command.
func (c *Controller) desiredSteeringRate(m mpcMatrix, x0, uex *mat.VecDense, uFiltered, currentSteer, dt float64) float64 {
	if c.model.Variant() != vehicle.Kinematics {
		return (uFiltered - currentSteer) / dt
	}
	const steerIdx = 2
	xex := stackedStates(m, x0, uex)
	return (xex.AtVec(steerIdx) - x0.AtVec(steerIdx)) / dt
}

// predictedTrajectory evaluates the model along the optimized inputs and
// returns the predicted motion in the world frame, clipped to the reference
// length, plus the path-relative (frenet) form for diagnostics.
func (c *Controller) predictedTrajectory(m mpcMatrix, x0, uex *mat.VecDense, ref *trajectory.Trajectory) (*trajectory.Trajectory, *trajectory.Trajectory) {
	xex := stackedStates(m, x0, uex)
	world, frenet := c.model.PredictedTrajectory(xex, ref)
	if c.rawRef != nil {
		world = world.ClipByArcLength(c.rawRef.ArcLength())
	}
	return world, frenet
}
