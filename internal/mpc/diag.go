package mpc

import (
	"math"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/units"
)

// Diagnostics vector indices. The layout is a stable contract for downstream
// log analysis; append new fields, never reorder.
const (
	DiagSteerCmd          = iota // final published steering angle [rad]
	DiagSteerCmdRaw              // first optimized input, unclamped [rad]
	DiagSteerFF                  // feed-forward term of the first input [rad]
	DiagSteerFFSmoothed          // atan(smoothed curvature * wheelbase) [rad]
	DiagSteerMeasured            // measured steering angle [rad]
	DiagLatError                 // lateral error vs resampled reference [m]
	DiagYawMeasured              // vehicle yaw [rad]
	DiagYawRef                   // reference yaw at nearest pose [rad]
	DiagYawError                 // heading error [rad]
	DiagVelocityRef              // reference velocity at nearest point [m/s]
	DiagVelocityMeasured         // measured velocity [m/s]
	DiagYawRateCmd               // yaw rate implied by the command [rad/s]
	DiagYawRateMeasured          // yaw rate implied by measured steer [rad/s]
	DiagYawRateRef               // velocity * smoothed curvature [rad/s]
	DiagCurvatureSmoothed        // smoothed curvature at nearest point [1/m]
	DiagCurvatureRaw             // raw curvature at nearest point [1/m]
	DiagSteerPredicted           // actuator-predicted steering angle [rad]
	DiagYawRatePredicted         // yaw rate implied by predicted steer [rad/s]
	DiagQPIterations             // solver iteration count
	DiagQPRuntime                // solver runtime [s]
	DiagQPObjective              // objective value at the solution
	DiagSteerCmdClamped          // first optimized input after clamping [rad]
	DiagLatErrorRaw              // lateral error vs as-received trajectory [m]

	diagLen
)

// buildDiagnostics assembles the per-cycle diagnostics vector. Everything
// here is observational: lookups that cannot be satisfied report zero instead
// of failing the cycle.
func (c *Controller) buildDiagnostics(resampled *trajectory.Trajectory, d mpcData, m mpcMatrix, cmd Command, uRaw float64, state VehicleState) []float64 {
	wb := c.model.Wheelbase()
	yawRate := func(steer float64) float64 {
		return state.Velocity * math.Tan(steer) / wb
	}

	// error state against the horizon-resampled reference
	var latErr, yawErr, refYaw, refVX, smoothK, rawK float64
	if np, ok := resampled.CalcNearestPoseInterp(state.Pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold); ok {
		latErr = trajectory.LateralError(state.Pose, np.Pose)
		yawErr = trajectory.NormalizeRadian(state.Pose.Yaw - np.Pose.Yaw)
		refYaw = np.Pose.Yaw
		refVX = resampled.VX[np.Index]
		smoothK = resampled.SmoothK[np.Index]
		rawK = resampled.K[np.Index]
	} else {
		c.warn.Warnf("diag-nearest", "mpc: diagnostics nearest-pose lookup failed, error fields report zero")
	}

	// lateral error against the trajectory as received, before preprocessing
	var latErrRaw float64
	if c.rawRef != nil {
		if np, ok := c.rawRef.CalcNearestPoseInterp(state.Pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold); ok {
			latErrRaw = trajectory.LateralError(state.Pose, np.Pose)
		} else {
			c.warn.Warnf("diag-nearest-raw", "mpc: diagnostics lookup on the as-received trajectory failed, raw lateral error reports zero")
		}
	}

	stats := c.solver.LastStats()

	out := make([]float64, diagLen)
	out[DiagSteerCmd] = cmd.SteerAngle
	out[DiagSteerCmdRaw] = uRaw
	out[DiagSteerFF] = m.UrefEx.AtVec(0)
	out[DiagSteerFFSmoothed] = math.Atan(smoothK * wb)
	out[DiagSteerMeasured] = state.Steer
	out[DiagLatError] = latErr
	out[DiagYawMeasured] = state.Pose.Yaw
	out[DiagYawRef] = refYaw
	out[DiagYawError] = yawErr
	out[DiagVelocityRef] = refVX
	out[DiagVelocityMeasured] = state.Velocity
	out[DiagYawRateCmd] = yawRate(cmd.SteerAngle)
	out[DiagYawRateMeasured] = yawRate(state.Steer)
	out[DiagYawRateRef] = state.Velocity * smoothK
	out[DiagCurvatureSmoothed] = smoothK
	out[DiagCurvatureRaw] = rawK
	out[DiagSteerPredicted] = d.predictedSteer
	out[DiagYawRatePredicted] = yawRate(d.predictedSteer)
	out[DiagQPIterations] = float64(stats.Iterations)
	out[DiagQPRuntime] = stats.Runtime.Seconds()
	out[DiagQPObjective] = stats.Objective
	out[DiagSteerCmdClamped] = units.Clamp(uRaw, -c.cfg.SteerLimit, c.cfg.SteerLimit)
	out[DiagLatErrorRaw] = latErrRaw
	return out
}
