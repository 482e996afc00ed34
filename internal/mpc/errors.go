package mpc

import "errors"

// Cycle failure causes. Every abort names one of these; callers are expected
// to hold the previous command or engage a safe fallback.
var (
	// ErrNoTrajectory indicates no reference trajectory has been set.
	ErrNoTrajectory = errors.New("mpc: no reference trajectory")
	// ErrNearestSearch indicates the nearest-pose search failed.
	ErrNearestSearch = errors.New("mpc: nearest pose search failed")
	// ErrPositionError indicates the lateral offset exceeds the admissible limit.
	ErrPositionError = errors.New("mpc: position error exceeds admissible limit")
	// ErrHeadingError indicates the heading error exceeds the admissible limit.
	ErrHeadingError = errors.New("mpc: heading error exceeds admissible limit")
	// ErrTrajectoryTooShort indicates the remaining path cannot cover the
	// minimum prediction length.
	ErrTrajectoryTooShort = errors.New("mpc: trajectory too short for prediction")
	// ErrResample indicates the horizon-time resampling failed.
	ErrResample = errors.New("mpc: trajectory resampling failed")
	// ErrDelayCompensation indicates the delay-compensation state rollout
	// failed (interpolation out of the trajectory time domain).
	ErrDelayCompensation = errors.New("mpc: delay compensation failed")
	// ErrOptimization indicates the QP solver failed or returned a
	// non-finite solution.
	ErrOptimization = errors.New("mpc: optimization failed")
)
