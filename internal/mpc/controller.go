// Package mpc implements the model-predictive lateral steering controller.
// Each control cycle linearizes the vehicle error dynamics along the
// reference trajectory, builds a finite-horizon quadratic cost with adaptive
// weights, and solves a constrained QP for the steering sequence; only the
// first action is applied (receding horizon).
package mpc

import (
	"fmt"
	"time"

	"github.com/banshee-data/steer.control/internal/config"
	"github.com/banshee-data/steer.control/internal/filters"
	"github.com/banshee-data/steer.control/internal/mpc/qpsolver"
	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
	"github.com/banshee-data/steer.control/internal/ringbuf"
	"github.com/banshee-data/steer.control/internal/units"
)

// guardTime is appended to the terminal trajectory point so a short
// reference never starves the prediction horizon.
const guardTime = 100.0 // [s]

// Config holds the resolved controller parameters. Build it from a
// TuningConfig with ConfigFromTuning; angle fields are radians here.
type Config struct {
	PredictionHorizon   int
	PredictionDtFloor   float64
	ControlPeriod       float64
	InputDelay          float64
	MinPredictionLength float64

	AdmissiblePositionError float64
	AdmissibleYawError      float64 // [rad]
	NearestDistThreshold    float64
	NearestYawThreshold     float64 // [rad]

	SteerLimit           float64 // [rad]
	SteerRateLimitByVel  []config.RateLimitEntry
	SteerRateLimitByCurv []config.RateLimitEntry

	WeightTable          []config.WeightRow
	TerminalLatError     float64
	TerminalHeadingError float64
	SteerRateWeight      float64
	SteerAccWeight       float64
	ZeroFeedForward      float64 // [rad]

	SteeringLpfCutoffHz   float64
	ErrorDerivLpfCutoffHz float64

	AccelerationLimit    float64
	VelocityTimeConstant float64

	UseSteerPrediction bool
	SteerTau           float64
}

// FilteringConfig controls reference-trajectory preprocessing on ingest.
type FilteringConfig struct {
	ResampleDist         float64
	EnablePathSmoothing  bool
	MovingAverageNum     int
	CurvatureSmoothing   int
	RefSteerCurvSmoothing int
	ExtendForEndYaw      bool
}

// ConfigFromTuning resolves a TuningConfig into controller parameters.
func ConfigFromTuning(c *config.TuningConfig) Config {
	return Config{
		PredictionHorizon:       c.GetPredictionHorizon(),
		PredictionDtFloor:       c.GetPredictionDtFloor(),
		ControlPeriod:           c.GetControlPeriod(),
		InputDelay:              c.GetInputDelay(),
		MinPredictionLength:     c.GetMinPredictionLength(),
		AdmissiblePositionError: c.GetAdmissiblePositionError(),
		AdmissibleYawError:      units.Deg2Rad(c.GetAdmissibleYawErrorDeg()),
		NearestDistThreshold:    c.GetNearestDistThreshold(),
		NearestYawThreshold:     units.Deg2Rad(c.GetNearestYawThresholdDeg()),
		SteerLimit:              units.Deg2Rad(c.GetSteerLimitDeg()),
		SteerRateLimitByVel:     c.GetSteerRateLimitByVel(),
		SteerRateLimitByCurv:    c.GetSteerRateLimitByCurv(),
		WeightTable:             c.GetWeightTable(),
		TerminalLatError:        c.GetTerminalLatError(),
		TerminalHeadingError:    c.GetTerminalHeadingError(),
		SteerRateWeight:         c.GetSteerRateWeight(),
		SteerAccWeight:          c.GetSteerAccWeight(),
		ZeroFeedForward:         units.Deg2Rad(c.GetZeroFeedForwardDeg()),
		SteeringLpfCutoffHz:     c.GetSteeringLpfCutoffHz(),
		ErrorDerivLpfCutoffHz:   c.GetErrorDerivLpfCutoffHz(),
		AccelerationLimit:       c.GetAccelerationLimit(),
		VelocityTimeConstant:    c.GetVelocityTimeConstant(),
		UseSteerPrediction:      c.GetUseSteerPrediction(),
		SteerTau:                c.GetSteerTau(),
	}
}

// VehicleParamsFromTuning resolves the vehicle geometry and tire parameters.
func VehicleParamsFromTuning(c *config.TuningConfig) vehicle.Params {
	return vehicle.Params{
		Wheelbase:       c.GetWheelbase(),
		SteerLimit:      units.Deg2Rad(c.GetSteerLimitDeg()),
		SteerTau:        c.GetSteerTau(),
		Mass:            c.GetMassKg(),
		MassFrontRatio:  c.GetMassFrontRatio(),
		CorneringFront:  c.GetCorneringFront(),
		CorneringRear:   c.GetCorneringRear(),
		InertiaYawRatio: c.GetInertiaYawRatio(),
	}
}

// FilteringFromTuning resolves the trajectory preprocessing parameters.
func FilteringFromTuning(c *config.TuningConfig) FilteringConfig {
	return FilteringConfig{
		ResampleDist:          c.GetTrajResampleDist(),
		EnablePathSmoothing:   c.GetEnablePathSmoothing(),
		MovingAverageNum:      c.GetPathFilterMovingAveNum(),
		CurvatureSmoothing:    c.GetCurvatureSmoothingNum(),
		RefSteerCurvSmoothing: c.GetCurvatureSmoothingNumRef(),
		ExtendForEndYaw:       c.GetExtendTrajectoryForYaw(),
	}
}

// VehicleState is the measured vehicle state fed into one control cycle.
type VehicleState struct {
	Pose     trajectory.Pose
	Velocity float64 // [m/s]
	Steer    float64 // measured steering angle [rad]
}

// Command is the steering command produced by a successful cycle.
type Command struct {
	SteerAngle float64 // [rad]
	SteerRate  float64 // [rad/s]
}

// Result bundles the cycle outputs.
type Result struct {
	Command             Command
	PredictedTrajectory *trajectory.Trajectory // world frame, clipped to reference length
	PredictedFrenet     *trajectory.Trajectory // path-relative frame
	Diagnostics         []float64              // see diag.go for the index contract
}

// Controller runs the MPC pipeline. It is not safe for concurrent use:
// SetReferenceTrajectory and Run must be serialized by the caller, matching
// the single-threaded control-loop execution model.
type Controller struct {
	cfg    Config
	model  vehicle.Model
	solver qpsolver.Solver

	ref          *trajectory.Trajectory // preprocessed reference
	rawRef       *trajectory.Trajectory // as-received reference, for diagnostics
	forwardShift bool

	// persistent cycle state; mutated only on full cycle success
	inputBuffer   *ringbuf.Buffer
	rawSteerPrev  float64
	rawSteerPPrev float64
	latErrPrev    float64
	yawErrPrev    float64
	lpfSteerCmd   *filters.LowPass
	lpfLatErr     *filters.LowPass
	lpfYawErr     *filters.LowPass

	warn *warnThrottle
}

// New builds a Controller with the injected vehicle model and QP solver.
func New(cfg Config, model vehicle.Model, solver qpsolver.Solver) (*Controller, error) {
	if model == nil {
		return nil, fmt.Errorf("mpc: nil vehicle model")
	}
	if solver == nil {
		return nil, fmt.Errorf("mpc: nil QP solver")
	}
	if cfg.PredictionHorizon < 2 {
		return nil, fmt.Errorf("mpc: prediction horizon must be >= 2, got %d", cfg.PredictionHorizon)
	}
	if cfg.ControlPeriod <= 0 {
		return nil, fmt.Errorf("mpc: control period must be positive, got %f", cfg.ControlPeriod)
	}
	delaySteps := int(cfg.InputDelay/cfg.ControlPeriod + 0.5)
	return &Controller{
		cfg:          cfg,
		model:        model,
		solver:       solver,
		forwardShift: true,
		inputBuffer:  ringbuf.NewFilled(delaySteps, 0),
		lpfSteerCmd:  filters.NewLowPass(cfg.SteeringLpfCutoffHz, cfg.ControlPeriod),
		lpfLatErr:    filters.NewLowPass(cfg.ErrorDerivLpfCutoffHz, cfg.ControlPeriod),
		lpfYawErr:    filters.NewLowPass(cfg.ErrorDerivLpfCutoffHz, cfg.ControlPeriod),
		warn:         newWarnThrottle(2 * time.Second),
	}, nil
}

// HasTrajectory reports whether a reference trajectory has been set.
func (c *Controller) HasTrajectory() bool { return c.ref != nil }

// InputBufferLen returns the delay-buffer length (fixed at construction).
func (c *Controller) InputBufferLen() int { return c.inputBuffer.Len() }

// ResetPrevResult re-seeds the raw-command memory from the measured steering
// angle, clamped so the rate-limit constraint anchored to it stays feasible.
func (c *Controller) ResetPrevResult(steer float64) {
	s := units.Clamp(steer, -c.cfg.SteerLimit, c.cfg.SteerLimit)
	c.rawSteerPrev = s
	c.rawSteerPPrev = s
}

// SetReferenceTrajectory ingests a new reference path, replacing the stored
// trajectory wholesale. The input is resampled by distance anchored at the
// vehicle's projection, optionally smoothed, its yaw and curvature are
// recomputed, and a stopped terminal guard point is appended.
func (c *Controller) SetReferenceTrajectory(in *trajectory.Trajectory, fp FilteringConfig, pose trajectory.Pose) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("mpc: reference trajectory: %w", err)
	}
	if in.Len() < 2 {
		return fmt.Errorf("mpc: reference trajectory: %w", trajectory.ErrTooShort)
	}
	c.rawRef = in.Clone()

	segIdx := in.NearestIndexSoft(pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold)
	offset := longitudinalOffsetToSegment(in, segIdx, pose)

	resampled, err := in.ResampleByDistance(fp.ResampleDist, offset)
	if err != nil {
		return fmt.Errorf("mpc: resample by distance: %w", err)
	}

	if fwd, known := resampled.IsDrivingForward(); known {
		c.forwardShift = fwd
	}

	smoothed := resampled
	if fp.EnablePathSmoothing && resampled.Len() > 2*fp.MovingAverageNum {
		ok := filters.MovingAverage(fp.MovingAverageNum, smoothed.X) &&
			filters.MovingAverage(fp.MovingAverageNum, smoothed.Y) &&
			filters.MovingAverage(fp.MovingAverageNum, smoothed.Yaw) &&
			filters.MovingAverage(fp.MovingAverageNum, smoothed.VX)
		if !ok {
			c.warn.Warnf("smooth", "mpc: path smoothing skipped, trajectory too short for window %d", fp.MovingAverageNum)
		}
	}

	if fp.ExtendForEndYaw {
		endYaw := c.rawRef.Yaw[c.rawRef.Len()-1]
		const extendDist = 10.0 // [m]
		smoothed.ExtendInYawDirection(endYaw, fp.ResampleDist, c.forwardShift, extendDist)
	}

	smoothed.CalcYawFromXY(c.forwardShift)
	trajectory.MakeYawMonotonic(smoothed.Yaw)
	smoothed.CalcCurvature(fp.CurvatureSmoothing, fp.RefSteerCurvSmoothing)

	// smoothing moved the points; relative time must follow
	smoothed.RecalcTime()

	c.ref = smoothed
	return nil
}

// longitudinalOffsetToSegment returns the along-segment distance from the
// segment start to the pose projection.
func longitudinalOffsetToSegment(t *trajectory.Trajectory, seg int, pose trajectory.Pose) float64 {
	if seg+1 >= t.Len() {
		return 0
	}
	vx, vy := t.X[seg+1]-t.X[seg], t.Y[seg+1]-t.Y[seg]
	segLen := t.Distance(seg+1, seg)
	if segLen < 1e-9 {
		return 0
	}
	return ((pose.X-t.X[seg])*vx + (pose.Y-t.Y[seg])*vy) / segLen
}

// Run executes one control cycle. On any failure the persisted state
// (delay buffer, raw command memory, filter states) is left exactly as it
// was before the call.
func (c *Controller) Run(state VehicleState) (Result, error) {
	if c.ref == nil {
		return Result{}, ErrNoTrajectory
	}

	// the stored reference ignores the vehicle's current speed; filter the
	// velocity profile through the longitudinal dynamics first
	ref := c.applyVelocityDynamicsFilter(c.ref, state)

	data, err := c.getData(ref, state)
	if err != nil {
		c.warn.Warnf("data", "mpc: %v, stopping cycle", err)
		return Result{}, err
	}

	x0, pending := c.initialState(data)

	x0Delayed, err := c.updateStateForDelayCompensation(ref, data.nearestTime, x0)
	if err != nil {
		c.warn.Warnf("delay", "mpc: %v, stopping cycle", err)
		return Result{}, err
	}

	mpcStartTime := data.nearestTime + c.cfg.InputDelay
	predictionDt := c.predictionDeltaTime(mpcStartTime, ref, state.Pose)

	resampled, err := c.resampleByTime(mpcStartTime, predictionDt, ref)
	if err != nil {
		c.warn.Warnf("resample", "mpc: %v, stopping cycle", err)
		return Result{}, err
	}

	m := c.generateMPCMatrix(resampled, predictionDt)

	uex, err := c.executeOptimization(m, x0Delayed, predictionDt, resampled, state.Velocity)
	if err != nil {
		c.warn.Warnf("opt", "mpc: %v, stopping cycle", err)
		return Result{}, err
	}

	uRaw := uex.AtVec(0)
	uSaturated := units.Clamp(uRaw, -c.cfg.SteerLimit, c.cfg.SteerLimit)
	uFiltered := c.lpfSteerCmd.Peek(uSaturated)

	cmd := Command{
		SteerAngle: uFiltered,
		SteerRate:  c.desiredSteeringRate(m, x0Delayed, uex, uFiltered, state.Steer, predictionDt),
	}

	world, frenet := c.predictedTrajectory(m, x0, uex, resampled)

	diag := c.buildDiagnostics(resampled, data, m, cmd, uRaw, state)

	// commit persisted state only now that the cycle has fully succeeded
	c.lpfSteerCmd.Reset(uFiltered)
	c.inputBuffer.Push(cmd.SteerAngle)
	c.rawSteerPPrev = c.rawSteerPrev
	c.rawSteerPrev = uRaw
	pending.commit(c)

	if rt := c.solver.LastStats().Runtime; rt > time.Duration(c.cfg.ControlPeriod*float64(time.Second)) {
		c.warn.Warnf("runtime", "mpc: QP runtime %v exceeded control period %.0fms", rt, c.cfg.ControlPeriod*1000)
	}

	return Result{
		Command:             cmd,
		PredictedTrajectory: world,
		PredictedFrenet:     frenet,
		Diagnostics:         diag,
	}, nil
}

// applyVelocityDynamicsFilter returns a copy of the reference whose velocity
// profile is reachable from the vehicle's current speed.
func (c *Controller) applyVelocityDynamicsFilter(in *trajectory.Trajectory, state VehicleState) *trajectory.Trajectory {
	out := in.Clone()
	if out.Len() == 0 {
		return out
	}
	segIdx := out.NearestIndexSoft(state.Pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold)
	out.SmoothVelocityDynamics(segIdx, state.Velocity, c.cfg.AccelerationLimit, c.cfg.VelocityTimeConstant)

	// stop at the terminal point and append a long-dwell guard point so a
	// short reference never starves the horizon
	out.VX[out.Len()-1] = 0
	last := out.Back()
	last.Time += guardTime
	last.VX = 0
	out.Push(last)
	return out
}
