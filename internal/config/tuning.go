// Package config loads the controller tuning parameters from JSON. Fields
// omitted from the JSON file fall back to defaults through the Get* methods,
// so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// WeightRow is one row of the curvature-indexed weight table. A row applies
// to horizon steps whose reference curvature magnitude is at most
// MaxCurvature; the last row catches everything above.
type WeightRow struct {
	MaxCurvature            float64 `json:"max_curvature"`
	LatError                float64 `json:"lat_error"`
	HeadingError            float64 `json:"heading_error"`
	HeadingErrorSquaredVel  float64 `json:"heading_error_squared_vel"`
	SteeringInput           float64 `json:"steering_input"`
	SteeringInputSquaredVel float64 `json:"steering_input_squared_vel"`
	LatJerk                 float64 `json:"lat_jerk"`
}

// RateLimitEntry maps a scheduling key (velocity or curvature) to a steering
// rate limit.
type RateLimitEntry struct {
	Key   float64 `json:"key"`
	Limit float64 `json:"limit"` // [rad/s]
}

// TuningConfig represents the root configuration for the MPC controller.
// Pointer fields distinguish "absent" from zero.
type TuningConfig struct {
	// Horizon and timing
	PredictionHorizon   *int     `json:"prediction_horizon,omitempty"`
	PredictionDtFloor   *float64 `json:"prediction_dt_floor,omitempty"`   // [s]
	ControlPeriod       *float64 `json:"control_period,omitempty"`        // [s]
	InputDelay          *float64 `json:"input_delay,omitempty"`           // [s]
	MinPredictionLength *float64 `json:"min_prediction_length,omitempty"` // [m]

	// Admissibility
	AdmissiblePositionError *float64 `json:"admissible_position_error,omitempty"` // [m]
	AdmissibleYawErrorDeg   *float64 `json:"admissible_yaw_error_deg,omitempty"`
	NearestDistThreshold    *float64 `json:"nearest_dist_threshold,omitempty"` // [m]
	NearestYawThresholdDeg  *float64 `json:"nearest_yaw_threshold_deg,omitempty"`

	// Actuator limits
	SteerLimitDeg        *float64         `json:"steer_limit_deg,omitempty"`
	SteerRateLimitByVel  []RateLimitEntry `json:"steer_rate_limit_by_velocity,omitempty"`
	SteerRateLimitByCurv []RateLimitEntry `json:"steer_rate_limit_by_curvature,omitempty"`

	// Cost weights
	WeightTable          []WeightRow `json:"weight_table,omitempty"`
	TerminalLatError     *float64    `json:"terminal_lat_error,omitempty"`
	TerminalHeadingError *float64    `json:"terminal_heading_error,omitempty"`
	SteerRateWeight      *float64    `json:"steer_rate_weight,omitempty"`
	SteerAccWeight       *float64    `json:"steer_acc_weight,omitempty"`
	ZeroFeedForwardDeg   *float64    `json:"zero_ff_steer_deg,omitempty"`

	// Filters
	SteeringLpfCutoffHz   *float64 `json:"steering_lpf_cutoff_hz,omitempty"`
	ErrorDerivLpfCutoffHz *float64 `json:"error_deriv_lpf_cutoff_hz,omitempty"`

	// Velocity dynamics
	AccelerationLimit    *float64 `json:"acceleration_limit,omitempty"`     // [m/s^2]
	VelocityTimeConstant *float64 `json:"velocity_time_constant,omitempty"` // [s]

	// Trajectory preprocessing
	TrajResampleDist         *float64 `json:"traj_resample_dist,omitempty"` // [m]
	EnablePathSmoothing      *bool    `json:"enable_path_smoothing,omitempty"`
	PathFilterMovingAveNum   *int     `json:"path_filter_moving_ave_num,omitempty"`
	CurvatureSmoothingNum    *int     `json:"curvature_smoothing_num_traj,omitempty"`
	CurvatureSmoothingNumRef *int     `json:"curvature_smoothing_num_ref_steer,omitempty"`
	ExtendTrajectoryForYaw   *bool    `json:"extend_trajectory_for_end_yaw_control,omitempty"`

	// Vehicle
	VehicleModel       *string  `json:"vehicle_model,omitempty"`
	Wheelbase          *float64 `json:"wheelbase,omitempty"` // [m]
	SteerTau           *float64 `json:"steer_tau,omitempty"` // [s]
	MassKg             *float64 `json:"mass_kg,omitempty"`
	MassFrontRatio     *float64 `json:"mass_front_ratio,omitempty"`
	CorneringFront     *float64 `json:"cornering_stiffness_front,omitempty"` // [N/rad]
	CorneringRear      *float64 `json:"cornering_stiffness_rear,omitempty"`  // [N/rad]
	InertiaYawRatio    *float64 `json:"inertia_yaw_ratio,omitempty"`         // Iz = ratio * m * lf * lr
	UseSteerPrediction *bool    `json:"use_steer_prediction,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be under the size cap.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics when
// the file cannot be found; intended for tests and binaries that have already
// validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/mpc/...
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate rejects values that would make the controller unusable.
func (c *TuningConfig) Validate() error {
	if c.PredictionHorizon != nil && *c.PredictionHorizon < 2 {
		return fmt.Errorf("prediction_horizon must be >= 2, got %d", *c.PredictionHorizon)
	}
	if c.ControlPeriod != nil && *c.ControlPeriod <= 0 {
		return fmt.Errorf("control_period must be positive, got %f", *c.ControlPeriod)
	}
	if c.PredictionDtFloor != nil && *c.PredictionDtFloor <= 0 {
		return fmt.Errorf("prediction_dt_floor must be positive, got %f", *c.PredictionDtFloor)
	}
	if c.InputDelay != nil && *c.InputDelay < 0 {
		return fmt.Errorf("input_delay must be non-negative, got %f", *c.InputDelay)
	}
	if c.SteerLimitDeg != nil && *c.SteerLimitDeg <= 0 {
		return fmt.Errorf("steer_limit_deg must be positive, got %f", *c.SteerLimitDeg)
	}
	if c.Wheelbase != nil && *c.Wheelbase <= 0 {
		return fmt.Errorf("wheelbase must be positive, got %f", *c.Wheelbase)
	}
	for i := 1; i < len(c.WeightTable); i++ {
		if c.WeightTable[i].MaxCurvature <= c.WeightTable[i-1].MaxCurvature {
			return fmt.Errorf("weight_table max_curvature must be strictly increasing at row %d", i)
		}
	}
	return nil
}

// Get* methods return the configured value or the default.

func (c *TuningConfig) GetPredictionHorizon() int {
	if c.PredictionHorizon != nil {
		return *c.PredictionHorizon
	}
	return 50
}

func (c *TuningConfig) GetPredictionDtFloor() float64 {
	if c.PredictionDtFloor != nil {
		return *c.PredictionDtFloor
	}
	return 0.1
}

func (c *TuningConfig) GetControlPeriod() float64 {
	if c.ControlPeriod != nil {
		return *c.ControlPeriod
	}
	return 0.03
}

func (c *TuningConfig) GetInputDelay() float64 {
	if c.InputDelay != nil {
		return *c.InputDelay
	}
	return 0.24
}

func (c *TuningConfig) GetMinPredictionLength() float64 {
	if c.MinPredictionLength != nil {
		return *c.MinPredictionLength
	}
	return 5.0
}

func (c *TuningConfig) GetAdmissiblePositionError() float64 {
	if c.AdmissiblePositionError != nil {
		return *c.AdmissiblePositionError
	}
	return 5.0
}

func (c *TuningConfig) GetAdmissibleYawErrorDeg() float64 {
	if c.AdmissibleYawErrorDeg != nil {
		return *c.AdmissibleYawErrorDeg
	}
	return 90.0
}

func (c *TuningConfig) GetNearestDistThreshold() float64 {
	if c.NearestDistThreshold != nil {
		return *c.NearestDistThreshold
	}
	return 3.0
}

func (c *TuningConfig) GetNearestYawThresholdDeg() float64 {
	if c.NearestYawThresholdDeg != nil {
		return *c.NearestYawThresholdDeg
	}
	return 60.0
}

func (c *TuningConfig) GetSteerLimitDeg() float64 {
	if c.SteerLimitDeg != nil {
		return *c.SteerLimitDeg
	}
	return 40.0
}

func (c *TuningConfig) GetSteerRateLimitByVel() []RateLimitEntry {
	if len(c.SteerRateLimitByVel) > 0 {
		return c.SteerRateLimitByVel
	}
	return []RateLimitEntry{
		{Key: 10.0, Limit: 0.6},
		{Key: 15.0, Limit: 0.3},
		{Key: 20.0, Limit: 0.15},
	}
}

func (c *TuningConfig) GetSteerRateLimitByCurv() []RateLimitEntry {
	if len(c.SteerRateLimitByCurv) > 0 {
		return c.SteerRateLimitByCurv
	}
	return []RateLimitEntry{
		{Key: 0.001, Limit: 0.1},
		{Key: 0.002, Limit: 0.2},
		{Key: 0.01, Limit: 0.5},
	}
}

func (c *TuningConfig) GetWeightTable() []WeightRow {
	if len(c.WeightTable) > 0 {
		return c.WeightTable
	}
	return []WeightRow{
		// gentle curvature: prioritise smooth steering
		{
			MaxCurvature:            0.01,
			LatError:                0.1,
			HeadingError:            0.0,
			HeadingErrorSquaredVel:  0.3,
			SteeringInput:           1.0,
			SteeringInputSquaredVel: 0.25,
			LatJerk:                 0.0,
		},
		// everything sharper: nominal tracking weights
		{
			MaxCurvature:            1.0,
			LatError:                1.0,
			HeadingError:            0.0,
			HeadingErrorSquaredVel:  0.3,
			SteeringInput:           1.0,
			SteeringInputSquaredVel: 0.25,
			LatJerk:                 0.1,
		},
	}
}

func (c *TuningConfig) GetTerminalLatError() float64 {
	if c.TerminalLatError != nil {
		return *c.TerminalLatError
	}
	return 1.0
}

func (c *TuningConfig) GetTerminalHeadingError() float64 {
	if c.TerminalHeadingError != nil {
		return *c.TerminalHeadingError
	}
	return 0.1
}

func (c *TuningConfig) GetSteerRateWeight() float64 {
	if c.SteerRateWeight != nil {
		return *c.SteerRateWeight
	}
	return 0.0
}

func (c *TuningConfig) GetSteerAccWeight() float64 {
	if c.SteerAccWeight != nil {
		return *c.SteerAccWeight
	}
	return 0.000001
}

func (c *TuningConfig) GetZeroFeedForwardDeg() float64 {
	if c.ZeroFeedForwardDeg != nil {
		return *c.ZeroFeedForwardDeg
	}
	return 0.5
}

func (c *TuningConfig) GetSteeringLpfCutoffHz() float64 {
	if c.SteeringLpfCutoffHz != nil {
		return *c.SteeringLpfCutoffHz
	}
	return 3.0
}

func (c *TuningConfig) GetErrorDerivLpfCutoffHz() float64 {
	if c.ErrorDerivLpfCutoffHz != nil {
		return *c.ErrorDerivLpfCutoffHz
	}
	return 5.0
}

func (c *TuningConfig) GetAccelerationLimit() float64 {
	if c.AccelerationLimit != nil {
		return *c.AccelerationLimit
	}
	return 2.0
}

func (c *TuningConfig) GetVelocityTimeConstant() float64 {
	if c.VelocityTimeConstant != nil {
		return *c.VelocityTimeConstant
	}
	return 0.3
}

func (c *TuningConfig) GetTrajResampleDist() float64 {
	if c.TrajResampleDist != nil {
		return *c.TrajResampleDist
	}
	return 0.1
}

func (c *TuningConfig) GetEnablePathSmoothing() bool {
	if c.EnablePathSmoothing != nil {
		return *c.EnablePathSmoothing
	}
	return true
}

func (c *TuningConfig) GetPathFilterMovingAveNum() int {
	if c.PathFilterMovingAveNum != nil {
		return *c.PathFilterMovingAveNum
	}
	return 25
}

func (c *TuningConfig) GetCurvatureSmoothingNum() int {
	if c.CurvatureSmoothingNum != nil {
		return *c.CurvatureSmoothingNum
	}
	return 15
}

func (c *TuningConfig) GetCurvatureSmoothingNumRef() int {
	if c.CurvatureSmoothingNumRef != nil {
		return *c.CurvatureSmoothingNumRef
	}
	return 15
}

func (c *TuningConfig) GetExtendTrajectoryForYaw() bool {
	if c.ExtendTrajectoryForYaw != nil {
		return *c.ExtendTrajectoryForYaw
	}
	return true
}

func (c *TuningConfig) GetVehicleModel() string {
	if c.VehicleModel != nil {
		return *c.VehicleModel
	}
	return "kinematics"
}

func (c *TuningConfig) GetWheelbase() float64 {
	if c.Wheelbase != nil {
		return *c.Wheelbase
	}
	return 2.79
}

func (c *TuningConfig) GetSteerTau() float64 {
	if c.SteerTau != nil {
		return *c.SteerTau
	}
	return 0.3
}

func (c *TuningConfig) GetMassKg() float64 {
	if c.MassKg != nil {
		return *c.MassKg
	}
	return 1900.0
}

func (c *TuningConfig) GetMassFrontRatio() float64 {
	if c.MassFrontRatio != nil {
		return *c.MassFrontRatio
	}
	return 0.5
}

func (c *TuningConfig) GetCorneringFront() float64 {
	if c.CorneringFront != nil {
		return *c.CorneringFront
	}
	return 155494.0
}

func (c *TuningConfig) GetCorneringRear() float64 {
	if c.CorneringRear != nil {
		return *c.CorneringRear
	}
	return 155494.0
}

func (c *TuningConfig) GetInertiaYawRatio() float64 {
	if c.InertiaYawRatio != nil {
		return *c.InertiaYawRatio
	}
	return 1.0
}

func (c *TuningConfig) GetUseSteerPrediction() bool {
	if c.UseSteerPrediction != nil {
		return *c.UseSteerPrediction
	}
	return false
}
