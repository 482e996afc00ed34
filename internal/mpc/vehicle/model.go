// Package vehicle provides the pluggable vehicle models consumed by the
// lateral MPC controller. Each model linearizes the error dynamics around a
// reference curvature and velocity and produces the discrete state-space
// matrices used to build the prediction equations.
package vehicle

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// Variant identifies a vehicle model implementation.
type Variant string

const (
	// Kinematics is the bicycle model with a first-order steering lag.
	// State: [lateral error, heading error, steering angle].
	Kinematics Variant = "kinematics"
	// KinematicsNoDelay is the bicycle model without steering dynamics.
	// State: [lateral error, heading error].
	KinematicsNoDelay Variant = "kinematics_no_delay"
	// Dynamics is the linear-tire dynamic bicycle model.
	// State: [lateral error, lateral error rate, heading error, heading error rate].
	Dynamics Variant = "dynamics"
)

// Model is the capability consumed by the controller. Implementations carry
// their own state dimensionality and matrix computation.
type Model interface {
	// Variant returns the model identity.
	Variant() Variant
	// DimX, DimU, DimY return the state, input and output dimensions.
	DimX() int
	DimU() int
	DimY() int
	// Wheelbase returns the wheelbase [m].
	Wheelbase() float64
	// DiscreteMatrices fills Ad, Bd, Cd, Wd for the error dynamics
	// linearized at velocity v and curvature k, discretized with step dt.
	DiscreteMatrices(Ad, Bd, Cd, Wd *mat.Dense, v, k, dt float64)
	// ReferenceInput returns the feed-forward steering input for the given
	// velocity and curvature.
	ReferenceInput(v, k float64) float64
	// PredictedTrajectory reconstructs the horizon states Xex into world
	// and path-relative (Frenet) trajectories along the resampled
	// reference.
	PredictedTrajectory(xex *mat.VecDense, ref *trajectory.Trajectory) (world, frenet *trajectory.Trajectory)
}

// Params carries the geometry and tire parameters shared by the model
// variants. Only the dynamic model reads the mass and cornering values.
type Params struct {
	Wheelbase       float64 // [m]
	SteerLimit      float64 // [rad], bounds the linearization point
	SteerTau        float64 // steering first-order lag time constant [s]
	Mass            float64 // [kg]
	MassFrontRatio  float64 // fraction of mass on the front axle
	CorneringFront  float64 // front cornering stiffness [N/rad]
	CorneringRear   float64 // rear cornering stiffness [N/rad]
	InertiaYawRatio float64 // Iz = ratio * mass * lf * lr
}

// New constructs the model for the given variant. Unrecognized variants are
// a construction-time error so the controller can never run with an
// undefined state layout.
func New(v Variant, p Params) (Model, error) {
	switch v {
	case Kinematics:
		return newKinematics(p), nil
	case KinematicsNoDelay:
		return newKinematicsNoDelay(p), nil
	case Dynamics:
		return newDynamics(p), nil
	default:
		return nil, fmt.Errorf("vehicle: unknown model variant %q", v)
	}
}

// bilinearDiscretize converts the continuous system (Ac, Bc, Wc) in place to
// its bilinear (Tustin) discretization with step dt:
//
//	Ad = (I - dt/2*Ac)^-1 * (I + dt/2*Ac)
//	Bd = (I - dt/2*Ac)^-1 * dt * Bc
//	Wd = (I - dt/2*Ac)^-1 * dt * Wc
func bilinearDiscretize(Ad, Bd, Wd *mat.Dense, dt float64) {
	n, _ := Ad.Dims()
	eye := identity(n)

	var m1, m2 mat.Dense // I - dt/2*A, I + dt/2*A
	m1.Scale(-dt/2, Ad)
	m1.Add(&m1, eye)
	m2.Scale(dt/2, Ad)
	m2.Add(&m2, eye)

	var inv mat.Dense
	if err := inv.Inverse(&m1); err != nil {
		// Singular (I - dt/2*A) does not occur for the model families
		// here; fall back to forward Euler if it ever does.
		Ad.Scale(dt, Ad)
		Ad.Add(Ad, eye)
		Bd.Scale(dt, Bd)
		Wd.Scale(dt, Wd)
		return
	}
	Ad.Mul(&inv, &m2)
	var b mat.Dense
	b.Scale(dt, Bd)
	Bd.Mul(&inv, &b)
	var w mat.Dense
	w.Scale(dt, Wd)
	Wd.Mul(&inv, &w)
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// frenetToWorld maps a horizon of (lateral error, heading error) pairs onto
// the reference trajectory, producing world and path-relative trajectories.
// latIdx and yawIdx select the components within each state block.
func frenetToWorld(xex *mat.VecDense, dimX, latIdx, yawIdx int, ref *trajectory.Trajectory) (world, frenet *trajectory.Trajectory) {
	n := xex.Len() / dimX
	world = trajectory.New(n)
	frenet = trajectory.New(n)
	arc := 0.0
	for i := 0; i < n && i < ref.Len(); i++ {
		lat := xex.AtVec(i*dimX + latIdx)
		yawErr := xex.AtVec(i*dimX + yawIdx)
		rp := ref.At(i)
		if i > 0 {
			arc += ref.Distance(i, i-1)
		}
		world.Push(trajectory.Point{
			X:       rp.X - lat*math.Sin(rp.Yaw),
			Y:       rp.Y + lat*math.Cos(rp.Yaw),
			Yaw:     trajectory.NormalizeRadian(rp.Yaw + yawErr),
			VX:      rp.VX,
			K:       rp.K,
			SmoothK: rp.SmoothK,
			Time:    rp.Time,
		})
		// path-relative: x is arc length along the reference, y the offset
		frenet.Push(trajectory.Point{
			X:       arc,
			Y:       lat,
			Yaw:     yawErr,
			VX:      rp.VX,
			K:       rp.K,
			SmoothK: rp.SmoothK,
			Time:    rp.Time,
		})
	}
	return world, frenet
}
