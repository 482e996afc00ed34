package vehicle

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// kinematics is the bicycle model with first-order steering dynamics.
//
//	d(lat)/dt   = v * yawErr
//	d(yawErr)/dt = v/L * tan(steer) - v*k, linearized around the reference steer
//	d(steer)/dt = -(steer - u) / tau
type kinematics struct {
	p Params
}

func newKinematics(p Params) *kinematics { return &kinematics{p: p} }

func (m *kinematics) Variant() Variant   { return Kinematics }
func (m *kinematics) DimX() int          { return 3 }
func (m *kinematics) DimU() int          { return 1 }
func (m *kinematics) DimY() int          { return 2 }
func (m *kinematics) Wheelbase() float64 { return m.p.Wheelbase }

// referenceSteer returns the steer angle realizing curvature k, bounded to
// the steering limit so the linearization point stays feasible.
func referenceSteer(wheelbase, steerLimit, k float64) float64 {
	d := math.Atan(wheelbase * k)
	if math.Abs(d) >= steerLimit {
		if d < 0 {
			return -steerLimit
		}
		return steerLimit
	}
	return d
}

// nonZeroVelocity floors |v| so the linearization never divides by zero.
func nonZeroVelocity(v float64) float64 {
	const eps = 1e-4
	if math.Abs(v) < eps {
		if v < 0 {
			return -eps
		}
		return eps
	}
	return v
}

func (m *kinematics) DiscreteMatrices(Ad, Bd, Cd, Wd *mat.Dense, v, k, dt float64) {
	deltaR := referenceSteer(m.p.Wheelbase, m.p.SteerLimit, k)
	cosD := math.Cos(deltaR)
	cosSqInv := 1 / (cosD * cosD)
	vel := nonZeroVelocity(v)

	Ad.Zero()
	Ad.Set(0, 1, vel)
	Ad.Set(1, 2, vel/m.p.Wheelbase*cosSqInv)
	Ad.Set(2, 2, -1/m.p.SteerTau)

	Bd.Zero()
	Bd.Set(2, 0, 1/m.p.SteerTau)

	Cd.Zero()
	Cd.Set(0, 0, 1)
	Cd.Set(1, 1, 1)

	Wd.Zero()
	Wd.Set(1, 0, -vel*k+vel/m.p.Wheelbase*(math.Tan(deltaR)-deltaR*cosSqInv))

	bilinearDiscretize(Ad, Bd, Wd, dt)
}

func (m *kinematics) ReferenceInput(_, k float64) float64 {
	return math.Atan(m.p.Wheelbase * k)
}

func (m *kinematics) PredictedTrajectory(xex *mat.VecDense, ref *trajectory.Trajectory) (world, frenet *trajectory.Trajectory) {
	return frenetToWorld(xex, m.DimX(), 0, 1, ref)
}

// kinematicsNoDelay is the bicycle model without steering dynamics; the
// input acts on the heading directly.
type kinematicsNoDelay struct {
	p Params
}

func newKinematicsNoDelay(p Params) *kinematicsNoDelay { return &kinematicsNoDelay{p: p} }

func (m *kinematicsNoDelay) Variant() Variant   { return KinematicsNoDelay }
func (m *kinematicsNoDelay) DimX() int          { return 2 }
func (m *kinematicsNoDelay) DimU() int          { return 1 }
func (m *kinematicsNoDelay) DimY() int          { return 2 }
func (m *kinematicsNoDelay) Wheelbase() float64 { return m.p.Wheelbase }

func (m *kinematicsNoDelay) DiscreteMatrices(Ad, Bd, Cd, Wd *mat.Dense, v, k, dt float64) {
	deltaR := referenceSteer(m.p.Wheelbase, m.p.SteerLimit, k)
	cosD := math.Cos(deltaR)
	cosSqInv := 1 / (cosD * cosD)
	vel := nonZeroVelocity(v)

	Ad.Zero()
	Ad.Set(0, 1, vel)

	Bd.Zero()
	Bd.Set(1, 0, vel/m.p.Wheelbase*cosSqInv)

	Cd.Zero()
	Cd.Set(0, 0, 1)
	Cd.Set(1, 1, 1)

	Wd.Zero()
	Wd.Set(1, 0, -vel*k+vel/m.p.Wheelbase*(math.Tan(deltaR)-deltaR*cosSqInv))

	bilinearDiscretize(Ad, Bd, Wd, dt)
}

func (m *kinematicsNoDelay) ReferenceInput(_, k float64) float64 {
	return math.Atan(m.p.Wheelbase * k)
}

func (m *kinematicsNoDelay) PredictedTrajectory(xex *mat.VecDense, ref *trajectory.Trajectory) (world, frenet *trajectory.Trajectory) {
	return frenetToWorld(xex, m.DimX(), 0, 1, ref)
}
