package vehicle

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// dynamics is the linear-tire dynamic bicycle model in error coordinates.
// State: [lateral error, lateral error rate, heading error, heading error rate].
type dynamics struct {
	p      Params
	lf, lr float64 // distances CG to front/rear axle [m]
	iz     float64 // yaw moment of inertia [kg m^2]
}

func newDynamics(p Params) *dynamics {
	lf := p.Wheelbase * (1 - p.MassFrontRatio)
	lr := p.Wheelbase * p.MassFrontRatio
	ratio := p.InertiaYawRatio
	if ratio <= 0 {
		ratio = 1
	}
	return &dynamics{
		p:  p,
		lf: lf,
		lr: lr,
		iz: ratio * p.Mass * lf * lr,
	}
}

func (m *dynamics) Variant() Variant   { return Dynamics }
func (m *dynamics) DimX() int          { return 4 }
func (m *dynamics) DimU() int          { return 1 }
func (m *dynamics) DimY() int          { return 2 }
func (m *dynamics) Wheelbase() float64 { return m.p.Wheelbase }

func (m *dynamics) DiscreteMatrices(Ad, Bd, Cd, Wd *mat.Dense, v, k, dt float64) {
	// the lateral dynamics are singular at standstill
	vel := math.Max(v, 0.01)
	cf, cr := m.p.CorneringFront, m.p.CorneringRear
	mass, iz := m.p.Mass, m.iz
	lf, lr := m.lf, m.lr

	Ad.Zero()
	Ad.Set(0, 1, 1)
	Ad.Set(1, 1, -(cf+cr)/(mass*vel))
	Ad.Set(1, 2, (cf+cr)/mass)
	Ad.Set(1, 3, (lr*cr-lf*cf)/(mass*vel))
	Ad.Set(2, 3, 1)
	Ad.Set(3, 1, (lr*cr-lf*cf)/(iz*vel))
	Ad.Set(3, 2, (lf*cf-lr*cr)/iz)
	Ad.Set(3, 3, -(lf*lf*cf+lr*lr*cr)/(iz*vel))

	Bd.Zero()
	Bd.Set(1, 0, cf/mass)
	Bd.Set(3, 0, lf*cf/iz)

	Cd.Zero()
	Cd.Set(0, 0, 1)
	Cd.Set(1, 2, 1)

	// disturbance from the reference yaw rate v*k
	refYawRate := vel * k
	Wd.Zero()
	Wd.Set(1, 0, ((lr*cr-lf*cf)/(mass*vel)-vel)*refYawRate)
	Wd.Set(3, 0, -(lf*lf*cf+lr*lr*cr)/(iz*vel)*refYawRate)

	bilinearDiscretize(Ad, Bd, Wd, dt)
}

// ReferenceInput includes the steady-state understeer contribution on top of
// the geometric wheelbase term.
func (m *dynamics) ReferenceInput(v, k float64) float64 {
	cf, cr := m.p.CorneringFront, m.p.CorneringRear
	mass, wb := m.p.Mass, m.p.Wheelbase
	kv := m.lr*mass/(2*cf*wb) - m.lf*mass/(2*cr*wb)
	return wb*k + kv*v*v*k
}

func (m *dynamics) PredictedTrajectory(xex *mat.VecDense, ref *trajectory.Trajectory) (world, frenet *trajectory.Trajectory) {
	return frenetToWorld(xex, m.DimX(), 0, 2, ref)
}
