package mpc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/config"
	"github.com/banshee-data/steer.control/internal/mpc/qpsolver"
	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// interpRateLimit evaluates a scheduling table at the given key with
// zero-order hold outside the key range and linear interpolation inside.
func interpRateLimit(table []config.RateLimitEntry, key float64) float64 {
	if len(table) == 0 {
		return math.Inf(1)
	}
	if key <= table[0].Key {
		return table[0].Limit
	}
	last := table[len(table)-1]
	if key >= last.Key {
		return last.Limit
	}
	for i := 0; i < len(table)-1; i++ {
		if table[i].Key <= key && key <= table[i+1].Key {
			den := math.Max(table[i+1].Key-table[i].Key, 1e-5)
			ratio := (key - table[i].Key) / den
			if ratio < 0 {
				ratio = 0
			} else if ratio > 1 {
				ratio = 1
			}
			return table[i].Limit + ratio*(table[i+1].Limit-table[i].Limit)
		}
	}
	return last.Limit
}

// steerRateLimits returns the per-step steering rate limit: the tighter of
// the curvature-scheduled and velocity-scheduled limits at each horizon
// step. A stopped vehicle gets zero limits (no steering motion).
func (c *Controller) steerRateLimits(traj *trajectory.Trajectory, velocity float64) []float64 {
	n := c.cfg.PredictionHorizon
	limits := make([]float64, n)
	if math.Abs(velocity) < 0.01 {
		return limits
	}
	for i := 0; i < n; i++ {
		byCurv := interpRateLimit(c.cfg.SteerRateLimitByCurv, math.Abs(traj.K[i]))
		byVel := interpRateLimit(c.cfg.SteerRateLimitByVel, math.Abs(traj.VX[i]))
		limits[i] = math.Min(byCurv, byVel)
	}
	return limits
}

// executeOptimization assembles and solves the constrained QP.
//
// Cost: J = Xex'*Qex*Xex + (Uex-Uref)'*R1ex*(Uex-Uref) + Uex'*R2ex*Uex.
// Constraints: per-step steering bounds |u(i)| <= steerLimit, and per-step
// rate bounds on u(i)-u(i-1), with the first row anchored to the previous
// raw command over one control period.
func (c *Controller) executeOptimization(m mpcMatrix, x0 *mat.VecDense, dt float64, traj *trajectory.Trajectory, velocity float64) (*mat.VecDense, error) {
	n := c.cfg.PredictionHorizon

	if !matricesFinite(m) {
		return nil, fmt.Errorf("%w: prediction matrices contain non-finite values", ErrOptimization)
	}

	// H = (Cex*Bex)'*Qex*(Cex*Bex) + R1ex + R2ex
	var cb, qcb, h mat.Dense
	cb.Mul(m.Cex, m.Bex)
	qcb.Mul(m.Qex, &cb)
	h.Mul(cb.T(), &qcb)
	h.Add(&h, m.R1ex)
	h.Add(&h, m.R2ex)

	hSym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hSym.SetSym(i, j, (h.At(i, j)+h.At(j, i))/2)
		}
	}

	// f = (Cex*(Aex*x0 + Wex))'*Qex*Cex*Bex - Uref'*R1ex
	free := mat.NewVecDense(m.Aex.RawMatrix().Rows, nil)
	free.MulVec(m.Aex, x0)
	free.AddVec(free, m.Wex)
	var cFree mat.VecDense
	cFree.MulVec(m.Cex, free)
	var qcFree mat.VecDense
	qcFree.MulVec(m.Qex, &cFree)
	f := mat.NewVecDense(n, nil)
	f.MulVec(cb.T(), &qcFree)
	var r1u mat.VecDense
	r1u.MulVec(m.R1ex, m.UrefEx)
	f.SubVec(f, &r1u)
	c.addSteerWeightF(dt, f)

	// difference operator for the rate constraints
	a := mat.NewDense(n, n, nil)
	a.Set(0, 0, 1)
	for i := 1; i < n; i++ {
		a.Set(i, i, 1)
		a.Set(i, i-1, -1)
	}

	lb := mat.NewVecDense(n, nil)
	ub := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		lb.SetVec(i, -c.cfg.SteerLimit)
		ub.SetVec(i, c.cfg.SteerLimit)
	}

	rateLimits := c.steerRateLimits(traj, velocity)
	lbA := mat.NewVecDense(n, nil)
	ubA := mat.NewVecDense(n, nil)
	for i := 1; i < n; i++ {
		lbA.SetVec(i, -rateLimits[i]*dt)
		ubA.SetVec(i, rateLimits[i]*dt)
	}
	// row 0 bounds u(0) against the last issued raw command
	lbA.SetVec(0, c.rawSteerPrev-rateLimits[0]*c.cfg.ControlPeriod)
	ubA.SetVec(0, c.rawSteerPrev+rateLimits[0]*c.cfg.ControlPeriod)

	uex, err := c.solver.Solve(&qpsolver.Problem{
		H: hSym, F: f, A: a,
		LB: lb, UB: ub, LBA: lbA, UBA: ubA,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptimization, err)
	}
	for i := 0; i < uex.Len(); i++ {
		if math.IsNaN(uex.AtVec(i)) || math.IsInf(uex.AtVec(i), 0) {
			return nil, fmt.Errorf("%w: solution contains non-finite value at %d", ErrOptimization, i)
		}
	}
	return uex, nil
}

func matricesFinite(m mpcMatrix) bool {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	for _, d := range []*mat.Dense{m.Aex, m.Bex, m.Cex, m.Qex, m.R1ex, m.R2ex} {
		raw := d.RawMatrix()
		for _, v := range raw.Data {
			if !finite(v) {
				return false
			}
		}
	}
	for _, v := range []*mat.VecDense{m.Wex, m.UrefEx} {
		for i := 0; i < v.Len(); i++ {
			if !finite(v.AtVec(i)) {
				return false
			}
		}
	}
	return true
}
