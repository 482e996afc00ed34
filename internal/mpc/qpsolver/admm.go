package qpsolver

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ADMM is a dense operator-splitting QP solver. One factorization per solve,
// fixed penalty parameter, no polishing. Deterministic for a given problem.
type ADMM struct {
	// MaxIterations caps the iteration count. Zero means the default.
	MaxIterations int
	// Tolerance is the primal/dual residual threshold. Zero means the default.
	Tolerance float64

	stats Stats
}

const (
	defaultMaxIterations = 4000
	defaultTolerance     = 1e-6

	admmRho        = 1.0
	admmSigma      = 1e-6
	admmRelaxAlpha = 1.6
)

// NewADMM returns an ADMM solver with default settings.
func NewADMM() *ADMM { return &ADMM{} }

// LastStats returns iteration count, runtime and objective of the most
// recent Solve call.
func (s *ADMM) LastStats() Stats { return s.stats }

// Solve minimizes the QP. The variable box bounds are folded into the
// general constraints as identity rows, giving the stacked system
// [lb; lbA] <= [I; A] x <= [ub; ubA].
func (s *ADMM) Solve(p *Problem) (*mat.VecDense, error) {
	start := time.Now()
	s.stats = Stats{}

	n := p.F.Len()
	mA := 0
	if p.A != nil {
		r, c := p.A.Dims()
		if c != n {
			return nil, fmt.Errorf("qpsolver: constraint matrix has %d cols, want %d", c, n)
		}
		mA = r
	}
	mTotal := n + mA

	// stacked constraint matrix C = [I; A]
	C := mat.NewDense(mTotal, n, nil)
	for i := 0; i < n; i++ {
		C.Set(i, i, 1)
	}
	if mA > 0 {
		C.Slice(n, mTotal, 0, n).(*mat.Dense).Copy(p.A)
	}
	l := mat.NewVecDense(mTotal, nil)
	u := mat.NewVecDense(mTotal, nil)
	for i := 0; i < n; i++ {
		l.SetVec(i, p.LB.AtVec(i))
		u.SetVec(i, p.UB.AtVec(i))
	}
	for i := 0; i < mA; i++ {
		l.SetVec(n+i, p.LBA.AtVec(i))
		u.SetVec(n+i, p.UBA.AtVec(i))
	}

	// KKT matrix: H + sigma*I + rho*C'C
	var ctc mat.Dense
	ctc.Mul(C.T(), C)
	kkt := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := p.H.At(i, j) + admmRho*(ctc.At(i, j)+ctc.At(j, i))/2
			if i == j {
				v += admmSigma
			}
			kkt.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(kkt) {
		return nil, fmt.Errorf("qpsolver: KKT factorization failed (Hessian not PSD?)")
	}

	x := mat.NewVecDense(n, nil)
	z := mat.NewVecDense(mTotal, nil)
	y := mat.NewVecDense(mTotal, nil)
	rhs := mat.NewVecDense(n, nil)
	zt := mat.NewVecDense(mTotal, nil)
	tmpN := mat.NewVecDense(n, nil)
	tmpM := mat.NewVecDense(mTotal, nil)

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	converged := false
	iter := 0
	for ; iter < maxIter; iter++ {
		// rhs = sigma*x - f + C'(rho*z - y)
		for i := 0; i < mTotal; i++ {
			tmpM.SetVec(i, admmRho*z.AtVec(i)-y.AtVec(i))
		}
		tmpN.MulVec(C.T(), tmpM)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, admmSigma*x.AtVec(i)-p.F.AtVec(i)+tmpN.AtVec(i))
		}
		if err := chol.SolveVecTo(x, rhs); err != nil {
			return nil, fmt.Errorf("qpsolver: KKT solve: %w", err)
		}

		zt.MulVec(C, x)
		// relaxed projection and dual update
		primRes, dualMove := 0.0, 0.0
		for i := 0; i < mTotal; i++ {
			relaxed := admmRelaxAlpha*zt.AtVec(i) + (1-admmRelaxAlpha)*z.AtVec(i)
			zNew := relaxed + y.AtVec(i)/admmRho
			if zNew < l.AtVec(i) {
				zNew = l.AtVec(i)
			} else if zNew > u.AtVec(i) {
				zNew = u.AtVec(i)
			}
			yNew := y.AtVec(i) + admmRho*(relaxed-zNew)

			if r := math.Abs(zt.AtVec(i) - zNew); r > primRes {
				primRes = r
			}
			if d := admmRho * math.Abs(zNew-z.AtVec(i)); d > dualMove {
				dualMove = d
			}
			z.SetVec(i, zNew)
			y.SetVec(i, yNew)
		}
		if primRes < tol && dualMove < tol {
			converged = true
			break
		}
	}

	s.stats = Stats{
		Iterations: iter + 1,
		Runtime:    time.Since(start),
		Objective:  objective(p, x),
	}
	if !converged {
		// Accept near-feasible iterates: a loose tolerance still yields a
		// usable command, matching real-time solver behaviour.
		var cx mat.VecDense
		cx.MulVec(C, x)
		const feasTol = 1e-4
		for i := 0; i < mTotal; i++ {
			if cx.AtVec(i) < l.AtVec(i)-feasTol || cx.AtVec(i) > u.AtVec(i)+feasTol {
				return nil, ErrInfeasible
			}
		}
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(x.AtVec(i)) || math.IsInf(x.AtVec(i), 0) {
			return nil, fmt.Errorf("qpsolver: non-finite solution component at %d", i)
		}
	}
	return x, nil
}
