// Package qpsolver defines the constrained quadratic-program capability
// consumed by the MPC controller, and provides a dense ADMM backend.
//
// The problem form is
//
//	min 0.5 * x' H x + f' x
//	s.t. lb  <= x   <= ub
//	     lbA <= A x <= ubA
//
// with H symmetric positive semi-definite.
package qpsolver

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrInfeasible is returned when the solver cannot produce a solution
// satisfying the constraints within its iteration budget.
var ErrInfeasible = errors.New("qpsolver: problem infeasible or not converged")

// Problem is one QP instance.
type Problem struct {
	H   *mat.SymDense // n x n cost Hessian
	F   *mat.VecDense // n linear cost term
	A   *mat.Dense    // m x n general constraint matrix
	LB  *mat.VecDense // n lower variable bounds
	UB  *mat.VecDense // n upper variable bounds
	LBA *mat.VecDense // m lower constraint bounds
	UBA *mat.VecDense // m upper constraint bounds
}

// Stats describes the most recent solve.
type Stats struct {
	Iterations int
	Runtime    time.Duration
	Objective  float64
}

// Solver is the black-box capability interface. Implementations are
// swappable; the controller only depends on this contract.
type Solver interface {
	Solve(p *Problem) (*mat.VecDense, error)
	LastStats() Stats
}

func objective(p *Problem, x *mat.VecDense) float64 {
	var hx mat.VecDense
	hx.MulVec(p.H, x)
	return 0.5*mat.Dot(&hx, x) + mat.Dot(p.F, x)
}
