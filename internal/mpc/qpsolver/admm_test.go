package qpsolver

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func vecOf(vals ...float64) *mat.VecDense { return mat.NewVecDense(len(vals), vals) }

func TestSolveUnconstrainedMinimum(t *testing.T) {
	// min 0.5*(x0^2 + x1^2) - x0 - 2*x1, minimum at (1, 2), bounds inactive
	p := &Problem{
		H:   mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		F:   vecOf(-1, -2),
		LB:  vecOf(-10, -10),
		UB:  vecOf(10, 10),
		A:   mat.NewDense(1, 2, []float64{1, 1}),
		LBA: vecOf(-100),
		UBA: vecOf(100),
	}
	s := NewADMM()
	x, err := s.Solve(p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if math.Abs(x.AtVec(0)-1) > 1e-4 || math.Abs(x.AtVec(1)-2) > 1e-4 {
		t.Errorf("x = (%f, %f), want (1, 2)", x.AtVec(0), x.AtVec(1))
	}

	st := s.LastStats()
	if st.Iterations <= 0 {
		t.Errorf("Iterations = %d, want > 0", st.Iterations)
	}
	wantObj := -2.5
	if math.Abs(st.Objective-wantObj) > 1e-3 {
		t.Errorf("Objective = %f, want %f", st.Objective, wantObj)
	}
}

func TestSolveActiveBoxBound(t *testing.T) {
	// unconstrained minimum at (1, 2) but x1 is capped at 1
	p := &Problem{
		H:   mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		F:   vecOf(-1, -2),
		LB:  vecOf(-10, -10),
		UB:  vecOf(10, 1),
		A:   mat.NewDense(1, 2, []float64{1, 1}),
		LBA: vecOf(-100),
		UBA: vecOf(100),
	}
	x, err := NewADMM().Solve(p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if math.Abs(x.AtVec(0)-1) > 1e-4 || math.Abs(x.AtVec(1)-1) > 1e-4 {
		t.Errorf("x = (%f, %f), want (1, 1)", x.AtVec(0), x.AtVec(1))
	}
}

func TestSolveActiveGeneralConstraint(t *testing.T) {
	// min 0.5*||x||^2 s.t. x0 + x1 >= 2; solution (1, 1) by symmetry
	p := &Problem{
		H:   mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		F:   vecOf(0, 0),
		LB:  vecOf(-10, -10),
		UB:  vecOf(10, 10),
		A:   mat.NewDense(1, 2, []float64{1, 1}),
		LBA: vecOf(2),
		UBA: vecOf(100),
	}
	x, err := NewADMM().Solve(p)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if math.Abs(x.AtVec(0)-1) > 1e-3 || math.Abs(x.AtVec(1)-1) > 1e-3 {
		t.Errorf("x = (%f, %f), want (1, 1)", x.AtVec(0), x.AtVec(1))
	}
}

func TestSolveRateConstraintChain(t *testing.T) {
	// difference-operator constraints like the controller's: successive
	// variables may differ by at most 0.1, pulled toward 1
	n := 5
	h := mat.NewSymDense(n, nil)
	f := mat.NewVecDense(n, nil)
	lb := mat.NewVecDense(n, nil)
	ub := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		h.SetSym(i, i, 1)
		f.SetVec(i, -1) // pulls each variable to 1
		lb.SetVec(i, -10)
		ub.SetVec(i, 10)
	}
	a := mat.NewDense(n, n, nil)
	lbA := mat.NewVecDense(n, nil)
	ubA := mat.NewVecDense(n, nil)
	a.Set(0, 0, 1)
	lbA.SetVec(0, 0) // first variable anchored to [0, 0]
	ubA.SetVec(0, 0)
	for i := 1; i < n; i++ {
		a.Set(i, i, 1)
		a.Set(i, i-1, -1)
		lbA.SetVec(i, -0.1)
		ubA.SetVec(i, 0.1)
	}
	x, err := NewADMM().Solve(&Problem{H: h, F: f, A: a, LB: lb, UB: ub, LBA: lbA, UBA: ubA})
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if math.Abs(x.AtVec(0)) > 1e-3 {
		t.Errorf("x[0] = %f, want 0 (anchored)", x.AtVec(0))
	}
	for i := 1; i < n; i++ {
		d := x.AtVec(i) - x.AtVec(i-1)
		if d > 0.1+1e-3 || d < -0.1-1e-3 {
			t.Errorf("step %d violates rate constraint: %f", i, d)
		}
	}
	// the chain should climb at the rate limit toward the pull target
	if x.AtVec(n-1) < 0.3 {
		t.Errorf("x[%d] = %f, want >= 0.3", n-1, x.AtVec(n-1))
	}
}

func TestSolveRejectsInfeasible(t *testing.T) {
	// box demands x0 >= 5, general constraint demands x0 <= 1
	p := &Problem{
		H:   mat.NewSymDense(1, []float64{1}),
		F:   vecOf(0),
		LB:  vecOf(5),
		UB:  vecOf(10),
		A:   mat.NewDense(1, 1, []float64{1}),
		LBA: vecOf(-10),
		UBA: vecOf(1),
	}
	if _, err := NewADMM().Solve(p); err == nil {
		t.Fatal("Solve accepted an infeasible problem")
	}
}

func TestSolveDimensionMismatch(t *testing.T) {
	p := &Problem{
		H:   mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		F:   vecOf(0, 0),
		LB:  vecOf(-1, -1),
		UB:  vecOf(1, 1),
		A:   mat.NewDense(1, 3, []float64{1, 1, 1}),
		LBA: vecOf(0),
		UBA: vecOf(0),
	}
	if _, err := NewADMM().Solve(p); err == nil {
		t.Fatal("Solve accepted a mismatched constraint matrix")
	}
}
