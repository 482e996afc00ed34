package mpc

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/config"
	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// mpcMatrix is the stacked prediction system over the horizon:
//
//	Xex = Aex*x0 + Bex*Uex + Wex, Yex = Cex*Xex
//
// with the block-diagonal cost weights and the feed-forward reference input.
type mpcMatrix struct {
	Aex    *mat.Dense
	Bex    *mat.Dense
	Wex    *mat.VecDense
	Cex    *mat.Dense
	Qex    *mat.Dense
	R1ex   *mat.Dense
	R2ex   *mat.Dense
	UrefEx *mat.VecDense
}

// weightForCurvature selects the weight-table row for the given reference
// curvature: the first row whose MaxCurvature bounds |k|, else the last row.
func (c *Controller) weightForCurvature(k float64) config.WeightRow {
	ak := math.Abs(k)
	rows := c.cfg.WeightTable
	for _, row := range rows {
		if ak <= row.MaxCurvature {
			return row
		}
	}
	return rows[len(rows)-1]
}

// generateMPCMatrix linearizes the model at every horizon step and composes
// the stacked prediction and cost matrices.
func (c *Controller) generateMPCMatrix(ref *trajectory.Trajectory, dt float64) mpcMatrix {
	n := c.cfg.PredictionHorizon
	dimX := c.model.DimX()
	dimU := c.model.DimU()
	dimY := c.model.DimY()

	m := mpcMatrix{
		Aex:    mat.NewDense(dimX*n, dimX, nil),
		Bex:    mat.NewDense(dimX*n, dimU*n, nil),
		Wex:    mat.NewVecDense(dimX*n, nil),
		Cex:    mat.NewDense(dimY*n, dimX*n, nil),
		Qex:    mat.NewDense(dimY*n, dimY*n, nil),
		R1ex:   mat.NewDense(dimU*n, dimU*n, nil),
		R2ex:   mat.NewDense(dimU*n, dimU*n, nil),
		UrefEx: mat.NewVecDense(dimU*n, nil),
	}

	ad := mat.NewDense(dimX, dimX, nil)
	bd := mat.NewDense(dimX, dimU, nil)
	cd := mat.NewDense(dimY, dimX, nil)
	wd := mat.NewDense(dimX, 1, nil)

	signVX := 1.0
	if !c.forwardShift {
		signVX = -1.0
	}

	for i := 0; i < n; i++ {
		refVX := ref.VX[i]
		refVXSquared := refVX * refVX
		refK := ref.K[i] * signVX
		refSmoothK := ref.SmoothK[i] * signVX

		c.model.DiscreteMatrices(ad, bd, cd, wd, refVX, refK, dt)

		w := c.weightForCurvature(refK)
		qLat, qYaw := w.LatError, w.HeadingError
		if i == n-1 {
			qLat = c.cfg.TerminalLatError
			qYaw = c.cfg.TerminalHeadingError
		}
		// heading and steering matter more the faster the vehicle moves
		qYaw += refVXSquared * w.HeadingErrorSquaredVel
		rSteer := w.SteeringInput + refVXSquared*w.SteeringInputSquaredVel

		ix := i * dimX
		iu := i * dimU
		iy := i * dimY
		if i == 0 {
			m.Aex.Slice(0, dimX, 0, dimX).(*mat.Dense).Copy(ad)
			m.Bex.Slice(0, dimX, 0, dimU).(*mat.Dense).Copy(bd)
			for r := 0; r < dimX; r++ {
				m.Wex.SetVec(r, wd.At(r, 0))
			}
		} else {
			ixPrev := (i - 1) * dimX
			// Aex_i = Ad_i * Aex_{i-1}
			var blk mat.Dense
			blk.Mul(ad, m.Aex.Slice(ixPrev, ixPrev+dimX, 0, dimX))
			m.Aex.Slice(ix, ix+dimX, 0, dimX).(*mat.Dense).Copy(&blk)
			// Bex_{i,j} = Ad_i * Bex_{i-1,j} for all previous inputs
			for j := 0; j < i; j++ {
				ju := j * dimU
				var bblk mat.Dense
				bblk.Mul(ad, m.Bex.Slice(ixPrev, ixPrev+dimX, ju, ju+dimU))
				m.Bex.Slice(ix, ix+dimX, ju, ju+dimU).(*mat.Dense).Copy(&bblk)
			}
			// Wex_i = Ad_i * Wex_{i-1} + Wd_i
			prev := mat.NewVecDense(dimX, nil)
			for r := 0; r < dimX; r++ {
				prev.SetVec(r, m.Wex.AtVec(ixPrev+r))
			}
			var wblk mat.VecDense
			wblk.MulVec(ad, prev)
			for r := 0; r < dimX; r++ {
				m.Wex.SetVec(ix+r, wblk.AtVec(r)+wd.At(r, 0))
			}
		}
		m.Bex.Slice(ix, ix+dimX, iu, iu+dimU).(*mat.Dense).Copy(bd)
		m.Cex.Slice(iy, iy+dimY, ix, ix+dimX).(*mat.Dense).Copy(cd)

		m.Qex.Set(iy, iy, qLat)
		m.Qex.Set(iy+1, iy+1, qYaw)
		m.R1ex.Set(iu, iu, rSteer)

		// feed-forward from the smoothed curvature, with a dead-band
		// against curvature noise
		uref := c.model.ReferenceInput(refVX, refSmoothK)
		if math.Abs(uref) < c.cfg.ZeroFeedForward {
			uref = 0
		}
		m.UrefEx.SetVec(iu, uref)
	}

	// lateral jerk: weight for (v * (u(i+1) - u(i)))^2
	for i := 0; i < n-1; i++ {
		refVX := ref.VX[i]
		refK := ref.K[i] * signVX
		j := refVX * refVX * c.weightForCurvature(refK).LatJerk / (dt * dt)
		m.R2ex.Set(i, i, m.R2ex.At(i, i)+j)
		m.R2ex.Set(i+1, i+1, m.R2ex.At(i+1, i+1)+j)
		m.R2ex.Set(i, i+1, m.R2ex.At(i, i+1)-j)
		m.R2ex.Set(i+1, i, m.R2ex.At(i+1, i)-j)
	}

	c.addSteerWeightR(dt, m.R1ex)

	return m
}

// addSteerWeightR folds the steering-rate and steering-acceleration
// regularization into the input cost block. The i=0 boundary terms use the
// control period instead of the prediction step, since the previous command
// was issued one control period ago.
func (c *Controller) addSteerWeightR(dt float64, r *mat.Dense) {
	n := c.cfg.PredictionHorizon
	ctp := c.cfg.ControlPeriod

	// steering rate: weight for ((u(i+1) - u(i)) / dt)^2
	steerRateR := c.cfg.SteerRateWeight / (dt * dt)
	for i := 0; i < n-1; i++ {
		r.Set(i, i, r.At(i, i)+steerRateR)
		r.Set(i+1, i+1, r.At(i+1, i+1)+steerRateR)
		r.Set(i, i+1, r.At(i, i+1)-steerRateR)
		r.Set(i+1, i, r.At(i+1, i)-steerRateR)
	}
	if n > 1 {
		// rate from the previous actual command to u(0)
		r.Set(0, 0, r.At(0, 0)+c.cfg.SteerRateWeight/(ctp*ctp))
	}

	// steering acceleration: weight for ((u(i+1) - 2u(i) + u(i-1)) / dt^2)^2
	w := c.cfg.SteerAccWeight
	accR := w / math.Pow(dt, 4)
	accRcp1 := w / (math.Pow(dt, 3) * ctp)
	accRcp2 := w / (math.Pow(dt, 2) * ctp * ctp)
	accRcp4 := w / math.Pow(ctp, 4)
	for i := 1; i < n-1; i++ {
		// tridiagonal 3x3 stencil [1 -2 1; -2 4 -2; 1 -2 1]
		base := i - 1
		stencil := [3][3]float64{{1, -2, 1}, {-2, 4, -2}, {1, -2, 1}}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				r.Set(base+a, base+b, r.At(base+a, base+b)+accR*stencil[a][b])
			}
		}
	}
	if n > 1 {
		// acceleration across the control-period/prediction-step boundary
		r.Set(0, 0, r.At(0, 0)+accR+accRcp2+2*accRcp1)
		r.Set(1, 0, r.At(1, 0)-accR-accRcp1)
		r.Set(0, 1, r.At(0, 1)-accR-accRcp1)
		r.Set(1, 1, r.At(1, 1)+accR)
		// acceleration fully inside the control-period history
		r.Set(0, 0, r.At(0, 0)+accRcp4)
	}
}

// addSteerWeightF folds the previous two actual commands into the cost's
// linear term, anchoring the rate and acceleration penalties to real past
// actuation rather than the optimizer's own steps.
func (c *Controller) addSteerWeightF(dt float64, f *mat.VecDense) {
	if f.Len() < 2 {
		return
	}
	ctp := c.cfg.ControlPeriod
	w := c.cfg.SteerAccWeight

	// steering rate i = 0: anchored to the previous raw command
	f.SetVec(0, f.AtVec(0)-c.cfg.SteerRateWeight*c.rawSteerPrev/(ctp*ctp))

	accRcp1 := w / (math.Pow(dt, 3) * ctp)
	accRcp2 := w / (math.Pow(dt, 2) * ctp * ctp)
	accRcp4 := w / math.Pow(ctp, 4)

	// steering acceleration i = 0
	f.SetVec(0, f.AtVec(0)+(-2*c.rawSteerPrev+c.rawSteerPPrev)*accRcp4)

	// steering acceleration i = 1
	f.SetVec(0, f.AtVec(0)-c.rawSteerPrev*(accRcp1+accRcp2))
	f.SetVec(1, f.AtVec(1)+c.rawSteerPrev*accRcp1)
}
