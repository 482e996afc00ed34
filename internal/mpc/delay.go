package mpc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// updateStateForDelayCompensation rolls the initial error state forward
// through every buffered steering command, advancing one control period per
// command with the model linearized at the trajectory's interpolated
// curvature and velocity. An empty buffer returns the state unchanged.
func (c *Controller) updateStateForDelayCompensation(traj *trajectory.Trajectory, startTime float64, x0 *mat.VecDense) (*mat.VecDense, error) {
	dimX := c.model.DimX()
	dimU := c.model.DimU()
	dimY := c.model.DimY()

	ad := mat.NewDense(dimX, dimX, nil)
	bd := mat.NewDense(dimX, dimU, nil)
	cd := mat.NewDense(dimY, dimX, nil)
	wd := mat.NewDense(dimX, 1, nil)

	x := mat.VecDenseCopyOf(x0)
	t := startTime
	for i := 0; i < c.inputBuffer.Len(); i++ {
		k, err := trajectory.Lerp(traj.Time, traj.K, t)
		if err != nil {
			return nil, fmt.Errorf("%w: curvature at t=%.3f: %v", ErrDelayCompensation, t, err)
		}
		v, err := trajectory.Lerp(traj.Time, traj.VX, t)
		if err != nil {
			return nil, fmt.Errorf("%w: velocity at t=%.3f: %v", ErrDelayCompensation, t, err)
		}

		c.model.DiscreteMatrices(ad, bd, cd, wd, v, k, c.cfg.ControlPeriod)

		// x = Ad*x + Bd*u + Wd
		next := mat.NewVecDense(dimX, nil)
		next.MulVec(ad, x)
		u := c.inputBuffer.At(i)
		for r := 0; r < dimX; r++ {
			next.SetVec(r, next.AtVec(r)+bd.At(r, 0)*u+wd.At(r, 0))
		}
		x = next
		t += c.cfg.ControlPeriod
	}
	return x, nil
}

// predictionDeltaTime returns the horizon step size: large enough that the
// horizon spans at least MinPredictionLength of path, and never below the
// configured floor.
func (c *Controller) predictionDeltaTime(startTime float64, traj *trajectory.Trajectory, pose trajectory.Pose) float64 {
	nearestIdx := traj.NearestIndexSoft(pose, c.cfg.NearestDistThreshold, c.cfg.NearestYawThreshold)

	targetTime := traj.Time[traj.Len()-1] - guardTime
	sumDist := 0.0
	for i := nearestIdx + 1; i < traj.Len(); i++ {
		segDist := traj.Distance(i, i-1)
		sumDist += segDist
		if sumDist > c.cfg.MinPredictionLength {
			prevSum := sumDist - segDist
			ratio := (c.cfg.MinPredictionLength - prevSum) / segDist
			timeAtI := traj.Time[i]
			if i == traj.Len()-1 {
				// the terminal guard point carries an artificial dwell
				timeAtI -= guardTime
			}
			targetTime = traj.Time[i-1] + (timeAtI-traj.Time[i-1])*ratio
			break
		}
	}

	dt := (targetTime - startTime) / float64(c.cfg.PredictionHorizon-1)
	if dt < c.cfg.PredictionDtFloor {
		dt = c.cfg.PredictionDtFloor
	}
	return dt
}

// resampleByTime samples the reference at the horizon's time grid.
func (c *Controller) resampleByTime(start, dt float64, traj *trajectory.Trajectory) (*trajectory.Trajectory, error) {
	times := make([]float64, c.cfg.PredictionHorizon)
	for i := range times {
		times[i] = start + float64(i)*dt
	}
	out, err := traj.ResampleByTime(times)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResample, err)
	}
	return out, nil
}
