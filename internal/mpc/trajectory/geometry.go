package trajectory

import (
	"math"
)

// Pose is a 2D pose in world coordinates.
type Pose struct {
	X   float64
	Y   float64
	Yaw float64
}

// NormalizeRadian wraps an angle to [-pi, pi].
func NormalizeRadian(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// MakeYawMonotonic rewrites yaw in place so consecutive values never jump by
// more than pi, keeping interpolation across the +-pi seam well defined.
func MakeYawMonotonic(yaw []float64) {
	for i := 1; i < len(yaw); i++ {
		yaw[i] = yaw[i-1] + NormalizeRadian(yaw[i]-yaw[i-1])
	}
}

// CalcYawFromXY recomputes each point's yaw from the segment directions.
// A reverse-driving trajectory keeps its yaw opposed to travel direction.
func (t *Trajectory) CalcYawFromXY(forward bool) {
	n := t.Len()
	if n < 2 {
		return
	}
	shift := 0.0
	if !forward {
		shift = math.Pi
	}
	for i := 1; i < n-1; i++ {
		t.Yaw[i] = NormalizeRadian(math.Atan2(t.Y[i+1]-t.Y[i-1], t.X[i+1]-t.X[i-1]) + shift)
	}
	t.Yaw[0] = NormalizeRadian(math.Atan2(t.Y[1]-t.Y[0], t.X[1]-t.X[0]) + shift)
	t.Yaw[n-1] = t.Yaw[n-2]
}

// CalcCurvature fills K and SmoothK using a three-point circumscribed-circle
// estimate with the given half-window sizes. Endpoints copy their nearest
// interior value.
func (t *Trajectory) CalcCurvature(windowK, windowSmoothK int) {
	t.K = calcCurvatureWindow(t.X, t.Y, windowK)
	t.SmoothK = calcCurvatureWindow(t.X, t.Y, windowSmoothK)
}

func calcCurvatureWindow(x, y []float64, window int) []float64 {
	n := len(x)
	k := make([]float64, n)
	if n < 3 {
		return k
	}
	if window < 1 {
		window = 1
	}
	maxW := (n - 1) / 2
	if window > maxW {
		window = maxW
	}
	for i := window; i < n-window; i++ {
		p0x, p0y := x[i-window], y[i-window]
		p1x, p1y := x[i], y[i]
		p2x, p2y := x[i+window], y[i+window]
		d01 := math.Hypot(p1x-p0x, p1y-p0y)
		d12 := math.Hypot(p2x-p1x, p2y-p1y)
		d02 := math.Hypot(p2x-p0x, p2y-p0y)
		den := d01 * d12 * d02
		if den < 1e-9 {
			k[i] = 0
			continue
		}
		cross := (p1x-p0x)*(p2y-p0y) - (p1y-p0y)*(p2x-p0x)
		k[i] = 2 * cross / den
	}
	for i := 0; i < window; i++ {
		k[i] = k[window]
	}
	for i := n - window; i < n; i++ {
		k[i] = k[n-window-1]
	}
	return k
}

// RecalcTime recomputes relative time from arc length and velocity. Velocity
// magnitude is floored so a stop point does not produce an infinite step.
func (t *Trajectory) RecalcTime() {
	const minSpeed = 0.1 // m/s
	if t.Len() == 0 {
		return
	}
	t.Time[0] = 0
	for i := 1; i < t.Len(); i++ {
		v := math.Max(math.Abs(t.VX[i]), minSpeed)
		t.Time[i] = t.Time[i-1] + t.Distance(i, i-1)/v
	}
}

// ExtendInYawDirection appends points continuing along the terminal yaw,
// improving terminal-attitude behaviour of the prediction horizon.
func (t *Trajectory) ExtendInYawDirection(yaw, interval float64, forward bool, extendDist float64) {
	if t.Len() == 0 {
		return
	}
	dir := 1.0
	if !forward {
		dir = -1.0
	}
	last := t.Back()
	const minSpeed = 0.1
	v := math.Max(math.Abs(last.VX), minSpeed)
	for ds := interval; ds <= extendDist; ds += interval {
		t.Push(Point{
			X:       last.X + dir*ds*math.Cos(yaw),
			Y:       last.Y + dir*ds*math.Sin(yaw),
			Yaw:     yaw,
			VX:      last.VX,
			K:       0,
			SmoothK: 0,
			Time:    last.Time + ds/v,
		})
	}
}

// ClipByArcLength drops points beyond the given path length from the start.
func (t *Trajectory) ClipByArcLength(length float64) *Trajectory {
	out := New(t.Len())
	sum := 0.0
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			sum += t.Distance(i, i-1)
		}
		if sum > length {
			break
		}
		out.Push(t.At(i))
	}
	return out
}

// IsDrivingForward reports whether the first segment direction agrees with
// the first pose yaw. The second value is false when the direction is
// ambiguous (degenerate segment).
func (t *Trajectory) IsDrivingForward() (bool, bool) {
	if t.Len() < 2 {
		return true, false
	}
	dx, dy := t.X[1]-t.X[0], t.Y[1]-t.Y[0]
	if math.Hypot(dx, dy) < 1e-9 {
		return true, false
	}
	segYaw := math.Atan2(dy, dx)
	return math.Abs(NormalizeRadian(segYaw-t.Yaw[0])) < math.Pi/2, true
}

// NearestIndex returns the point index geometrically closest to the pose.
func (t *Trajectory) NearestIndex(p Pose) int {
	best, bestDist := 0, math.Inf(1)
	for i := 0; i < t.Len(); i++ {
		d := math.Hypot(t.X[i]-p.X, t.Y[i]-p.Y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// NearestIndexSoft returns the nearest point index among candidates within
// the distance and yaw thresholds. When no candidate satisfies the soft
// constraints it falls back to the pure geometric nearest.
func (t *Trajectory) NearestIndexSoft(p Pose, distThreshold, yawThreshold float64) int {
	best, bestDist := -1, math.Inf(1)
	for i := 0; i < t.Len(); i++ {
		d := math.Hypot(t.X[i]-p.X, t.Y[i]-p.Y)
		if d > distThreshold {
			continue
		}
		if math.Abs(NormalizeRadian(t.Yaw[i]-p.Yaw)) > yawThreshold {
			continue
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return t.NearestIndex(p)
	}
	return best
}

// NearestPose holds the interpolated projection of a pose onto the path.
type NearestPose struct {
	Pose  Pose
	Index int     // index of the nearest stored point
	Time  float64 // interpolated relative time at the projection
}

// CalcNearestPoseInterp projects the pose onto the segments adjacent to the
// soft-constrained nearest point and interpolates pose and time at the
// projection. Returns false when the trajectory is too short.
func (t *Trajectory) CalcNearestPoseInterp(p Pose, distThreshold, yawThreshold float64) (NearestPose, bool) {
	n := t.Len()
	if n == 0 {
		return NearestPose{}, false
	}
	idx := t.NearestIndexSoft(p, distThreshold, yawThreshold)
	if n == 1 {
		return NearestPose{
			Pose:  Pose{X: t.X[0], Y: t.Y[0], Yaw: t.Yaw[0]},
			Index: 0,
			Time:  t.Time[0],
		}, true
	}

	// candidate segments: [idx-1, idx] and [idx, idx+1]
	bestPose := Pose{X: t.X[idx], Y: t.Y[idx], Yaw: t.Yaw[idx]}
	bestTime := t.Time[idx]
	bestDist := math.Hypot(t.X[idx]-p.X, t.Y[idx]-p.Y)
	for _, a := range []int{idx - 1, idx} {
		b := a + 1
		if a < 0 || b >= n {
			continue
		}
		vx, vy := t.X[b]-t.X[a], t.Y[b]-t.Y[a]
		segLen2 := vx*vx + vy*vy
		if segLen2 < 1e-12 {
			continue
		}
		r := ((p.X-t.X[a])*vx + (p.Y-t.Y[a])*vy) / segLen2
		if r < 0 {
			r = 0
		} else if r > 1 {
			r = 1
		}
		px := t.X[a] + r*vx
		py := t.Y[a] + r*vy
		d := math.Hypot(px-p.X, py-p.Y)
		if d < bestDist {
			bestDist = d
			bestPose = Pose{
				X:   px,
				Y:   py,
				Yaw: t.Yaw[a] + r*NormalizeRadian(t.Yaw[b]-t.Yaw[a]),
			}
			bestTime = t.Time[a] + r*(t.Time[b]-t.Time[a])
		}
	}
	bestPose.Yaw = NormalizeRadian(bestPose.Yaw)
	return NearestPose{Pose: bestPose, Index: idx, Time: bestTime}, true
}

// LateralError returns the signed perpendicular offset of pose p from the
// reference pose ref (positive to the left of the reference heading).
func LateralError(p Pose, ref Pose) float64 {
	dx := p.X - ref.X
	dy := p.Y - ref.Y
	return -math.Sin(ref.Yaw)*dx + math.Cos(ref.Yaw)*dy
}

// SmoothVelocityDynamics replaces VX from startIdx onward with a first-order
// lag response from startVel, limited by accelLimit, modelling the speed the
// vehicle can actually reach. Relative time is recomputed afterwards.
func (t *Trajectory) SmoothVelocityDynamics(startIdx int, startVel, accelLimit, tau float64) {
	if t.Len() == 0 || startIdx >= t.Len() {
		return
	}
	cur := startVel
	t.VX[startIdx] = startVel
	for i := startIdx + 1; i < t.Len(); i++ {
		ds := t.Distance(i, i-1)
		dt := ds / math.Max(math.Abs(cur), 0.1)
		gain := tau / math.Max(tau+dt, 1e-6)
		updated := cur*gain + t.VX[i]*(1-gain)
		dv := updated - cur
		limit := accelLimit * dt
		if dv > limit {
			dv = limit
		} else if dv < -limit {
			dv = -limit
		}
		cur += dv
		t.VX[i] = cur
	}
	t.RecalcTime()
}
