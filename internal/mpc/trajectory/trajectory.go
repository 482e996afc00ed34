// Package trajectory provides the reference-trajectory representation used by
// the lateral MPC controller, together with the interpolation, nearest-point
// and smoothing utilities that operate on it.
package trajectory

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOutOfDomain is returned when an interpolation query falls outside
	// the key range of the trajectory.
	ErrOutOfDomain = errors.New("trajectory: query out of time domain")
	// ErrTooShort is returned when an operation needs more points than the
	// trajectory holds.
	ErrTooShort = errors.New("trajectory: not enough points")
)

// Trajectory is an ordered polyline of reference states. All slices are
// parallel and Time is strictly increasing.
type Trajectory struct {
	X       []float64 // world x [m]
	Y       []float64 // world y [m]
	Yaw     []float64 // heading [rad]
	VX      []float64 // longitudinal velocity [m/s]
	K       []float64 // curvature [1/m]
	SmoothK []float64 // smoothed curvature, used for feed-forward [1/m]
	Time    []float64 // relative time from the first point [s]
}

// Point is a single reference state, used when building trajectories
// incrementally.
type Point struct {
	X, Y, Yaw, VX, K, SmoothK, Time float64
}

// New returns an empty trajectory with capacity for n points.
func New(n int) *Trajectory {
	return &Trajectory{
		X:       make([]float64, 0, n),
		Y:       make([]float64, 0, n),
		Yaw:     make([]float64, 0, n),
		VX:      make([]float64, 0, n),
		K:       make([]float64, 0, n),
		SmoothK: make([]float64, 0, n),
		Time:    make([]float64, 0, n),
	}
}

// Len returns the number of points.
func (t *Trajectory) Len() int { return len(t.X) }

// Push appends a point to the trajectory.
func (t *Trajectory) Push(p Point) {
	t.X = append(t.X, p.X)
	t.Y = append(t.Y, p.Y)
	t.Yaw = append(t.Yaw, p.Yaw)
	t.VX = append(t.VX, p.VX)
	t.K = append(t.K, p.K)
	t.SmoothK = append(t.SmoothK, p.SmoothK)
	t.Time = append(t.Time, p.Time)
}

// At returns the i-th point.
func (t *Trajectory) At(i int) Point {
	return Point{
		X: t.X[i], Y: t.Y[i], Yaw: t.Yaw[i], VX: t.VX[i],
		K: t.K[i], SmoothK: t.SmoothK[i], Time: t.Time[i],
	}
}

// Back returns the last point. Panics on an empty trajectory.
func (t *Trajectory) Back() Point { return t.At(t.Len() - 1) }

// Clone returns a deep copy. Cycles operate on a snapshot so a concurrent
// trajectory update cannot tear a running computation.
func (t *Trajectory) Clone() *Trajectory {
	c := New(t.Len())
	c.X = append(c.X, t.X...)
	c.Y = append(c.Y, t.Y...)
	c.Yaw = append(c.Yaw, t.Yaw...)
	c.VX = append(c.VX, t.VX...)
	c.K = append(c.K, t.K...)
	c.SmoothK = append(c.SmoothK, t.SmoothK...)
	c.Time = append(c.Time, t.Time...)
	return c
}

// Validate checks the parallel-slice and monotonic-time invariants.
func (t *Trajectory) Validate() error {
	n := len(t.X)
	if len(t.Y) != n || len(t.Yaw) != n || len(t.VX) != n ||
		len(t.K) != n || len(t.SmoothK) != n || len(t.Time) != n {
		return fmt.Errorf("trajectory: slice lengths differ (x=%d y=%d yaw=%d vx=%d k=%d smooth_k=%d t=%d)",
			len(t.X), len(t.Y), len(t.Yaw), len(t.VX), len(t.K), len(t.SmoothK), len(t.Time))
	}
	for i := 1; i < n; i++ {
		if t.Time[i] <= t.Time[i-1] {
			return fmt.Errorf("trajectory: relative time not strictly increasing at %d (%f <= %f)",
				i, t.Time[i], t.Time[i-1])
		}
	}
	return nil
}

// Distance returns the euclidean distance between points i and j.
func (t *Trajectory) Distance(i, j int) float64 {
	return math.Hypot(t.X[i]-t.X[j], t.Y[i]-t.Y[j])
}

// ArcLength returns the total polyline length.
func (t *Trajectory) ArcLength() float64 {
	sum := 0.0
	for i := 1; i < t.Len(); i++ {
		sum += t.Distance(i, i-1)
	}
	return sum
}

// Lerp linearly interpolates values at query against the sorted keys. It
// returns ErrOutOfDomain when query is outside [keys[0], keys[len-1]].
func Lerp(keys, values []float64, query float64) (float64, error) {
	if len(keys) != len(values) {
		return 0, fmt.Errorf("trajectory: lerp key/value length mismatch %d != %d", len(keys), len(values))
	}
	if len(keys) == 0 {
		return 0, ErrTooShort
	}
	if query < keys[0] || query > keys[len(keys)-1] {
		return 0, fmt.Errorf("%w: %f not in [%f, %f]", ErrOutOfDomain, query, keys[0], keys[len(keys)-1])
	}
	if len(keys) == 1 {
		return values[0], nil
	}
	// binary search for the segment containing query
	lo, hi := 0, len(keys)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if keys[mid] <= query {
			lo = mid
		} else {
			hi = mid
		}
	}
	den := keys[hi] - keys[lo]
	if den <= 0 {
		return values[lo], nil
	}
	r := (query - keys[lo]) / den
	return values[lo] + r*(values[hi]-values[lo]), nil
}

// SampleAt interpolates a full trajectory point at the given relative time.
// Yaw is interpolated on its unwrapped (monotonic) representation, which the
// preprocessor guarantees.
func (t *Trajectory) SampleAt(tm float64) (Point, error) {
	var p Point
	var err error
	if p.X, err = Lerp(t.Time, t.X, tm); err != nil {
		return Point{}, err
	}
	if p.Y, err = Lerp(t.Time, t.Y, tm); err != nil {
		return Point{}, err
	}
	if p.Yaw, err = Lerp(t.Time, t.Yaw, tm); err != nil {
		return Point{}, err
	}
	if p.VX, err = Lerp(t.Time, t.VX, tm); err != nil {
		return Point{}, err
	}
	if p.K, err = Lerp(t.Time, t.K, tm); err != nil {
		return Point{}, err
	}
	if p.SmoothK, err = Lerp(t.Time, t.SmoothK, tm); err != nil {
		return Point{}, err
	}
	p.Time = tm
	return p, nil
}

// ResampleByTime returns a new trajectory sampled at each of the given times.
func (t *Trajectory) ResampleByTime(times []float64) (*Trajectory, error) {
	out := New(len(times))
	for _, tm := range times {
		p, err := t.SampleAt(tm)
		if err != nil {
			return nil, fmt.Errorf("resample at t=%f: %w", tm, err)
		}
		out.Push(p)
	}
	return out, nil
}

// ResampleByDistance re-parameterizes the trajectory at uniform arc-length
// intervals. The sample grid is shifted by offset so that the vehicle's
// projection onto the path coincides with a sample point.
func (t *Trajectory) ResampleByDistance(interval, offset float64) (*Trajectory, error) {
	if t.Len() < 2 {
		return nil, ErrTooShort
	}
	if interval <= 0 {
		return nil, fmt.Errorf("trajectory: non-positive resample interval %f", interval)
	}
	// arc-length keys
	s := make([]float64, t.Len())
	for i := 1; i < t.Len(); i++ {
		s[i] = s[i-1] + t.Distance(i, i-1)
	}
	total := s[t.Len()-1]

	start := math.Mod(offset, interval)
	if start < 0 {
		start += interval
	}
	out := New(int(total/interval) + 2)
	lerpAt := func(vals []float64, q float64) float64 {
		v, _ := Lerp(s, vals, q) // q is clamped to [0, total] by construction
		return v
	}
	for q := start; q <= total; q += interval {
		out.Push(Point{
			X: lerpAt(t.X, q), Y: lerpAt(t.Y, q), Yaw: lerpAt(t.Yaw, q),
			VX: lerpAt(t.VX, q), K: lerpAt(t.K, q), SmoothK: lerpAt(t.SmoothK, q),
			Time: lerpAt(t.Time, q),
		})
	}
	if out.Len() < 2 {
		return nil, ErrTooShort
	}
	return out, nil
}
