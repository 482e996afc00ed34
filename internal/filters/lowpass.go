// Package filters provides the small stateful signal filters used by the
// steering controller: a first-order low-pass filter and a moving-average
// vector filter.
package filters

import "math"

// LowPass is a first-order low-pass filter with persistent state. The gain
// is derived from the cutoff frequency and the sampling period at
// construction.
type LowPass struct {
	gain        float64
	state       float64
	initialized bool
}

// NewLowPass returns a low-pass filter for the given cutoff frequency [Hz]
// and sampling period [s]. A non-positive cutoff yields a pass-through
// filter.
func NewLowPass(cutoffHz, dt float64) *LowPass {
	if cutoffHz <= 0 || dt <= 0 {
		return &LowPass{gain: 0}
	}
	// gain = tau / (tau + dt) with tau = 1 / (2*pi*fc)
	tau := 1 / (2 * math.Pi * cutoffHz)
	return &LowPass{gain: tau / (tau + dt)}
}

// Filter advances the filter by one sample and returns the filtered value.
// The first sample initializes the state.
func (f *LowPass) Filter(u float64) float64 {
	if !f.initialized {
		f.state = u
		f.initialized = true
		return u
	}
	f.state = f.gain*f.state + (1-f.gain)*u
	return f.state
}

// Peek returns the value Filter would produce for u without advancing the
// filter state. Pair with Reset to commit the sample later.
func (f *LowPass) Peek(u float64) float64 {
	if !f.initialized {
		return u
	}
	return f.gain*f.state + (1-f.gain)*u
}

// Reset sets the filter state to the given value.
func (f *LowPass) Reset(v float64) {
	f.state = v
	f.initialized = true
}

// State returns the current filter state.
func (f *LowPass) State() float64 { return f.state }

// MovingAverage smooths the values in place with a centered window of
// half-width w. It reports false (and leaves the slice untouched) when the
// slice is too short for the window.
func MovingAverage(w int, values []float64) bool {
	n := len(values)
	if w < 1 || n < 2*w+1 {
		return false
	}
	src := make([]float64, n)
	copy(src, values)
	for i := w; i < n-w; i++ {
		sum := 0.0
		for j := i - w; j <= i+w; j++ {
			sum += src[j]
		}
		values[i] = sum / float64(2*w+1)
	}
	return true
}
