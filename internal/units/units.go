// Package units provides shared angle and speed conversion helpers.
package units

import "math"

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 { return rad * 180 / math.Pi }

// KphToMps converts kilometres per hour to metres per second.
func KphToMps(kph float64) float64 { return kph / 3.6 }

// MpsToKph converts metres per second to kilometres per hour.
func MpsToKph(mps float64) float64 { return mps * 3.6 }

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
