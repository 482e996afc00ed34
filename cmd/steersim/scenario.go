package main

import (
	"fmt"
	"math"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
)

// buildScenario returns the reference trajectory and the vehicle start pose
// for a named scenario. The start pose carries a small lateral offset so the
// controller has an error to regulate from the first tick.
func buildScenario(name string, speed float64) (*trajectory.Trajectory, trajectory.Pose, error) {
	const spacing = 0.5 // [m]
	switch name {
	case "straight":
		tr := trajectory.New(600)
		for i := 0; i < 600; i++ {
			x := float64(i) * spacing
			tr.Push(trajectory.Point{X: x, Yaw: 0, VX: speed, Time: x / speed})
		}
		return tr, trajectory.Pose{X: 0, Y: 0.5, Yaw: 0}, nil

	case "curve":
		// constant left turn, radius 60 m
		const radius = 60.0
		n := int(math.Floor(radius * math.Pi / spacing)) // half circle
		tr := trajectory.New(n)
		for i := 0; i < n; i++ {
			s := float64(i) * spacing
			phi := s / radius
			tr.Push(trajectory.Point{
				X:    radius * math.Sin(phi),
				Y:    radius * (1 - math.Cos(phi)),
				Yaw:  phi,
				VX:   speed,
				K:    1 / radius,
				Time: s / speed,
			})
		}
		return tr, trajectory.Pose{X: 0, Y: -0.3, Yaw: 0}, nil

	case "lane-change":
		// 3.5 m lateral shift over 40 m, smoothed with a sigmoid
		const (
			total     = 250.0
			shiftAt   = 80.0
			shiftLen  = 40.0
			laneWidth = 3.5
		)
		n := int(total / spacing)
		tr := trajectory.New(n)
		for i := 0; i < n; i++ {
			x := float64(i) * spacing
			s := (x - shiftAt) / shiftLen
			y := laneWidth / (1 + math.Exp(-8*(s-0.5)))
			tr.Push(trajectory.Point{X: x, Y: y, VX: speed, Time: x / speed})
		}
		// yaw from geometry; the preprocessor recomputes it anyway
		tr.CalcYawFromXY(true)
		return tr, trajectory.Pose{X: 0, Y: 0, Yaw: 0}, nil

	default:
		return nil, trajectory.Pose{}, fmt.Errorf("unknown scenario %q (want straight, curve or lane-change)", name)
	}
}
