package main

import (
	"math"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/ringbuf"
)

// plant is the simulated vehicle: a kinematic bicycle with a first-order
// steering actuator and a command transport delay, integrated at the control
// period.
type plant struct {
	pose      trajectory.Pose
	steer     float64
	velocity  float64
	wheelbase float64
	steerTau  float64
	dt        float64

	// commands in flight between controller and actuator
	delayLine *ringbuf.Buffer
}

func newPlant(pose trajectory.Pose, velocity, wheelbase, steerTau, dt float64, delaySteps int) *plant {
	return &plant{
		pose:      pose,
		velocity:  velocity,
		wheelbase: wheelbase,
		steerTau:  steerTau,
		dt:        dt,
		delayLine: ringbuf.NewFilled(delaySteps, 0),
	}
}

// step advances the vehicle by one control period under the given command.
// The command enters the delay line; the actuator tracks the command that
// was issued delaySteps periods ago.
func (p *plant) step(cmd float64) {
	applied := cmd
	if p.delayLine.Cap() > 0 {
		applied = p.delayLine.At(0)
		p.delayLine.Push(cmd)
	}

	if p.steerTau > 0 {
		p.steer += (applied - p.steer) * (1 - math.Exp(-p.dt/p.steerTau))
	} else {
		p.steer = applied
	}

	// midpoint integration keeps the heading honest at sharp steer angles
	yawRate := p.velocity * math.Tan(p.steer) / p.wheelbase
	midYaw := p.pose.Yaw + 0.5*yawRate*p.dt
	p.pose.X += p.velocity * math.Cos(midYaw) * p.dt
	p.pose.Y += p.velocity * math.Sin(midYaw) * p.dt
	p.pose.Yaw = trajectory.NormalizeRadian(p.pose.Yaw + yawRate*p.dt)
}
