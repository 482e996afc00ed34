// Command steersim runs the MPC lateral controller in closed loop against a
// simulated vehicle on a synthetic scenario and writes an HTML report of the
// tracking performance.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/banshee-data/steer.control/internal/config"
	"github.com/banshee-data/steer.control/internal/mpc"
	"github.com/banshee-data/steer.control/internal/mpc/qpsolver"
	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/mpc/vehicle"
	"github.com/banshee-data/steer.control/internal/units"
)

func main() {
	var (
		scenario   = flag.String("scenario", "lane-change", "scenario: straight, curve or lane-change")
		speed      = flag.Float64("speed", 10.0, "vehicle speed (m/s)")
		duration   = flag.Float64("duration", 15.0, "simulated time (s)")
		configPath = flag.String("config", "", "tuning config JSON (default: built-in defaults)")
		modelName  = flag.String("model", "", "vehicle model override (kinematics, kinematics_no_delay, dynamics)")
		reportPath = flag.String("report", "steersim.html", "output HTML report path")
		quiet      = flag.Bool("quiet", false, "suppress per-second progress logging")
	)
	flag.Parse()

	if err := run(*scenario, *speed, *duration, *configPath, *modelName, *reportPath, *quiet); err != nil {
		log.Fatalf("steersim: %v", err)
	}
}

func run(scenario string, speed, duration float64, configPath, modelName, reportPath string, quiet bool) error {
	var tc *config.TuningConfig
	if configPath != "" {
		var err error
		tc, err = config.LoadTuningConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		tc = config.EmptyTuningConfig()
	}

	variant := vehicle.Variant(tc.GetVehicleModel())
	if modelName != "" {
		variant = vehicle.Variant(modelName)
	}
	model, err := vehicle.New(variant, mpc.VehicleParamsFromTuning(tc))
	if err != nil {
		return err
	}

	ctrl, err := mpc.New(mpc.ConfigFromTuning(tc), model, qpsolver.NewADMM())
	if err != nil {
		return err
	}

	ref, startPose, err := buildScenario(scenario, speed)
	if err != nil {
		return err
	}
	if err := ctrl.SetReferenceTrajectory(ref, mpc.FilteringFromTuning(tc), startPose); err != nil {
		return fmt.Errorf("set reference: %w", err)
	}
	ctrl.ResetPrevResult(0)

	ctp := tc.GetControlPeriod()
	delaySteps := int(tc.GetInputDelay()/ctp + 0.5)
	veh := newPlant(startPose, speed, tc.GetWheelbase(), tc.GetSteerTau(), ctp, delaySteps)

	log.Printf("scenario=%s model=%s speed=%.1fm/s duration=%.1fs delay=%d steps",
		scenario, variant, speed, duration, delaySteps)

	ticks := int(duration / ctp)
	logEvery := progressInterval(ctp)
	recs := make([]record, 0, ticks)
	var failed int
	cmd := 0.0
	for i := 0; i < ticks; i++ {
		t := float64(i) * ctp
		state := mpc.VehicleState{Pose: veh.pose, Velocity: veh.velocity, Steer: veh.steer}

		res, err := ctrl.Run(state)
		if err != nil {
			// hold the previous command through a failed cycle
			failed++
		} else {
			cmd = res.Command.SteerAngle
			recs = append(recs, record{
				Time:     t,
				Pose:     veh.pose,
				SteerCmd: cmd,
				SteerAct: veh.steer,
				LatErr:   res.Diagnostics[mpc.DiagLatError],
				YawErr:   res.Diagnostics[mpc.DiagYawError],
				QPIter:   res.Diagnostics[mpc.DiagQPIterations],
			})
		}
		veh.step(cmd)

		if !quiet && i > 0 && i%logEvery == 0 && len(recs) > 0 {
			r := recs[len(recs)-1]
			log.Printf("t=%5.1fs pos=(%7.2f,%7.2f) lat_err=%+.3fm yaw_err=%+.2fdeg steer=%+.2fdeg qp_iter=%.0f",
				t, veh.pose.X, veh.pose.Y, r.LatErr, units.Rad2Deg(r.YawErr), units.Rad2Deg(r.SteerCmd), r.QPIter)
		}

		// stop early once the horizon no longer fits the reference
		if remaining := ref.ArcLength() - arcProgress(ref, veh.pose); remaining < tc.GetMinPredictionLength()*2 {
			log.Printf("end of reference approached at t=%.1fs, stopping", t)
			break
		}
	}

	if len(recs) == 0 {
		return fmt.Errorf("no successful control cycles (%d failures)", failed)
	}

	var maxLat, sumSq float64
	for _, r := range recs {
		if a := math.Abs(r.LatErr); a > maxLat {
			maxLat = a
		}
		sumSq += r.LatErr * r.LatErr
	}
	rms := math.Sqrt(sumSq / float64(len(recs)))
	log.Printf("done: %d cycles, %d failed, lat_err rms=%.3fm max=%.3fm", len(recs), failed, rms, maxLat)

	if err := writeReport(reportPath, scenario, ref, recs); err != nil {
		return err
	}
	abs, _ := os.Getwd()
	log.Printf("report written to %s (cwd %s)", reportPath, abs)
	return nil
}

// progressInterval returns the tick count between progress log lines, about
// one per simulated second, never less than every tick.
func progressInterval(ctp float64) int {
	n := int(1.0 / ctp)
	if n < 1 {
		n = 1
	}
	return n
}

// arcProgress returns the arc length from the reference start to the
// vehicle's nearest point.
func arcProgress(ref *trajectory.Trajectory, pose trajectory.Pose) float64 {
	idx := ref.NearestIndex(pose)
	sum := 0.0
	for i := 1; i <= idx; i++ {
		sum += ref.Distance(i, i-1)
	}
	return sum
}
