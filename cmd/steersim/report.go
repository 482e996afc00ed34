package main

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/steer.control/internal/mpc/trajectory"
	"github.com/banshee-data/steer.control/internal/units"
)

// record is one control tick's worth of simulation output.
type record struct {
	Time     float64
	Pose     trajectory.Pose
	SteerCmd float64
	SteerAct float64
	LatErr   float64
	YawErr   float64
	QPIter   float64
}

// writeReport renders the simulation run as an HTML page of charts.
func writeReport(path, scenario string, ref *trajectory.Trajectory, recs []record) error {
	pathChart := charts.NewLine()
	pathChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "steersim " + scenario, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Path", Subtitle: fmt.Sprintf("scenario=%s ticks=%d", scenario, len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)"}),
	)
	refData := make([]opts.LineData, 0, ref.Len())
	for i := 0; i < ref.Len(); i++ {
		refData = append(refData, opts.LineData{Value: []interface{}{ref.X[i], ref.Y[i]}})
	}
	actData := make([]opts.LineData, 0, len(recs))
	for _, r := range recs {
		actData = append(actData, opts.LineData{Value: []interface{}{r.Pose.X, r.Pose.Y}})
	}
	pathChart.AddSeries("reference", refData)
	pathChart.AddSeries("vehicle", actData)

	errChart := charts.NewLine()
	errChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Tracking error"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "error"}),
	)
	latData := make([]opts.LineData, 0, len(recs))
	yawData := make([]opts.LineData, 0, len(recs))
	for _, r := range recs {
		latData = append(latData, opts.LineData{Value: []interface{}{r.Time, r.LatErr}})
		yawData = append(yawData, opts.LineData{Value: []interface{}{r.Time, units.Rad2Deg(r.YawErr)}})
	}
	errChart.AddSeries("lateral (m)", latData)
	errChart.AddSeries("heading (deg)", yawData)

	steerChart := charts.NewLine()
	steerChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Steering"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "angle (deg)"}),
	)
	cmdData := make([]opts.LineData, 0, len(recs))
	actSteer := make([]opts.LineData, 0, len(recs))
	for _, r := range recs {
		cmdData = append(cmdData, opts.LineData{Value: []interface{}{r.Time, units.Rad2Deg(r.SteerCmd)}})
		actSteer = append(actSteer, opts.LineData{Value: []interface{}{r.Time, units.Rad2Deg(r.SteerAct)}})
	}
	steerChart.AddSeries("command", cmdData)
	steerChart.AddSeries("actuator", actSteer)

	page := components.NewPage()
	page.AddCharts(pathChart, errChart, steerChart)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
