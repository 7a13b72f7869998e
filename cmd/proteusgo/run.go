package main

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/analyze"
	"github.com/banshee-data/proteusgo/internal/binformat"
	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/pipeline"
	"github.com/banshee-data/proteusgo/internal/report"
	"github.com/banshee-data/proteusgo/internal/telelog"
	"github.com/urfave/cli/v2"
)

// writerProcessor adapts a binformat.Writer (which is never itself
// wired into pipeline.Loop) into a pipeline.Processor, so `run --output`
// can persist each event after every other processor has finished
// mutating it.
type writerProcessor struct{ w *binformat.Writer }

func (p *writerProcessor) Name() string { return fmt.Sprintf("Writer(%s)", p.w.Name()) }

func (p *writerProcessor) Execute(ev *event.Event) error { return p.w.Append(ev) }

func runCommand() *cli.Command {
	return &cli.Command{
		Name: "run",
		Usage: "replay a recorded run through clustering, tracking, and matching",
		Flags: []cli.Flag{
			logLevelFlag, deviceFlag, optionsFlag,
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "binary event file to replay", Required: true},
			&cli.StringFlag{Name: "output", Usage: "binary event file to write the processed events to"},
			&cli.BoolFlag{Name: "correlation", Usage: "attach the pairwise cluster correlation analyzer"},
			&cli.BoolFlag{Name: "residual", Usage: "attach the cluster-track residual analyzer"},
			&cli.Int64SliceFlag{Name: "efficiency-sensor", Usage: "sensor id to compute tracking efficiency for (repeatable)"},
			&cli.IntFlag{Name: "increase-area", Value: 2, Usage: "pixels to extend efficiency histograms beyond the sensor's nominal area"},
			&cli.Float64Flag{Name: "diff-range", Value: 2.0, Usage: "correlation analyzer's position-difference histogram half-range"},
			&cli.Float64Flag{Name: "pos-range", Value: 5.0, Usage: "residual analyzer's on-plane position histogram half-range"},
			&cli.Float64Flag{Name: "slope-range", Value: 0.05, Usage: "residual analyzer's slope histogram half-range"},
			&cli.StringFlag{Name: "report", Usage: "write an HTML dashboard of efficiency histograms to this path"},
		},
		Action: func(cCtx *cli.Context) error {
			applyLogLevel(cCtx)
			device, opts, err := loadDeviceAndOptions(cCtx.String("device"), cCtx.String("options"))
			if err != nil {
				return err
			}
			geo, err := device.BuildGeometry()
			if err != nil {
				return err
			}
			sensors, err := device.BuildSensors()
			if err != nil {
				return err
			}
			ids := sensorIDs(device)

			reader, err := binformat.NewReader(cCtx.String("input"), ids)
			if err != nil {
				return err
			}
			defer reader.Close()

			procs, err := buildCoreProcessors(geo, sensors, ids, opts)
			if err != nil {
				return err
			}

			var analyzers []pipeline.Analyzer
			var efficiencies []*analyze.EfficiencyAnalyzer
			if cCtx.Bool("correlation") {
				corr, err := analyze.NewCorrelationAnalyzer(geo, geo.SortedAlongBeam(ids), opts.GetNeighbors(), cCtx.Float64("diff-range"), opts.GetBins())
				if err != nil {
					return err
				}
				analyzers = append(analyzers, corr)
			}
			if cCtx.Bool("residual") {
				analyzers = append(analyzers, analyze.NewResidualAnalyzer(sensors, opts.GetPixelRange(), cCtx.Float64("pos-range"), cCtx.Float64("pos-range"), cCtx.Float64("slope-range"), opts.GetBins()))
			}
			for _, sid := range cCtx.Int64Slice("efficiency-sensor") {
				sensor := findSensor(sensors, int32(sid))
				if sensor == nil {
					return fmt.Errorf("run: --efficiency-sensor %d is not a configured sensor", sid)
				}
				eff := analyze.NewEfficiencyAnalyzer(sensor, cCtx.Int("increase-area"), opts.GetMaskedPixelRange(), int(opts.GetInPixelPeriod()), opts.GetInPixelBinsMin())
				analyzers = append(analyzers, eff)
				efficiencies = append(efficiencies, eff)
			}

			if out := cCtx.String("output"); out != "" {
				writer, err := binformat.NewWriter(out, ids)
				if err != nil {
					return err
				}
				defer writer.Close()
				procs = append(procs, &writerProcessor{w: writer})
			}

			loop, err := pipeline.NewLoop(reader, ids, procs, analyzers)
			if err != nil {
				return err
			}
			if err := loop.Run(); err != nil {
				return err
			}

			processed, faulted := loop.Stats()
			telelog.Infof("run: processed=%d faulted=%d", processed, faulted)

			if reportPath := cCtx.String("report"); reportPath != "" {
				rep := report.NewReport("run report")
				for _, eff := range efficiencies {
					total, pass := eff.Efficiency()
					rep.AddHist2D(total)
					rep.AddHist2D(pass)
				}
				if err := rep.WriteHTML(reportPath); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func findSensor(sensors []*geometry.Sensor, id int32) *geometry.Sensor {
	for _, s := range sensors {
		if s.ID == id {
			return s
		}
	}
	return nil
}
