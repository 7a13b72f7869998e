package main

import (
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/proteusgo/internal/binformat"
	"github.com/banshee-data/proteusgo/internal/config"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/pipeline"
	"github.com/banshee-data/proteusgo/internal/store"
	"github.com/banshee-data/proteusgo/internal/telelog"
	"github.com/urfave/cli/v2"
)

func alignCommand() *cli.Command {
	return &cli.Command{
		Name: "align",
		Usage: "iteratively solve for sensor corrections against a recorded run",
		Flags: []cli.Flag{
			logLevelFlag, deviceFlag, optionsFlag,
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "binary event file to replay each iteration", Required: true},
			&cli.StringFlag{Name: "store", Usage: "sqlite database recording this run's iterations", Required: true},
			&cli.StringFlag{Name: "aligner", Usage: "local-chi2, residual, or correlation", Required: true},
			&cli.IntFlag{Name: "iterations", Value: 1, Usage: "number of alignment iterations to run"},
			&cli.Int64SliceFlag{Name: "align-sensor", Usage: "sensor id to correct (repeatable); default is every configured sensor"},
			&cli.Int64Flag{Name: "fixed-sensor", Usage: "sensor id held fixed (required for the correlation aligner)"},
			&cli.Float64Flag{Name: "diff-range", Value: 2.0, Usage: "correlation aligner's position-difference histogram half-range"},
			&cli.StringFlag{Name: "output", Usage: "write the final geometry snapshot (JSON) to this path"},
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
			alignIDs := int64SliceToInt32(cCtx.Int64Slice("align-sensor"))
			effective := alignIDs
			if len(effective) == 0 {
				effective = ids
			}
			fixedID := int32(cCtx.Int64("fixed-sensor"))
			hasFixedID := cCtx.IsSet("fixed-sensor")
			alignerName := cCtx.String("aligner")
			diffRange := cCtx.Float64("diff-range")

			db, err := store.Open(cCtx.String("store"))
			if err != nil {
				return err
			}
			defer db.Close()

			configJSON := fmt.Sprintf(`{"damping":%g,"iterations":%d}`, opts.GetDamping(), cCtx.Int("iterations"))
			run, err := db.CreateRun(alignerName, configJSON, time.Now().UnixNano())
			if err != nil {
				return err
			}
			telelog.Infof("align: started run %s (%s)", run.ID, alignerName)

			inputPath := cCtx.String("input")
			for iter := 0; iter < cCtx.Int("iterations"); iter++ {
				newGeo, tracker, err := runAlignIteration(inputPath, geo, sensors, ids, alignIDs, fixedID, hasFixedID, alignerName, opts, diffRange)
				if err != nil {
					return fmt.Errorf("align: iteration %d: %w", iter, err)
				}
				telelog.Infof("align: iteration %d tracks=%d sumChi2=%.4g sumDof=%d", iter, tracker.numTracks, tracker.sumChi2, tracker.sumDof)

				corrections := diffCorrections(geo, newGeo, effective)
				hasChi2 := tracker.numTracks > 0
				if err := db.AppendIteration(run.ID, iter, newGeo, tracker.sumChi2, hasChi2, int32(tracker.sumDof), hasChi2, corrections, time.Now().UnixNano()); err != nil {
					return err
				}
				geo = newGeo
			}

			if out := cCtx.String("output"); out != "" {
				blob, err := store.EncodeGeometry(geo)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, []byte(blob), 0o644); err != nil {
					return fmt.Errorf("align: write output %s: %w", out, err)
				}
			}
			telelog.Infof("align: run %s complete", run.ID)
			return nil
		},
	}
}

// runAlignIteration replays inputPath once through the core processors
// plus the named aligner, returning the corrected geometry and the
// iteration's accumulated track-fit summary. The reader is reopened
// per call since a Reader is exhausted after one pass, and alignment
// proceeds iteratively rather than in a single streaming replay.
func runAlignIteration(inputPath string, geo *geometry.Geometry, sensors []*geometry.Sensor, ids, alignIDs []int32, fixedID int32, hasFixedID bool, alignerName string, opts *config.RunOptions, diffRange float64) (*geometry.Geometry, *chi2Tracker, error) {
	reader, err := binformat.NewReader(inputPath, ids)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	al, _, err := buildAligner(alignerName, geo, sensors, ids, alignIDs, fixedID, hasFixedID, opts, diffRange)
	if err != nil {
		return nil, nil, err
	}
	procs, err := buildCoreProcessors(geo, sensors, ids, opts)
	if err != nil {
		return nil, nil, err
	}
	tracker := &chi2Tracker{}

	loop, err := pipeline.NewLoop(reader, ids, procs, []pipeline.Analyzer{al, tracker})
	if err != nil {
		return nil, nil, err
	}
	if err := loop.Run(); err != nil {
		return nil, nil, err
	}

	newGeo, err := al.UpdatedGeometry()
	if err != nil {
		return nil, nil, err
	}
	return newGeo, tracker, nil
}
