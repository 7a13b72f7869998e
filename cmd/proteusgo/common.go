package main

import (
	"github.com/banshee-data/proteusgo/internal/align"
	"github.com/banshee-data/proteusgo/internal/cluster"
	"github.com/banshee-data/proteusgo/internal/config"
	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/match"
	"github.com/banshee-data/proteusgo/internal/pipeline"
	"github.com/banshee-data/proteusgo/internal/telelog"
	"github.com/banshee-data/proteusgo/internal/teleerr"
	"github.com/banshee-data/proteusgo/internal/tracking"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

var logLevelFlag = &cli.StringFlag{
	Name: "log-level",
	Usage: "debug, info, warn, or error",
	Value: "info",
}

var deviceFlag = &cli.StringFlag{
	Name: "device",
	Aliases: []string{"d"},
	Usage: "device geometry config JSON",
	Required: true,
}

var optionsFlag = &cli.StringFlag{
	Name: "options",
	Aliases: []string{"t"},
	Usage: "run options JSON (tuning knobs); fields left out use their documented defaults",
}

func applyLogLevel(cCtx *cli.Context) {
	switch cCtx.String("log-level") {
	case "debug":
		telelog.SetLevel(telelog.LevelDebug)
	case "warn":
		telelog.SetLevel(telelog.LevelWarn)
	case "error":
		telelog.SetLevel(telelog.LevelError)
	default:
		telelog.SetLevel(telelog.LevelInfo)
	}
}

// loadDeviceAndOptions reads the two configuration documents every
// command needs, defaulting RunOptions to its empty (all-default) form
// when the caller does not supply one.
func loadDeviceAndOptions(devicePath, optionsPath string) (*config.DeviceConfig, *config.RunOptions, error) {
	device, err := config.LoadDeviceConfig(devicePath)
	if err != nil {
		return nil, nil, err
	}
	if optionsPath == "" {
		return device, config.EmptyRunOptions(), nil
	}
	opts, err := config.LoadRunOptions(optionsPath)
	if err != nil {
		return nil, nil, err
	}
	return device, opts, nil
}

// sensorIDs returns every configured sensor's id, in document order.
func sensorIDs(device *config.DeviceConfig) []int32 {
	return lo.Map(device.Sensors, func(s config.SensorConfig, _ int) int32 { return s.ID })
}

func int64SliceToInt32(in []int64) []int32 {
	return lo.Map(in, func(v int64, _ int) int32 { return int32(v) })
}

// filterSensors keeps only the sensors named by ids, in ids' order. An
// empty ids means "every sensor", since that is how the align command's
// unset --align-sensor flag is meant to read.
func filterSensors(sensors []*geometry.Sensor, ids []int32) []*geometry.Sensor {
	if len(ids) == 0 {
		return sensors
	}
	byID := lo.KeyBy(sensors, func(s *geometry.Sensor) int32 { return s.ID })
	return lo.FilterMap(ids, func(id int32, _ int) (*geometry.Sensor, bool) {
		s, ok := byID[id]
		return s, ok
	})
}

// buildCoreProcessors assembles the processor chain every command
// shares: per-sensor clustering, track finding, per-sensor local-state
// extrapolation, and per-sensor matching, in that order.
func buildCoreProcessors(geo *geometry.Geometry, sensors []*geometry.Sensor, ids []int32, opts *config.RunOptions) ([]pipeline.Processor, error) {
	procs := make([]pipeline.Processor, 0, 2*len(sensors)+2)
	for _, s := range sensors {
		procs = append(procs, cluster.NewProcessor(s, cluster.Connectivity8))
	}
	finder, err := tracking.NewFinder(geo, ids, opts.GetNumClustersMin(), opts.GetSearchSigmaMax(), opts.GetReducedChi2Max())
	if err != nil {
		return nil, err
	}
	procs = append(procs, finder)
	procs = append(procs, tracking.NewIntersector(geo, ids))
	for _, s := range sensors {
		procs = append(procs, match.NewMatcher(s.ID, s.Name, opts.GetDistanceSigmaMax()))
	}
	return procs, nil
}

// aligner is the common shape of the three solvers in the align
// package: a pipeline.Analyzer that, once the loop finishes, can
// produce the corrected geometry.
type aligner interface {
	pipeline.Analyzer
	UpdatedGeometry() (*geometry.Geometry, error)
}

// buildAligner constructs the named solver. alignIDs empty means "every
// configured sensor" for local-chi2 and residual; correlation always
// requires an explicit fixedID plus the sensors to move.
func buildAligner(name string, geo *geometry.Geometry, sensors []*geometry.Sensor, ids, alignIDs []int32, fixedID int32, hasFixedID bool, opts *config.RunOptions, diffRange float64) (aligner, []int32, error) {
	switch name {
	case "local-chi2":
		effective := alignIDs
		if len(effective) == 0 {
			effective = ids
		}
		return align.NewLocalChi2Aligner(geo, effective, opts.GetDamping()), effective, nil
	case "residual":
		effective := alignIDs
		if len(effective) == 0 {
			effective = ids
		}
		sel := filterSensors(sensors, effective)
		return align.NewResidualAligner(geo, sel, opts.GetDamping(), opts.GetPixelRange(), opts.GetGammaRange(), opts.GetBins()), effective, nil
	case "correlation":
		if !hasFixedID {
			return nil, nil, teleerr.NewConfigError("align: --fixed-sensor is required for the correlation aligner")
		}
		a, err := align.NewCorrelationAligner(geo, fixedID, alignIDs, opts.GetDamping(), diffRange, opts.GetBins())
		return a, alignIDs, err
	default:
		return nil, nil, teleerr.NewConfigError("align: unknown aligner %q (want local-chi2, residual, or correlation)", name)
	}
}

// diffCorrections summarizes one alignment iteration as the per-sensor
// change in global origin. Rotation deltas are not tracked here: the
// aligners apply their correction directly to the plane's rotation
// matrix and don't return the small-angle parameters separately, so
// recovering them would mean decomposing two rotation matrices just for
// a history record.
func diffCorrections(before, after *geometry.Geometry, ids []int32) map[int32][6]float64 {
	out := make(map[int32][6]float64, len(ids))
	for _, id := range ids {
		op, np := before.Plane(id), after.Plane(id)
		if op == nil || np == nil {
			continue
		}
		out[id] = [6]float64{
			np.Origin[0] - op.Origin[0],
			np.Origin[1] - op.Origin[1],
			np.Origin[2] - op.Origin[2],
			0, 0, 0,
		}
	}
	return out
}

// chi2Tracker accumulates the global-fit chi2/dof of every track in a
// loop, so `align` can log and persist a per-iteration fit summary
// without reaching into the aligner itself, since tracks already carry
// their own Chi2/Dof.
type chi2Tracker struct {
	sumChi2 float64
	sumDof int64
	numTracks int64
}

func (t *chi2Tracker) Name() string { return "Chi2Tracker" }

func (t *chi2Tracker) Execute(ev *event.Event) error {
	for _, tr := range ev.Tracks {
		t.sumChi2 += tr.Chi2
		t.sumDof += int64(tr.Dof)
		t.numTracks++
	}
	return nil
}

func (t *chi2Tracker) Finalize() error { return nil }
