package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/proteusgo/internal/binformat"
	"github.com/banshee-data/proteusgo/internal/config"
	"github.com/banshee-data/proteusgo/internal/store"
	"github.com/urfave/cli/v2"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name: "inspect",
		Usage: "dump geometry, a recorded run's event index, or an alignment run's history as JSON",
		Subcommands: []*cli.Command{
			inspectGeometryCommand(),
			inspectEventsCommand(),
			inspectRunCommand(),
		},
	}
}

func inspectGeometryCommand() *cli.Command {
	return &cli.Command{
		Name: "geometry",
		Usage: "print a device config's geometry as JSON",
		Flags: []cli.Flag{deviceFlag},
		Action: func(cCtx *cli.Context) error {
			device, err := config.LoadDeviceConfig(cCtx.String("device"))
			if err != nil {
				return err
			}
			geo, err := device.BuildGeometry()
			if err != nil {
				return err
			}
			blob, err := store.EncodeGeometry(geo)
			if err != nil {
				return err
			}
			fmt.Println(blob)
			return nil
		},
	}
}

func inspectEventsCommand() *cli.Command {
	return &cli.Command{
		Name: "events",
		Usage: "print a recorded run's sensor list and event count as JSON",
		ArgsUsage: "<file.ptbin>",
		Flags: []cli.Flag{deviceFlag},
		Action: func(cCtx *cli.Context) error {
			path := cCtx.Args().First()
			if path == "" {
				return fmt.Errorf("inspect events: a binary event file argument is required")
			}
			device, err := config.LoadDeviceConfig(cCtx.String("device"))
			if err != nil {
				return err
			}
			ids := sensorIDs(device)

			reader, err := binformat.NewReader(path, ids)
			if err != nil {
				return err
			}
			defer reader.Close()

			n, known := reader.AvailableEvents()
			summary := struct {
				Name string `json:"name"`
				NumSensors int `json:"num_sensors"`
				AvailableEvents int64 `json:"available_events"`
				Known bool `json:"available_events_known"`
			}{Name: reader.Name(), NumSensors: reader.NumSensors(), AvailableEvents: n, Known: known}

			return printJSON(summary)
		},
	}
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name: "run",
		Usage: "print an alignment run's recorded iterations as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "sqlite database recording alignment runs", Required: true},
			&cli.StringFlag{Name: "run", Usage: "run id to inspect", Required: true},
		},
		Action: func(cCtx *cli.Context) error {
			db, err := store.Open(cCtx.String("store"))
			if err != nil {
				return err
			}
			defer db.Close()

			iters, err := db.ListIterations(cCtx.String("run"))
			if err != nil {
				return err
			}

			out := make([]iterationSummary, len(iters))
			for i, it := range iters {
				out[i] = iterationSummary{Seq: it.Seq, Corrections: it.Corrections}
				if it.HasChi2 {
					chi2 := it.Chi2
					out[i].Chi2 = &chi2
				}
				if it.HasDof {
					dof := it.Dof
					out[i].Dof = &dof
				}
			}
			return printJSON(out)
		},
	}
}

// iterationSummary is the JSON form of a store.Iteration printed by
// `inspect run`; the full geometry snapshot is omitted since it easily
// dwarfs the rest of the summary and is already reachable per-iteration
// through `align --output` if needed.
type iterationSummary struct {
	Seq int `json:"seq"`
	Chi2 *float64 `json:"chi2,omitempty"`
	Dof *int32 `json:"dof,omitempty"`
	Corrections map[int32][6]float64 `json:"corrections,omitempty"`
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(b, '\n'))
	return err
}
