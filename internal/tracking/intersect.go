package tracking

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

// Intersector computes, for every track found in an event, its unbiased
// local state on each configured sensor, and installs it via
// SensorEvent.SetLocalState. It implements pipeline.Processor and must
// run after Finder and before Matcher, since the matcher pairs clusters
// against exactly these states.
type Intersector struct {
	geo *geometry.Geometry
	sensorIDs []int32
	fitter *Fitter
}

// NewIntersector builds an Intersector computing local states on every
// sensor in sensorIDs, which need not match the sensors used by Finder
// (this allows matching against sensors excluded from the search).
func NewIntersector(geo *geometry.Geometry, sensorIDs []int32) *Intersector {
	ids := make([]int32, len(sensorIDs))
	copy(ids, sensorIDs)
	return &Intersector{geo: geo, sensorIDs: ids, fitter: NewFitter(geo)}
}

// Name implements pipeline.Processor.
func (x *Intersector) Name() string { return "Intersector" }

// Execute implements pipeline.Processor.
func (x *Intersector) Execute(ev *event.Event) error {
	for trackIdx := range ev.Tracks {
		t := &ev.Tracks[trackIdx]
		for _, sensorID := range x.sensorIDs {
			se := ev.SensorEvent(sensorID)
			if se == nil {
				return fmt.Errorf("tracking: sensor %d missing from event", sensorID)
			}
			state, err := x.fitter.FitLocal(ev, t, sensorID, true)
			if err != nil {
				return err
			}
			se.SetLocalState(int32(trackIdx), state)
		}
	}
	return nil
}
