package pipeline

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/teleerr"
	"github.com/banshee-data/proteusgo/internal/telelog"
)

// SensorIDs returns the ordered sensor ids a Loop should build its Event
// containers from — callers provide this from their DeviceConfig.
type SensorIDProvider interface {
	SensorIDs() []int32
}

// Loop owns one reusable Event and drives it through a Reader, a chain
// of Processors, and a chain of Analyzers.
type Loop struct {
	reader Reader
	processors []Processor
	analyzers []Analyzer

	ev *event.Event

	numProcessed int64
	numFaulted int64
}

// NewLoop builds a Loop. sensorIDs fixes the Event's sensor ordering for
// the lifetime of the loop.
func NewLoop(reader Reader, sensorIDs []int32, processors []Processor, analyzers []Analyzer) (*Loop, error) {
	if reader.NumSensors() != len(sensorIDs) {
		return nil, teleerr.NewConfigError("pipeline: reader %q expects %d sensors, got %d configured", reader.Name(), reader.NumSensors(), len(sensorIDs))
	}
	return &Loop{
		reader: reader,
		processors: processors,
		analyzers: analyzers,
		ev: event.NewEvent(sensorIDs),
	}, nil
}

// Run drives the reader to exhaustion, running processors then
// analyzers on every produced event, then finalizes every analyzer in
// registration order. A failed read ends the loop. Per-event
// processor/analyzer faults are logged and that event is dropped; the
// loop continues with the next event.
func (l *Loop) Run() error {
	for {
		more, err := l.reader.Read(l.ev)
		if err != nil {
			return fmt.Errorf("pipeline: reader %q: %w", l.reader.Name(), err)
		}
		if !more {
			break
		}
		l.runStages()
	}
	for _, a := range l.analyzers {
		if err := a.Finalize(); err != nil {
			return fmt.Errorf("pipeline: analyzer %q finalize: %w", a.Name(), err)
		}
	}
	return nil
}

func (l *Loop) runStages() {
	for _, p := range l.processors {
		if err := p.Execute(l.ev); err != nil {
			telelog.EventFault(l.ev.Frame, -1, "processor %q: %v", p.Name(), err)
			l.numFaulted++
			return
		}
	}
	for _, a := range l.analyzers {
		if err := a.Execute(l.ev); err != nil {
			telelog.EventFault(l.ev.Frame, -1, "analyzer %q: %v", a.Name(), err)
			l.numFaulted++
			return
		}
	}
	l.numProcessed++
}

// Stats returns the number of events fully processed and the number
// dropped due to a per-event fault.
func (l *Loop) Stats() (processed, faulted int64) {
	return l.numProcessed, l.numFaulted
}
