// Package pipeline drives a Reader through events, running ordered
// Processors then ordered Analyzers, and finalizing Analyzers once the
// reader is exhausted. The loop is single-threaded and cooperative: one
// event at a time, no suspension, no background workers.
package pipeline

import "github.com/banshee-data/proteusgo/internal/event"

// Reader is the external collaborator that supplies events.
// Read must clear the provided event and either fully populate it or
// return false; errors are returned, not encoded in the boolean.
type Reader interface {
	Name() string
	NumSensors() int
	// AvailableEvents reports the minimum number of events the reader
	// expects to produce. known is false when the count is not knowable
	// in advance (e.g. a live or streamed source).
	AvailableEvents() (n int64, known bool)
	Skip(n int) error
	Read(ev *event.Event) (bool, error)
}

// Writer is the external collaborator that persists events.
type Writer interface {
	Name() string
	NumSensors() int
	Append(ev *event.Event) error
}

// Processor mutates an event in place: hit preprocessing, clustering,
// track finding, fitting, matching.
type Processor interface {
	Name() string
	Execute(ev *event.Event) error
}

// Analyzer observes a fully processed event without mutating it, and
// accumulates state that is published at Finalize.
type Analyzer interface {
	Name() string
	Execute(ev *event.Event) error
	Finalize() error
}
