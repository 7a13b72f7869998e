// Package teleerr defines the three error families used throughout the
// telescope engine: configuration/programmer errors, per-event numeric
// faults, and alignment-solver failures.
package teleerr

import "fmt"

// ConfigError signals invalid configuration or a programmer mistake,
// detected before any event is processed. Callers should fail fast:
// print the message and exit non-zero.
type ConfigError struct {
	Msg string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("config: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError builds a ConfigError from a message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// WrapConfigError builds a ConfigError wrapping a lower-level cause.
func WrapConfigError(cause error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// EventFault signals a numeric or per-event fault (NaN track
// parameters, non-invertible covariance, an unmatchable cluster, a hit
// address outside the sensor). The event loop must survive these: log,
// drop the offending item, continue.
type EventFault struct {
	Frame uint64
	SensorID int32
	Msg string
	Cause error
}

func (e *EventFault) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("event fault frame=%d sensor=%d: %s: %v", e.Frame, e.SensorID, e.Msg, e.Cause)
	}
	return fmt.Sprintf("event fault frame=%d sensor=%d: %s", e.Frame, e.SensorID, e.Msg)
}

func (e *EventFault) Unwrap() error { return e.Cause }

// NewEventFault builds an EventFault for the given frame/sensor.
func NewEventFault(frame uint64, sensorID int32, format string, args ...interface{}) *EventFault {
	return &EventFault{Frame: frame, SensorID: sensorID, Msg: fmt.Sprintf(format, args...)}
}

// AlignmentFailure signals that an alignment solver could not produce a
// geometry update (e.g. effective rank < 2 in the local chi² solver).
// Aborts the current outer alignment iteration; the previous geometry
// remains the last-known-good one.
type AlignmentFailure struct {
	SensorID int32
	Msg string
	Cause error
}

func (e *AlignmentFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("alignment failure sensor=%d: %s: %v", e.SensorID, e.Msg, e.Cause)
	}
	return fmt.Sprintf("alignment failure sensor=%d: %s", e.SensorID, e.Msg)
}

func (e *AlignmentFailure) Unwrap() error { return e.Cause }

// NewAlignmentFailure builds an AlignmentFailure for the given sensor.
func NewAlignmentFailure(sensorID int32, format string, args ...interface{}) *AlignmentFailure {
	return &AlignmentFailure{SensorID: sensorID, Msg: fmt.Sprintf(format, args...)}
}
