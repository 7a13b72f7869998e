// Package telelog provides the process-wide logger used across the
// telescope engine. It wraps the standard library log package with a
// runtime-configurable level, matching the event loop's requirement
// (init-at-start, no teardown) that the core never depends on a
// structured logging backend.
package telelog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level controls which messages reach the underlying writer.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:		return "DEBUG"
	case LevelInfo:		return "INFO"
	case LevelWarn:		return "WARN"
	case LevelError:		return "ERROR"
	default:		return "UNKNOWN"
	}
}

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the process-wide minimum level. Messages below this level
// are discarded without formatting their arguments.
func SetLevel(l Level) {
	level.Store(int32(l))
}

var std = log.New(os.Stderr, "", log.LstdFlags)

func logf(l Level, format string, args ...interface{}) {
	if Level(level.Load()) > l {
		return
	}
	std.Output(3, fmt.Sprintf("[%s] %s", l, fmt.Sprintf(format, args...)))
}

// Debugf logs a debug-level message.
func Debugf(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

// Infof logs an info-level message.
func Infof(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

// Warnf logs a warn-level message.
func Warnf(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

// Errorf logs an error-level message.
func Errorf(format string, args ...interface{}) { logf(LevelError, format, args...) }

// EventFault logs a per-event fault: the event loop and processors call
// this instead of propagating the error, then drop the offending item
// and continue.
func EventFault(frame uint64, sensorID int32, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logf(LevelError, "frame=%d sensor=%d %s", frame, sensorID, msg)
}

// Fatalf logs at error level and terminates the process. Reserved for
// configuration errors and alignment-solver failures that must stop the
// process immediately rather than propagate.
func Fatalf(format string, args ...interface{}) {
	logf(LevelError, format, args...)
	os.Exit(1)
}
