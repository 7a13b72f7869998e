package binformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/fsutil"
	"github.com/banshee-data/proteusgo/internal/teleerr"
)

// byteOrder is the wire byte order for every fixed-size record in the
// format.
var byteOrder = binary.LittleEndian

// fs is the filesystem output files are created through; overridden in
// tests with fsutil.NewMemoryFileSystem to avoid touching disk.
var fs fsutil.FileSystem = fsutil.OSFileSystem{}

// Writer persists Events to a single file: a global-event header, a
// global-tracks stream, then one hits/clusters/intercepts triplet per
// configured sensor, written back to back with no event-to-event index
// stored in the file (append-only archival use; Reader builds its own
// offset index when it opens the file, and Skip seeks through it).
type Writer struct {
	name string
	sensorIDs []int32
	f io.WriteCloser
	w *bufio.Writer

	numAppended int64
}

// NewWriter creates (or truncates) the file at path and returns a
// Writer expecting events with exactly the given sensor ids, in that
// order ("the writer declares how many sensors it expects").
func NewWriter(path string, sensorIDs []int32) (*Writer, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("binformat: create %s: %w", path, err)
	}
	ids := make([]int32, len(sensorIDs))
	copy(ids, sensorIDs)
	return &Writer{
		name: path,
		sensorIDs: ids,
		f: f,
		w: bufio.NewWriter(f),
	}, nil
}

// Name implements pipeline.Writer.
func (w *Writer) Name() string { return w.name }

// NumSensors implements pipeline.Writer.
func (w *Writer) NumSensors() int { return len(w.sensorIDs) }

// Append implements pipeline.Writer: writes one event record. Returns
// an EventFault if the event's sensor count or the per-stream entry
// counts don't match the writer's configuration or the cap, since both
// are properties of this one event rather than of the writer's setup.
func (w *Writer) Append(ev *event.Event) error {
	if ev.NumSensors() != len(w.sensorIDs) {
		return teleerr.NewEventFault(ev.Frame, -1, "binformat: writer %s expects %d sensors, event has %d", w.name, len(w.sensorIDs), ev.NumSensors())
	}
	if len(ev.Tracks) > MaxPerEvent {
		return teleerr.NewEventFault(ev.Frame, -1, "binformat: %d tracks exceeds per-event cap %d", len(ev.Tracks), MaxPerEvent)
	}

	hdr := wireGlobalEvent{
		Frame: ev.Frame, Timestamp: ev.Timestamp,
		TriggerTime: ev.Trigger.Time, TriggerOffset: ev.Trigger.Offset,
		TriggerInfo: ev.Trigger.Info, TriggerPhase: ev.Trigger.Phase,
		Invalid: ev.Invalid,
	}
	if err := binary.Write(w.w, byteOrder, &hdr); err != nil {
		return fmt.Errorf("binformat: write event header: %w", err)
	}

	if err := writeInt32(w.w, int32(len(ev.Tracks))); err != nil {
		return err
	}
	for _, t := range ev.Tracks {
		wt := toWireGlobalTrack(t)
		if err := binary.Write(w.w, byteOrder, &wt); err != nil {
			return fmt.Errorf("binformat: write track: %w", err)
		}
	}

	for _, se := range ev.Sensors {
		if len(se.Hits) > MaxPerEvent {
			return teleerr.NewEventFault(ev.Frame, se.SensorID, "binformat: %d hits exceeds per-event cap %d", len(se.Hits), MaxPerEvent)
		}
		if len(se.Clusters) > MaxPerEvent {
			return teleerr.NewEventFault(ev.Frame, se.SensorID, "binformat: %d clusters exceeds per-event cap %d", len(se.Clusters), MaxPerEvent)
		}
		if len(se.LocalStates) > MaxPerEvent {
			return teleerr.NewEventFault(ev.Frame, se.SensorID, "binformat: %d intercepts exceeds per-event cap %d", len(se.LocalStates), MaxPerEvent)
		}

		if err := writeInt32(w.w, int32(len(se.Hits))); err != nil {
			return err
		}
		for _, h := range se.Hits {
			wh := toWireHit(h)
			if err := binary.Write(w.w, byteOrder, &wh); err != nil {
				return fmt.Errorf("binformat: write hit: %w", err)
			}
		}

		if err := writeInt32(w.w, int32(len(se.Clusters))); err != nil {
			return err
		}
		for _, c := range se.Clusters {
			wc := toWireCluster(c)
			if err := binary.Write(w.w, byteOrder, &wc); err != nil {
				return fmt.Errorf("binformat: write cluster: %w", err)
			}
		}

		if err := writeInt32(w.w, int32(len(se.LocalStates))); err != nil {
			return err
		}
		for trackIdx, state := range se.LocalStates {
			wi := toWireIntercept(trackIdx, state)
			if err := binary.Write(w.w, byteOrder, &wi); err != nil {
				return fmt.Errorf("binformat: write intercept: %w", err)
			}
		}
	}

	w.numAppended++
	return nil
}

func writeInt32(w io.Writer, v int32) error {
	if err := binary.Write(w, byteOrder, v); err != nil {
		return fmt.Errorf("binformat: write count: %w", err)
	}
	return nil
}

// Flush flushes buffered writes to the underlying file without closing
// it, letting callers checkpoint a long-running append.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("binformat: flush %s: %w", w.name, err)
	}
	return nil
}

// NumAppended returns the number of events written so far.
func (w *Writer) NumAppended() int64 { return w.numAppended }

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("binformat: flush %s: %w", w.name, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("binformat: close %s: %w", w.name, err)
	}
	return nil
}
