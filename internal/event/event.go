package event

import "fmt"

// Trigger carries the external trigger metadata for one event.
type Trigger struct {
	Time uint64
	Offset int32
	Info int32
	Phase int32 // -1 if absent
}

// Event is one frame of data: all SensorEvents (one per configured
// sensor) plus the tracks reconstructed across them. The Event owns
// all SensorEvents and Tracks; SensorEvents own their hits and
// clusters.
type Event struct {
	Frame uint64
	Timestamp uint64
	Trigger Trigger
	Invalid bool

	// Sensors is indexed by position, not sensor id; SensorIndex maps
	// a sensor id to its position.
	Sensors []*SensorEvent
	sensorIndex map[int32]int

	Tracks []Track
}

// NewEvent builds an Event with one SensorEvent per sensor id, in the
// given order.
func NewEvent(sensorIDs []int32) *Event {
	e := &Event{
		Sensors: make([]*SensorEvent, len(sensorIDs)),
		sensorIndex: make(map[int32]int, len(sensorIDs)),
	}
	for i, id := range sensorIDs {
		e.Sensors[i] = NewSensorEvent(id)
		e.sensorIndex[id] = i
	}
	return e
}

// Clear resets every SensorEvent and drops all tracks, preparing the
// Event for reuse by the next call to a Reader.
func (e *Event) Clear(frame, timestamp uint64) {
	e.Frame = frame
	e.Timestamp = timestamp
	e.Trigger = Trigger{}
	e.Invalid = false
	for _, se := range e.Sensors {
		se.Clear(frame, timestamp)
	}
	e.Tracks = e.Tracks[:0]
}

// SensorEvent returns the SensorEvent for a sensor id, or nil if the
// sensor is not part of this event.
func (e *Event) SensorEvent(sensorID int32) *SensorEvent {
	i, ok := e.sensorIndex[sensorID]
	if !ok {
		return nil
	}
	return e.Sensors[i]
}

// AddTrack appends a track, enforcing that each constituent cluster is
// not already assigned to another track and that the track's own
// cluster list has unique sensor ids. On success it sets each
// constituent cluster's Track back-reference.
func (e *Event) AddTrack(t Track) (int32, error) {
	seen := make(map[int32]bool, len(t.Clusters))
	for _, ref := range t.Clusters {
		if seen[ref.SensorID] {
			return NoIndex, fmt.Errorf("event: track has duplicate sensor id %d", ref.SensorID)
		}
		seen[ref.SensorID] = true
		se := e.SensorEvent(ref.SensorID)
		if se == nil {
			return NoIndex, fmt.Errorf("event: unknown sensor id %d", ref.SensorID)
		}
		if int(ref.Cluster) >= len(se.Clusters) || ref.Cluster < 0 {
			return NoIndex, fmt.Errorf("event: cluster index %d out of range on sensor %d", ref.Cluster, ref.SensorID)
		}
		if se.Clusters[ref.Cluster].Track != NoIndex {
			return NoIndex, fmt.Errorf("event: cluster %d on sensor %d already in track %d", ref.Cluster, ref.SensorID, se.Clusters[ref.Cluster].Track)
		}
	}

	e.Tracks = append(e.Tracks, t)
	idx := int32(len(e.Tracks) - 1)
	for _, ref := range t.Clusters {
		se := e.SensorEvent(ref.SensorID)
		se.Clusters[ref.Cluster].Track = idx
	}
	return idx, nil
}

// NumSensors returns the number of sensors in this event.
func (e *Event) NumSensors() int { return len(e.Sensors) }
