package event

import "fmt"

// SensorEvent is the per-sensor, per-event owning store of hits and
// clusters, plus the local track states keyed by track index. It is
// reused across events; Clear resets contents without deallocating
// the backing arrays.
type SensorEvent struct {
	SensorID int32

	Hits []Hit
	Clusters []Cluster

	// LocalStates maps a track's index in Event.Tracks to the local
	// TrackState produced for this sensor by the track fitter.
	LocalStates map[int32]TrackState

	Frame uint64
	Timestamp uint64
}

// NewSensorEvent builds an empty SensorEvent for the given sensor.
func NewSensorEvent(sensorID int32) *SensorEvent {
	return &SensorEvent{
		SensorID: sensorID,
		LocalStates: make(map[int32]TrackState),
	}
}

// Clear resets the event to an empty state for a new frame, keeping the
// underlying slice/map capacity.
func (se *SensorEvent) Clear(frame, timestamp uint64) {
	se.Hits = se.Hits[:0]
	se.Clusters = se.Clusters[:0]
	for k := range se.LocalStates {
		delete(se.LocalStates, k)
	}
	se.Frame = frame
	se.Timestamp = timestamp
}

// AddHit appends a hit and returns its index.
func (se *SensorEvent) AddHit(h Hit) int32 {
	h.Cluster = NoIndex
	se.Hits = append(se.Hits, h)
	return int32(len(se.Hits) - 1)
}

// AddCluster appends a cluster built from the given hit indices, setting
// each hit's Cluster back-reference to the new cluster's index.
// Returns an error if any hit index is out of range or already owned
// by another cluster. Callers must set c.Track and
// c.MatchedState to NoIndex themselves; AddCluster stores the value
// verbatim and does not default a zero value to NoIndex, since 0 is a
// legitimate track/state index.
func (se *SensorEvent) AddCluster(c Cluster) (int32, error) {
	for _, hi := range c.Hits {
		if hi < 0 || int(hi) >= len(se.Hits) {
			return NoIndex, fmt.Errorf("sensorevent: hit index %d out of range", hi)
		}
		if se.Hits[hi].Cluster != NoIndex {
			return NoIndex, fmt.Errorf("sensorevent: hit %d already owned by cluster %d", hi, se.Hits[hi].Cluster)
		}
	}
	se.Clusters = append(se.Clusters, c)
	idx := int32(len(se.Clusters) - 1)
	for _, hi := range c.Hits {
		se.Hits[hi].Cluster = idx
	}
	return idx, nil
}

// AssignTrack records that cluster iclu belongs to track track,
// enforcing the at-most-one-track invariant.
func (se *SensorEvent) AssignTrack(iclu, track int32) error {
	if iclu < 0 || int(iclu) >= len(se.Clusters) {
		return fmt.Errorf("sensorevent: cluster index %d out of range", iclu)
	}
	if se.Clusters[iclu].Track != NoIndex {
		return fmt.Errorf("sensorevent: cluster %d already assigned to track %d", iclu, se.Clusters[iclu].Track)
	}
	se.Clusters[iclu].Track = track
	return nil
}

// AddMatch records a cluster<->local-state match, enforcing that each
// side is matched at most once.
func (se *SensorEvent) AddMatch(iclu, trackIdx int32) error {
	if iclu < 0 || int(iclu) >= len(se.Clusters) {
		return fmt.Errorf("sensorevent: cluster index %d out of range", iclu)
	}
	if se.Clusters[iclu].MatchedState != NoIndex {
		return fmt.Errorf("sensorevent: cluster %d already matched", iclu)
	}
	state, ok := se.LocalStates[trackIdx]
	if !ok {
		return fmt.Errorf("sensorevent: no local state for track %d", trackIdx)
	}
	if state.MatchedCluster != NoIndex {
		return fmt.Errorf("sensorevent: track state %d already matched", trackIdx)
	}
	se.Clusters[iclu].MatchedState = trackIdx
	state.MatchedCluster = iclu
	se.LocalStates[trackIdx] = state
	return nil
}

// SetLocalState installs the local track state for a given track index,
// as produced by the track fitter's per-plane fit.
func (se *SensorEvent) SetLocalState(track int32, state TrackState) {
	se.LocalStates[track] = state
}
