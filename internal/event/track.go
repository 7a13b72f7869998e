package event

import "math"

// ClusterRef identifies one cluster constituent of a track by sensor id
// and index into that sensor's cluster array.
type ClusterRef struct {
	SensorID int32
	Cluster int32
}

// Track is a reconstructed straight-line trajectory: a global track
// state, goodness of fit, and the list of constituent clusters, at
// most one per sensor.
type Track struct {
	Global TrackState
	Chi2 float64
	Dof int32

	// Clusters has unique SensorID values; each referenced cluster's
	// Track field points back to this track's index in Event.Tracks.
	Clusters []ClusterRef
}

// NumClusters returns the number of constituent clusters.
func (t *Track) NumClusters() int { return len(t.Clusters) }

// ReducedChi2 returns Chi2/Dof, or +Inf when Dof <= 0.
func (t *Track) ReducedChi2() float64 {
	if t.Dof <= 0 {
		return math.Inf(1)
	}
	return t.Chi2 / float64(t.Dof)
}

// ClusterOn returns the ClusterRef on the given sensor and whether one
// exists.
func (t *Track) ClusterOn(sensorID int32) (ClusterRef, bool) {
	for _, c := range t.Clusters {
		if c.SensorID == sensorID {
			return c, true
		}
	}
	return ClusterRef{}, false
}

// Clone returns a deep copy of the track, used by the track finder when
// bifurcating a candidate on ambiguous matches.
func (t *Track) Clone() *Track {
	clusters := make([]ClusterRef, len(t.Clusters))
	copy(clusters, t.Clusters)
	return &Track{Global: t.Global, Chi2: t.Chi2, Dof: t.Dof, Clusters: clusters}
}
