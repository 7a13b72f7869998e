package event

import "math"

// TrackState holds six straight-line track parameters and their 6x6
// covariance. It exists in two forms: a global state attached to a
// Track (on the global xy-plane), and per-sensor local states keyed
// by track index inside a SensorEvent.
type TrackState struct {
	Loc0, Loc1 float64 // position, e.g. (x,y) globally or (u,v) locally
	Time float64
	SlopeLoc0, SlopeLoc1 float64
	SlopeTime float64

	Cov [6][6]float64

	// MatchedCluster is NoIndex until the Matcher assigns a cluster on
	// the same sensor to this (local) state.
	MatchedCluster int32
}

// NewTrackState builds a TrackState with MatchedCluster unset.
func NewTrackState() TrackState {
	return TrackState{MatchedCluster: NoIndex}
}

// CovOffset returns the 2x2 (Loc0, Loc1) sub-block of Cov, the on-plane
// position covariance consumed by the matcher and the local chi²
// aligner's residual weight.
func (s *TrackState) CovOffset() [2][2]float64 {
	return [2][2]float64{
		{s.Cov[0][0], s.Cov[0][1]},
		{s.Cov[1][0], s.Cov[1][1]},
	}
}

// Finite reports whether every parameter is finite, used to gate
// contributions to the local chi² aligner's normal equations.
func (s *TrackState) Finite() bool {
	vals := []float64{s.Loc0, s.Loc1, s.Time, s.SlopeLoc0, s.SlopeLoc1, s.SlopeTime}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
