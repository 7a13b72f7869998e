// Package binformat implements the persisted binary event record: one
// file holding, per event, a global-event header, a global-tracks
// stream, and one hits/clusters/intercepts triplet per sensor. It
// supplies the pipeline.Reader and pipeline.Writer implementations
// used to replay or archive runs, using a length-prefixed
// encoding/binary layout.
package binformat

import (
	"github.com/banshee-data/proteusgo/internal/event"
)

// MaxPerEvent is the per-event entry cap places on global tracks
// and on each per-sensor stream (hits, clusters, intercepts).
const MaxPerEvent = 16384

// wireGlobalEvent is the fixed-size on-wire layout of the global event
// header: frame, timestamp, trigger time, offset, info, phase
// (-1 if absent), invalid flag.
type wireGlobalEvent struct {
	Frame uint64
	Timestamp uint64
	TriggerTime uint64
	TriggerOffset int32
	TriggerInfo int32
	TriggerPhase int32
	Invalid bool
}

// wireGlobalTrack is the fixed-size on-wire layout of one global
// track: chi2, dof, offset x/y, slope x/y, packed lower-triangular
// 4x4 covariance of (x, y, slopeX, slopeY).
type wireGlobalTrack struct {
	Chi2 float64
	Dof int32
	OffsetX, OffsetY float64
	SlopeX, SlopeY float64
	Cov [10]float64
}

// wireHit is the fixed-size on-wire layout of one hit: digital
// col/row, time, value, owning cluster index.
type wireHit struct {
	Col, Row, Time, Value, ClusterIndex int32
}

// wireCluster is the fixed-size on-wire layout of one cluster: pixel
// centroid col/row, pixel variance col/row, pixel col-row covariance,
// time, summed value, owning track index.
type wireCluster struct {
	Col, Row float64
	VarCol, VarRow float64
	CovColRow float64
	Time float64
	Value int32
	TrackIndex int32
}

// wireIntercept is the fixed-size on-wire layout of one local track
// state ("intercepts"): u/v position, slope u/v, packed
// lower-triangular 4x4 covariance of (u, v, slopeU, slopeV), owning
// track index.
type wireIntercept struct {
	U, V float64
	SlopeU, SlopeV float64
	Cov [10]float64
	TrackIndex int32
}

// cov6Indices picks the (position x/y, slope x/y) sub-block out of a
// TrackState's 6x6 covariance — index 2 and 5 are time and slope-time,
// which the persisted record does not carry (the wire format stores
// only offset/slope x/y for global tracks and u/v/slopeU/slopeV for
// intercepts).
var cov6Indices = [4]int{0, 1, 3, 4}

// packCov4 packs the 4x4 sub-block of a TrackState's 6x6 covariance
// selected by cov6Indices into the 10-element packed lower-triangular
// form.
func packCov4(cov [6][6]float64) [10]float64 {
	var m [4][4]float64
	for i, ii := range cov6Indices {
		for j, jj := range cov6Indices {
			m[i][j] = cov[ii][jj]
		}
	}
	return packLowerTri4(m)
}

// unpackCov4 expands a packed lower-triangular 4x4 covariance into the
// corresponding 4 indices of a 6x6 TrackState covariance, mirroring the
// lower triangle into the upper one.
func unpackCov4(packed [10]float64) [6][6]float64 {
	m := unpackLowerTri4(packed)
	var cov [6][6]float64
	for i, ii := range cov6Indices {
		for j, jj := range cov6Indices {
			cov[ii][jj] = m[i][j]
		}
	}
	return cov
}

// packLowerTri4 packs a symmetric 4x4 matrix's lower triangle,
// row-major, into 10 elements: (0,0) (1,0) (1,1) (2,0) (2,1) (2,2)
// (3,0) (3,1) (3,2) (3,3).
func packLowerTri4(m [4][4]float64) [10]float64 {
	var p [10]float64
	k := 0
	for i := 0; i < 4; i++ {
		for j := 0; j <= i; j++ {
			p[k] = m[i][j]
			k++
		}
	}
	return p
}

// unpackLowerTri4 is the inverse of packLowerTri4; it mirrors the lower
// triangle into the upper one to reconstruct a symmetric matrix.
func unpackLowerTri4(p [10]float64) [4][4]float64 {
	var m [4][4]float64
	k := 0
	for i := 0; i < 4; i++ {
		for j := 0; j <= i; j++ {
			m[i][j] = p[k]
			m[j][i] = p[k]
			k++
		}
	}
	return m
}

func toWireHit(h event.Hit) wireHit {
	return wireHit{Col: h.Col, Row: h.Row, Time: h.Timestamp, Value: h.Value, ClusterIndex: h.Cluster}
}

func fromWireHit(w wireHit) event.Hit {
	return event.Hit{
		Col: w.Col, Row: w.Row,
		PhysCol: w.Col, PhysRow: w.Row,
		Timestamp: w.Time,
		Value: w.Value,
		Region: event.NoIndex,
		Cluster: w.ClusterIndex,
	}
}

func toWireCluster(c event.Cluster) wireCluster {
	return wireCluster{
		Col: c.CentroidCol, Row: c.CentroidRow,
		VarCol: c.CovPixel[0][0], VarRow: c.CovPixel[1][1],
		CovColRow: c.CovPixel[0][1],
		Time: c.Time,
		Value: c.SumValue,
		TrackIndex: c.Track,
	}
}

func fromWireCluster(w wireCluster) event.Cluster {
	return event.Cluster{
		CentroidCol: w.Col, CentroidRow: w.Row,
		CovPixel: [2][2]float64{
			{w.VarCol, w.CovColRow},
			{w.CovColRow, w.VarRow},
		},
		Time: w.Time,
		SumValue: w.Value,
		Track: w.TrackIndex,
		MatchedState: event.NoIndex,
		Region: event.NoIndex,
	}
}

func toWireIntercept(trackIdx int32, s event.TrackState) wireIntercept {
	return wireIntercept{
		U: s.Loc0, V: s.Loc1,
		SlopeU: s.SlopeLoc0, SlopeV: s.SlopeLoc1,
		Cov: packCov4(s.Cov),
		TrackIndex: trackIdx,
	}
}

func fromWireIntercept(w wireIntercept) event.TrackState {
	return event.TrackState{
		Loc0: w.U, Loc1: w.V,
		SlopeLoc0: w.SlopeU, SlopeLoc1: w.SlopeV,
		Cov: unpackCov4(w.Cov),
		MatchedCluster: event.NoIndex,
	}
}

func toWireGlobalTrack(t event.Track) wireGlobalTrack {
	return wireGlobalTrack{
		Chi2: t.Chi2, Dof: t.Dof,
		OffsetX: t.Global.Loc0, OffsetY: t.Global.Loc1,
		SlopeX: t.Global.SlopeLoc0, SlopeY: t.Global.SlopeLoc1,
		Cov: packCov4(t.Global.Cov),
	}
}

func fromWireGlobalTrack(w wireGlobalTrack) event.Track {
	return event.Track{
		Chi2: w.Chi2, Dof: w.Dof,
		Global: event.TrackState{
			Loc0: w.OffsetX, Loc1: w.OffsetY,
			SlopeLoc0: w.SlopeX, SlopeLoc1: w.SlopeY,
			Cov: unpackCov4(w.Cov),
			MatchedCluster: event.NoIndex,
		},
	}
}
