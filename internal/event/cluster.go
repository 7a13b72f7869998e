package event

// Cluster is a contiguous group of pixel hits attributed to a single
// particle crossing. Invariants, enforced by SensorEvent's Add*
// operations: every contained hit's Cluster field points back to this
// cluster's index; a cluster belongs to at most one track; a cluster
// is matched to at most one track state on its sensor.
type Cluster struct {
	// Weighted centroid in pixel coordinates.
	CentroidCol, CentroidRow float64
	// 2x2 covariance in pixel coordinates, row-major [col,row].
	CovPixel [2][2]float64

	// Local-plane position: u, v, w (always 0 on the sensor plane), s (time).
	LocalU, LocalV, LocalW, LocalS float64
	// 4x4 covariance of (LocalU, LocalV, LocalW, LocalS), row-major.
	CovLocal [4][4]float64

	Size int32
	SumValue int32
	Time float64
	Region int32 // NoIndex if hits disagree on region

	Track int32 // NoIndex until assigned to a track
	MatchedState int32 // NoIndex until matched by the Matcher

	// Hits indexes into the owning SensorEvent.Hits.
	Hits []int32
}

// CovLocalUV returns the 2x2 (u,v) sub-block of CovLocal, the
// sub-matrix used by the matcher and the local chi² aligner.
func (c *Cluster) CovLocalUV() [2][2]float64 {
	return [2][2]float64{
		{c.CovLocal[0][0], c.CovLocal[0][1]},
		{c.CovLocal[1][0], c.CovLocal[1][1]},
	}
}

// InTrack reports whether the cluster has been assigned to a track.
func (c *Cluster) InTrack() bool { return c.Track != NoIndex }

// Matched reports whether the cluster has been matched to a track state.
func (c *Cluster) Matched() bool { return c.MatchedState != NoIndex }
