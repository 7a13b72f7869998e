package tracking

import (
	"fmt"
	"sort"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/teleerr"
)

// candidate is a track-in-progress during the search phase: just the
// ordered list of cluster references. Global state is only computed
// once a seed round's candidates are selected.
type candidate struct {
	clusters []event.ClusterRef
}

func (c *candidate) clone() *candidate {
	clusters := make([]event.ClusterRef, len(c.clusters))
	copy(clusters, c.clusters)
	return &candidate{clusters: clusters}
}

// Finder implements pipeline.Processor, finding straight tracks across
// an ordered set of sensors by combinatorial search with ambiguity
// bifurcation.
type Finder struct {
	geo *geometry.Geometry
	sensorIDs []int32 // sorted along beam
	numClustersMin int
	d2Max float64 // <= 0 disables the search cut
	reducedChi2Max float64 // <= 0 disables the selection cut
	beam [3]float64
	fitter *Fitter
}

// NewFinder builds a Finder. searchSigmaMax and reducedChi2Max negative
// disable the corresponding cut.
func NewFinder(geo *geometry.Geometry, sensorIDs []int32, numClustersMin int, searchSigmaMax, reducedChi2Max float64) (*Finder, error) {
	if len(sensorIDs) < 2 {
		return nil, teleerr.NewConfigError("tracking: need at least two sensors to find tracks")
	}
	if len(sensorIDs) < numClustersMin {
		return nil, teleerr.NewConfigError("tracking: number of tracking sensors (%d) below minimum cluster count (%d)", len(sensorIDs), numClustersMin)
	}
	d2Max := -1.0
	if searchSigmaMax >= 0 {
		// 2-d Mahalanobis distance squared peaks at 2, not 1.
		d2Max = 2 * searchSigmaMax * searchSigmaMax
	}
	return &Finder{
		geo: geo,
		sensorIDs: geo.SortedAlongBeam(sensorIDs),
		numClustersMin: numClustersMin,
		d2Max: d2Max,
		reducedChi2Max: reducedChi2Max,
		beam: geo.BeamDirection(),
		fitter: NewFitter(geo),
	}, nil
}

// Name implements pipeline.Processor.
func (f *Finder) Name() string { return "TrackFinder" }

// Execute implements pipeline.Processor.
func (f *Finder) Execute(ev *event.Event) error {
	numSeedSensors := 1 + (len(f.sensorIDs) - f.numClustersMin)
	for i := 0; i < numSeedSensors; i++ {
		seedSE := ev.SensorEvent(f.sensorIDs[i])
		if seedSE == nil {
			return fmt.Errorf("tracking: seed sensor %d missing from event", f.sensorIDs[i])
		}

		var candidates []*candidate
		for ci := range seedSE.Clusters {
			if seedSE.Clusters[ci].InTrack() {
				continue
			}
			candidates = append(candidates, &candidate{
				clusters: []event.ClusterRef{{SensorID: f.sensorIDs[i], Cluster: int32(ci)}},
			})
		}

		for j := i + 1; j < len(f.sensorIDs); j++ {
			se := ev.SensorEvent(f.sensorIDs[j])
			if se == nil {
				return fmt.Errorf("tracking: sensor %d missing from event", f.sensorIDs[j])
			}
			candidates = f.searchSensor(ev, f.sensorIDs[j], se, candidates)

			remaining := len(f.sensorIDs) - (j + 1)
			kept := candidates[:0]
			for _, c := range candidates {
				if f.numClustersMin <= len(c.clusters)+remaining {
					kept = append(kept, c)
				}
			}
			candidates = kept
		}

		if err := f.selectTracks(ev, candidates); err != nil {
			return err
		}
	}
	return nil
}

// searchSensor extends every candidate with matching unused clusters on
// sensorID, bifurcating on ambiguous matches.
func (f *Finder) searchSensor(ev *event.Event, sensorID int32, se *event.SensorEvent, candidates []*candidate) []*candidate {
	plane := f.geo.Plane(sensorID)
	numTracks := len(candidates)
	for t := 0; t < numTracks; t++ {
		track := candidates[t]
		last := track.clusters[len(track.clusters)-1]
		lastSE := ev.SensorEvent(last.SensorID)
		lastClu := &lastSE.Clusters[last.Cluster]
		lastPlane := f.geo.Plane(last.SensorID)
		lastX, lastY, lastZ := lastPlane.LocalToGlobal(lastClu.LocalU, lastClu.LocalV, lastClu.LocalW)
		lastCov := lastPlane.CovLocalToGlobalXY(lastClu.CovLocalUV())

		matched := int32(-1)
		for ci := range se.Clusters {
			curr := &se.Clusters[ci]
			if curr.InTrack() {
				continue
			}
			cx, cy, cz := plane.LocalToGlobal(curr.LocalU, curr.LocalV, curr.LocalW)
			dx, dy, dz := cx-lastX, cy-lastY, cz-lastZ
			dx -= dz * f.beam[0]
			dy -= dz * f.beam[1]

			currCov := plane.CovLocalToGlobalXY(curr.CovLocalUV())
			covSum := [2][2]float64{
				{lastCov[0][0] + currCov[0][0], lastCov[0][1] + currCov[0][1]},
				{lastCov[1][0] + currCov[1][0], lastCov[1][1] + currCov[1][1]},
			}
			d2 := mahalanobisSquared2D(covSum, dx, dy)
			if f.d2Max > 0 && f.d2Max < d2 {
				continue
			}

			if matched < 0 {
				matched = int32(ci)
			} else {
				nc := track.clone()
				nc.clusters = append(nc.clusters, event.ClusterRef{SensorID: sensorID, Cluster: int32(ci)})
				candidates = append(candidates, nc)
			}
		}
		if matched >= 0 {
			track.clusters = append(track.clusters, event.ClusterRef{SensorID: sensorID, Cluster: matched})
		}
	}
	return candidates
}

type fittedCandidate struct {
	track event.Track
}

// selectTracks fits every candidate, sorts by (more clusters, lower
// reduced chi²), and greedily commits candidates whose clusters are
// still all unused.
func (f *Finder) selectTracks(ev *event.Event, candidates []*candidate) error {
	fitted := make([]fittedCandidate, 0, len(candidates))
	for _, c := range candidates {
		t := event.Track{Clusters: append([]event.ClusterRef(nil), c.clusters...)}
		if err := f.fitter.FitGlobal(ev, &t); err != nil {
			return err
		}
		fitted = append(fitted, fittedCandidate{track: t})
	}
	sort.SliceStable(fitted, func(i, j int) bool {
		ni, nj := len(fitted[i].track.Clusters), len(fitted[j].track.Clusters)
		if ni != nj {
			return nj < ni
		}
		return fitted[i].track.ReducedChi2() < fitted[j].track.ReducedChi2()
	})

	for _, fc := range fitted {
		if f.reducedChi2Max > 0 && f.reducedChi2Max < fc.track.ReducedChi2() {
			continue
		}
		allUnused := true
		for _, ref := range fc.track.Clusters {
			se := ev.SensorEvent(ref.SensorID)
			if se.Clusters[ref.Cluster].InTrack() {
				allUnused = false
				break
			}
		}
		if !allUnused {
			continue
		}
		if _, err := ev.AddTrack(fc.track); err != nil {
			return err
		}
	}
	return nil
}

// mahalanobisSquared2D computes delta^T cov^-1 delta for a 2x2
// covariance via its closed-form inverse.
func mahalanobisSquared2D(cov [2][2]float64, dx, dy float64) float64 {
	det := cov[0][0]*cov[1][1] - cov[0][1]*cov[1][0]
	if det == 0 {
		return 0
	}
	inv00 := cov[1][1] / det
	inv01 := -cov[0][1] / det
	inv11 := cov[0][0] / det
	return dx*dx*inv00 + 2*dx*dy*inv01 + dy*dy*inv11
}
