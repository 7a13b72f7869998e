// Package match implements the per-sensor track-state/cluster matcher.
package match

import (
	"fmt"
	"sort"

	"github.com/banshee-data/proteusgo/internal/event"
)

// Matcher pairs local track states with clusters on one sensor by
// nearest Mahalanobis distance, greedily and uniquely. It implements
// pipeline.Processor.
type Matcher struct {
	SensorID int32
	sensorName string
	distSquaredMax float64 // < 0 disables the cut
}

// NewMatcher builds a Matcher for one sensor. distanceSigmaMax negative
// disables the distance cut.
func NewMatcher(sensorID int32, sensorName string, distanceSigmaMax float64) *Matcher {
	d2Max := -1.0
	if distanceSigmaMax >= 0 {
		d2Max = distanceSigmaMax * distanceSigmaMax
	}
	return &Matcher{SensorID: sensorID, sensorName: sensorName, distSquaredMax: d2Max}
}

// Name implements pipeline.Processor.
func (m *Matcher) Name() string { return fmt.Sprintf("Matcher(%s)", m.sensorName) }

type possibleMatch struct {
	cluster int32
	track int32
	d2 float64
}

// Execute implements pipeline.Processor.
func (m *Matcher) Execute(ev *event.Event) error {
	se := ev.SensorEvent(m.SensorID)
	if se == nil {
		return fmt.Errorf("match: sensor %d missing from event", m.SensorID)
	}

	var candidates []possibleMatch
	for trackIdx, state := range se.LocalStates {
		if state.MatchedCluster != event.NoIndex {
			continue
		}
		stateCov := state.CovOffset()
		for ci := range se.Clusters {
			clu := &se.Clusters[ci]
			if clu.Matched() {
				continue
			}
			dU := clu.LocalU - state.Loc0
			dV := clu.LocalV - state.Loc1
			cluCov := clu.CovLocalUV()
			cov := [2][2]float64{
				{cluCov[0][0] + stateCov[0][0], cluCov[0][1] + stateCov[0][1]},
				{cluCov[1][0] + stateCov[1][0], cluCov[1][1] + stateCov[1][1]},
			}
			d2 := mahalanobisSquared2D(cov, dU, dV)
			if m.distSquaredMax >= 0 && d2 >= m.distSquaredMax {
				continue
			}
			candidates = append(candidates, possibleMatch{cluster: int32(ci), track: trackIdx, d2: d2})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].d2 != candidates[j].d2 {
			return candidates[i].d2 < candidates[j].d2
		}
		if candidates[i].cluster != candidates[j].cluster {
			return candidates[i].cluster < candidates[j].cluster
		}
		return candidates[i].track < candidates[j].track
	})

	matchedClusters := make(map[int32]bool)
	matchedTracks := make(map[int32]bool)
	for _, c := range candidates {
		if matchedClusters[c.cluster] || matchedTracks[c.track] {
			continue
		}
		matchedClusters[c.cluster] = true
		matchedTracks[c.track] = true
		if err := se.AddMatch(c.cluster, c.track); err != nil {
			return fmt.Errorf("match: sensor %d: %w", m.SensorID, err)
		}
	}
	return nil
}

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
