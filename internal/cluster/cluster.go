// Package cluster implements the hit->cluster processor: grouping
// adjacent hits within one sensor event into clusters with a weighted
// centroid and covariance.
package cluster

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

// Connectivity selects which neighboring pixels are considered adjacent.
type Connectivity int

const (
	// Connectivity8 treats diagonal neighbors as adjacent (the default).
	Connectivity8 Connectivity = iota
	// Connectivity4 considers only axis-aligned neighbors adjacent.
	Connectivity4
)

// varianceFloor is 1/12, the variance of a uniform distribution over one
// pixel, used as the minimum variance along each axis: any axis whose
// weighted spread is smaller (e.g. a cluster one pixel wide along it)
// gets 1/12.
const varianceFloor = 1.0 / 12.0

// Processor groups hits on one sensor into clusters. It
// implements pipeline.Processor.
type Processor struct {
	SensorID int32
	Sensor *geometry.Sensor
	Connectivity Connectivity
}

// NewProcessor builds a clustering Processor for one sensor.
func NewProcessor(sensor *geometry.Sensor, connectivity Connectivity) *Processor {
	return &Processor{SensorID: sensor.ID, Sensor: sensor, Connectivity: connectivity}
}

// Name implements pipeline.Processor.
func (p *Processor) Name() string { return fmt.Sprintf("HitClusterer(%s)", p.Sensor.Name) }

// Execute implements pipeline.Processor.
func (p *Processor) Execute(ev *event.Event) error {
	se := ev.SensorEvent(p.SensorID)
	if se == nil {
		return fmt.Errorf("cluster: sensor %d not present in event", p.SensorID)
	}

	groups := p.groupAdjacent(se.Hits)
	for _, hitIdx := range groups {
		c, err := p.buildCluster(se, hitIdx)
		if err != nil {
			return err
		}
		if _, err := se.AddCluster(c); err != nil {
			return fmt.Errorf("cluster: add cluster on sensor %d: %w", p.SensorID, err)
		}
	}
	return nil
}

// groupAdjacent partitions hit indices into connected components by
// pixel adjacency, using a neighbor lookup keyed by digital address so
// the cost is linear in the number of hits rather than quadratic.
func (p *Processor) groupAdjacent(hits []event.Hit) [][]int32 {
	type addr struct{ col, row int32 }
	byAddr := make(map[addr]int32, len(hits))
	for i, h := range hits {
		byAddr[addr{h.Col, h.Row}] = int32(i)
	}

	visited := make([]bool, len(hits))
	var groups [][]int32

	var offsets []addr
	if p.Connectivity == Connectivity4 {
		offsets = []addr{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	} else {
		offsets = []addr{
			{1, 0}, {-1, 0}, {0, 1}, {0, -1},
			{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
		}
	}

	for i := range hits {
		if visited[i] {
			continue
		}
		var group []int32
		stack := []int32{int32(i)}
		visited[i] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, cur)
			h := hits[cur]
			for _, off := range offsets {
				if nb, ok := byAddr[addr{h.Col + off.col, h.Row + off.row}]; ok && !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func (p *Processor) buildCluster(se *event.SensorEvent, hitIdx []int32) (event.Cluster, error) {
	informative := p.Sensor.Measurement == geometry.MeasurementValue

	var sumW, sumWCol, sumWRow, sumValue, sumWTime float64
	region := int32(-1)
	regionConsistent := true
	first := true

	for _, hi := range hitIdx {
		h := se.Hits[hi]
		w := 1.0
		if informative && h.Value != 0 {
			w = float64(h.Value)
		}
		sumW += w
		sumWCol += w * float64(h.Col)
		sumWRow += w * float64(h.Row)
		sumValue += float64(h.Value)
		sumWTime += w * float64(h.Timestamp)

		if first {
			region = h.Region
			first = false
		} else if h.Region != region {
			regionConsistent = false
		}
	}
	if sumW == 0 {
		sumW = float64(len(hitIdx))
	}
	if !regionConsistent {
		region = event.NoIndex
	}

	centroidCol := sumWCol / sumW
	centroidRow := sumWRow / sumW
	meanTime := sumWTime / sumW

	var varCol, varRow, covColRow float64
	for _, hi := range hitIdx {
		h := se.Hits[hi]
		w := 1.0
		if informative && h.Value != 0 {
			w = float64(h.Value)
		}
		dCol := float64(h.Col) - centroidCol
		dRow := float64(h.Row) - centroidRow
		varCol += w * dCol * dCol
		varRow += w * dRow * dRow
		covColRow += w * dCol * dRow
	}
	if len(hitIdx) > 1 {
		varCol /= sumW
		varRow /= sumW
		covColRow /= sumW
	} else {
		varCol = varianceFloor
		varRow = varianceFloor
		covColRow = 0
	}
	if varCol < varianceFloor {
		varCol = varianceFloor
	}
	if varRow < varianceFloor {
		varRow = varianceFloor
	}

	u, v := p.Sensor.PixelToLocal(centroidCol, centroidRow)
	pc, pr := p.Sensor.PitchCol, p.Sensor.PitchRow

	c := event.Cluster{
		CentroidCol: centroidCol,
		CentroidRow: centroidRow,
		CovPixel: [2][2]float64{{varCol, covColRow}, {covColRow, varRow}},
		LocalU: u,
		LocalV: v,
		LocalW: 0,
		LocalS: meanTime * p.Sensor.PitchTimestamp,
		Size: int32(len(hitIdx)),
		SumValue: int32(sumValue),
		Time: meanTime,
		Region: region,
		Track: event.NoIndex,
		MatchedState: event.NoIndex,
		Hits: append([]int32(nil), hitIdx...),
	}
	c.CovLocal[0][0] = varCol * pc * pc
	c.CovLocal[1][1] = varRow * pr * pr
	c.CovLocal[0][1] = covColRow * pc * pr
	c.CovLocal[1][0] = covColRow * pc * pr

	return c, nil
}
