package align

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/hist"
)

const correlationRestrictedBins = 3

// sensorPair keys the diff histograms for one ordered pair of
// neighboring sensors.
type sensorPair struct {
	from, to int32
}

// CorrelationAligner aligns a chain of sensors in the global xy-plane
// using only the restricted mean of nearest-neighbor cluster-position
// differences, under the assumption of zero slope along the beam.
type CorrelationAligner struct {
	geo *geometry.Geometry
	fixedID int32
	damping float64

	// backwardIDs/forwardIDs list sensors in order moving away from
	// fixedID, one direction each.
	backwardIDs []int32
	forwardIDs []int32

	diffX map[sensorPair]*hist.Hist1D
	diffY map[sensorPair]*hist.Hist1D
}

// NewCorrelationAligner builds a CorrelationAligner. fixedID is kept
// unmoved; alignIDs (which must not contain fixedID) are the sensors to
// be corrected. diffRange (half-range) and bins size the diff
// histograms, one pair per pair of beam-adjacent sensors in the
// combined, sorted list.
func NewCorrelationAligner(geo *geometry.Geometry, fixedID int32, alignIDs []int32, damping float64, diffRange float64, bins int) (*CorrelationAligner, error) {
	if geo.Plane(fixedID) == nil {
		return nil, fmt.Errorf("align: unknown fixed sensor %d", fixedID)
	}
	sortedIDs := make([]int32, 0, len(alignIDs)+1)
	sortedIDs = append(sortedIDs, alignIDs...)
	sortedIDs = append(sortedIDs, fixedID)
	sortedIDs = geo.SortedAlongBeam(sortedIDs)

	fixedPos := -1
	for i, id := range sortedIDs {
		if id == fixedID {
			fixedPos = i
			break
		}
	}
	if fixedPos < 0 {
		return nil, fmt.Errorf("align: fixed sensor %d not found after sorting", fixedID)
	}

	a := &CorrelationAligner{
		geo: geo,
		fixedID: fixedID,
		damping: damping,
		diffX: make(map[sensorPair]*hist.Hist1D),
		diffY: make(map[sensorPair]*hist.Hist1D),
	}
	// backwardIDs: reversed order from fixedPos-1 down to 0 (moving
	// opposite the beam, away from the fixed sensor).
	for i := fixedPos - 1; i >= 0; i-- {
		a.backwardIDs = append(a.backwardIDs, sortedIDs[i])
	}
	// forwardIDs: order from fixedPos+1 to the end (moving along the
	// beam, away from the fixed sensor).
	a.forwardIDs = append(a.forwardIDs, sortedIDs[fixedPos+1:]...)

	// only direct-neighbor pairs are needed.
	for i := 0; i+1 < len(sortedIDs); i++ {
		from, to := sortedIDs[i], sortedIDs[i+1]
		key := sensorPair{from, to}
		a.diffX[key] = hist.NewHist1D(fmt.Sprintf("correlation/%d-%d/diff_x", from, to), -diffRange, diffRange, bins)
		a.diffY[key] = hist.NewHist1D(fmt.Sprintf("correlation/%d-%d/diff_y", from, to), -diffRange, diffRange, bins)
	}
	return a, nil
}

// Name implements pipeline.Analyzer.
func (a *CorrelationAligner) Name() string { return "CorrelationAligner" }

// Execute implements pipeline.Analyzer: for every configured
// neighboring sensor pair, fill the global x/y difference histograms
// with every pairwise combination of clusters on the two sensors.
// Cluster pairing here is purely combinatorial, not track-based.
func (a *CorrelationAligner) Execute(ev *event.Event) error {
	for pair, hx := range a.diffX {
		hy := a.diffY[pair]
		plane0 := a.geo.Plane(pair.from)
		plane1 := a.geo.Plane(pair.to)
		se0 := ev.SensorEvent(pair.from)
		se1 := ev.SensorEvent(pair.to)
		if plane0 == nil || plane1 == nil || se0 == nil || se1 == nil {
			return fmt.Errorf("align: sensor pair (%d,%d) missing from event", pair.from, pair.to)
		}
		for ci0 := range se0.Clusters {
			c0 := &se0.Clusters[ci0]
			x0, y0, _ := plane0.LocalToGlobal(c0.LocalU, c0.LocalV, c0.LocalW)
			for ci1 := range se1.Clusters {
				c1 := &se1.Clusters[ci1]
				x1, y1, _ := plane1.LocalToGlobal(c1.LocalU, c1.LocalV, c1.LocalW)
				hx.Fill(x1-x0, 1)
				hy.Fill(y1-y0, 1)
			}
		}
	}
	return nil
}

// Finalize implements pipeline.Analyzer; there is no per-sensor state
// to finalize beyond the filled histograms.
func (a *CorrelationAligner) Finalize() error { return nil }

// UpdatedGeometry accumulates the restricted-mean diff-histogram
// corrections outward from the fixed sensor in both directions and
// applies them as a damped global xy offset.
func (a *CorrelationAligner) UpdatedGeometry() (*geometry.Geometry, error) {
	geo := a.geo.Clone()

	nextID := a.fixedID
	var deltaX, deltaY float64
	for _, currID := range a.backwardIDs {
		hx, hy, err := a.histsFor(currID, nextID)
		if err != nil {
			return nil, err
		}
		dx, _ := hx.RestrictedMean(correlationRestrictedBins)
		dy, _ := hy.RestrictedMean(correlationRestrictedBins)
		deltaX += dx
		deltaY += dy
		if err := geo.CorrectGlobalOffset(currID, a.damping*deltaX, a.damping*deltaY, 0); err != nil {
			return nil, err
		}
		nextID = currID
	}

	prevID := a.fixedID
	deltaX, deltaY = 0, 0
	for _, currID := range a.forwardIDs {
		hx, hy, err := a.histsFor(prevID, currID)
		if err != nil {
			return nil, err
		}
		dx, _ := hx.RestrictedMean(correlationRestrictedBins)
		dy, _ := hy.RestrictedMean(correlationRestrictedBins)
		// forward pairs were filled as (prev, curr); moving curr to agree
		// with prev requires the opposite sign
		deltaX -= dx
		deltaY -= dy
		if err := geo.CorrectGlobalOffset(currID, a.damping*deltaX, a.damping*deltaY, 0); err != nil {
			return nil, err
		}
		prevID = currID
	}
	return geo, nil
}

func (a *CorrelationAligner) histsFor(from, to int32) (*hist.Hist1D, *hist.Hist1D, error) {
	key := sensorPair{from, to}
	hx, ok := a.diffX[key]
	if !ok {
		return nil, nil, fmt.Errorf("align: no correlation histogram for pair (%d,%d)", from, to)
	}
	return hx, a.diffY[key], nil
}
