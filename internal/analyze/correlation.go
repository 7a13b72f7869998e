// Package analyze implements the diagnostic analyzers that are not
// themselves alignment solvers: pairwise cluster correlations, cluster-
// track residuals, and per-sensor efficiency.
package analyze

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/hist"
)

type correlationPair struct {
	from, to int32
}

type correlationHists struct {
	corrX, corrY, corrT *hist.Hist2D
	diffX, diffY, diffT *hist.Hist1D
}

// CorrelationAnalyzer fills pairwise position/time correlation
// histograms between every sensor pair within neighbors planes of each
// other, for an ordered sensor list.
type CorrelationAnalyzer struct {
	geo *geometry.Geometry
	pairs []correlationPair
	hists map[correlationPair]*correlationHists
}

// NewCorrelationAnalyzer builds a CorrelationAnalyzer over sensorIDs
// (already ordered, typically via Geometry.SortedAlongBeam), histogramming
// every pair (i, j) with 1 <= j-i <= neighbors.
func NewCorrelationAnalyzer(geo *geometry.Geometry, sensorIDs []int32, neighbors int, diffRange float64, bins int) (*CorrelationAnalyzer, error) {
	if len(sensorIDs) < 2 {
		return nil, fmt.Errorf("analyze: correlation analyzer needs at least two sensors, got %d", len(sensorIDs))
	}
	if neighbors < 1 {
		return nil, fmt.Errorf("analyze: correlation analyzer needs neighbors >= 1, got %d", neighbors)
	}

	a := &CorrelationAnalyzer{geo: geo, hists: make(map[correlationPair]*correlationHists)}
	n := len(sensorIDs)
	for i := 0; i < n; i++ {
		jMax := i + neighbors
		if jMax > n-1 {
			jMax = n - 1
		}
		for j := i + 1; j <= jMax; j++ {
			from, to := sensorIDs[i], sensorIDs[j]
			pair := correlationPair{from, to}
			a.pairs = append(a.pairs, pair)
			a.hists[pair] = &correlationHists{
				corrX: hist.NewHist2D(fmt.Sprintf("correlation/%d-%d/corr_x", from, to), -diffRange, diffRange, bins, -diffRange, diffRange, bins),
				corrY: hist.NewHist2D(fmt.Sprintf("correlation/%d-%d/corr_y", from, to), -diffRange, diffRange, bins, -diffRange, diffRange, bins),
				corrT: hist.NewHist2D(fmt.Sprintf("correlation/%d-%d/corr_t", from, to), -diffRange, diffRange, bins, -diffRange, diffRange, bins),
				diffX: hist.NewHist1D(fmt.Sprintf("correlation/%d-%d/diff_x", from, to), -diffRange, diffRange, bins),
				diffY: hist.NewHist1D(fmt.Sprintf("correlation/%d-%d/diff_y", from, to), -diffRange, diffRange, bins),
				diffT: hist.NewHist1D(fmt.Sprintf("correlation/%d-%d/diff_t", from, to), -diffRange, diffRange, bins),
			}
		}
	}
	return a, nil
}

// Name implements pipeline.Analyzer.
func (a *CorrelationAnalyzer) Name() string { return "CorrelationAnalyzer" }

// Execute implements pipeline.Analyzer: every cluster-pair combination
// between the two sensors of each configured pair contributes to the
// correlation and difference histograms.
func (a *CorrelationAnalyzer) Execute(ev *event.Event) error {
	for _, pair := range a.pairs {
		h := a.hists[pair]
		plane0 := a.geo.Plane(pair.from)
		plane1 := a.geo.Plane(pair.to)
		se0 := ev.SensorEvent(pair.from)
		se1 := ev.SensorEvent(pair.to)
		if plane0 == nil || plane1 == nil || se0 == nil || se1 == nil {
			return fmt.Errorf("analyze: sensor pair (%d,%d) missing from event", pair.from, pair.to)
		}
		for ci0 := range se0.Clusters {
			c0 := &se0.Clusters[ci0]
			x0, y0, _ := plane0.LocalToGlobal(c0.LocalU, c0.LocalV, c0.LocalW)
			t0 := c0.LocalS
			for ci1 := range se1.Clusters {
				c1 := &se1.Clusters[ci1]
				x1, y1, _ := plane1.LocalToGlobal(c1.LocalU, c1.LocalV, c1.LocalW)
				t1 := c1.LocalS

				h.corrX.Fill(x0, x1, 1)
				h.corrY.Fill(y0, y1, 1)
				h.corrT.Fill(t0, t1, 1)
				h.diffX.Fill(x1-x0, 1)
				h.diffY.Fill(y1-y0, 1)
				h.diffT.Fill(t1-t0, 1)
			}
		}
	}
	return nil
}

// Finalize implements pipeline.Analyzer; correlation histograms need no
// post-processing.
func (a *CorrelationAnalyzer) Finalize() error { return nil }

// HistDiffX returns the Δx histogram for the ordered pair (from, to), or
// nil if that pair was not configured.
func (a *CorrelationAnalyzer) HistDiffX(from, to int32) *hist.Hist1D {
	h, ok := a.hists[correlationPair{from, to}]
	if !ok {
		return nil
	}
	return h.diffX
}

// HistDiffY returns the Δy histogram for the ordered pair (from, to), or
// nil if that pair was not configured.
func (a *CorrelationAnalyzer) HistDiffY(from, to int32) *hist.Hist1D {
	h, ok := a.hists[correlationPair{from, to}]
	if !ok {
		return nil
	}
	return h.diffY
}
