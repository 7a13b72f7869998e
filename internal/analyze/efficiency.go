package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/hist"
	"github.com/banshee-data/proteusgo/internal/telelog"
)

// EfficiencyAnalyzer computes per-pixel, per-projection, and in-pixel
// folded tracking efficiency for one sensor.
type EfficiencyAnalyzer struct {
	sensor *geometry.Sensor
	maskOutset int // protruded mask range; negative disables the veto

	foldMinU, foldMaxU float64
	foldMinV, foldMaxV float64

	total, pass *hist.Hist2D
	colTotal, colPass *hist.Hist1D
	rowTotal, rowPass *hist.Hist1D
	inPixTotal, inPixPass *hist.Hist2D
}

// NewEfficiencyAnalyzer builds an EfficiencyAnalyzer for one sensor.
// increaseArea extends the per-pixel histograms beyond the sensor's
// nominal column/row range. maskedPixelRange <= 0 disables the masked-
// pixel veto; otherwise tracks falling within maskedPixelRange-1 pixels
// of a masked pixel are excluded. inPixelPeriod is the folding period in
// pixel pitches; inPixelBinsMin is the minimum bin count along the
// shorter folded axis.
func NewEfficiencyAnalyzer(sensor *geometry.Sensor, increaseArea, maskedPixelRange, inPixelPeriod, inPixelBinsMin int) *EfficiencyAnalyzer {
	colMin, colMax := -increaseArea, sensor.NumCols+increaseArea
	rowMin, rowMax := -increaseArea, sensor.NumRows+increaseArea
	colBins := colMax - colMin
	rowBins := rowMax - rowMin

	foldRangeU := float64(inPixelPeriod) * sensor.PitchCol
	foldRangeV := float64(inPixelPeriod) * sensor.PitchRow
	foldMinU, foldMinV := sensor.PixelToLocal(0, 0)

	smallPitch := math.Min(sensor.PitchCol, sensor.PitchRow)
	foldBinSize := smallPitch / float64(inPixelBinsMin)
	foldBinsU := maxInt(inPixelBinsMin, int(math.Round(foldRangeU/foldBinSize)))
	foldBinsV := maxInt(inPixelBinsMin, int(math.Round(foldRangeV/foldBinSize)))

	outset := -1
	if maskedPixelRange > 0 {
		outset = maskedPixelRange - 1
	}

	prefix := fmt.Sprintf("efficiency/%s", sensor.Name)
	return &EfficiencyAnalyzer{
		sensor: sensor,
		maskOutset: outset,
		foldMinU: foldMinU, foldMaxU: foldMinU + foldRangeU,
		foldMinV: foldMinV, foldMaxV: foldMinV + foldRangeV,
		total: hist.NewHist2D(prefix+"/total", float64(colMin), float64(colMax), colBins, float64(rowMin), float64(rowMax), rowBins),
		pass: hist.NewHist2D(prefix+"/pass", float64(colMin), float64(colMax), colBins, float64(rowMin), float64(rowMax), rowBins),
		colTotal: hist.NewHist1D(prefix+"/col_total", float64(colMin), float64(colMax), colBins),
		colPass: hist.NewHist1D(prefix+"/col_pass", float64(colMin), float64(colMax), colBins),
		rowTotal: hist.NewHist1D(prefix+"/row_total", float64(rowMin), float64(rowMax), rowBins),
		rowPass: hist.NewHist1D(prefix+"/row_pass", float64(rowMin), float64(rowMax), rowBins),
		inPixTotal: hist.NewHist2D(prefix+"/in_pixel_total", 0, foldRangeU, foldBinsU, 0, foldRangeV, foldBinsV),
		inPixPass: hist.NewHist2D(prefix+"/in_pixel_pass", 0, foldRangeU, foldBinsU, 0, foldRangeV, foldBinsV),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Name implements pipeline.Analyzer.
func (a *EfficiencyAnalyzer) Name() string {
	return fmt.Sprintf("EfficiencyAnalyzer(%s)", a.sensor.Name)
}

// Execute implements pipeline.Analyzer: every local track state on this
// sensor contributes a total-tracks entry, and, if matched to a cluster,
// a matched-tracks entry, unless its pixel position falls within the
// (possibly dilated) pixel mask.
func (a *EfficiencyAnalyzer) Execute(ev *event.Event) error {
	se := ev.SensorEvent(a.sensor.ID)
	if se == nil {
		return fmt.Errorf("analyze: sensor %d missing from event", a.sensor.ID)
	}
	for _, state := range se.LocalStates {
		col, row := a.sensor.LocalToPixel(state.Loc0, state.Loc1)
		if a.maskOutset >= 0 && a.sensor.IsMaskedOutset(col, row, a.maskOutset) {
			continue
		}

		foldedU := foldInto(state.Loc0, a.foldMinU, a.foldMaxU)
		foldedV := foldInto(state.Loc1, a.foldMinV, a.foldMaxV)

		a.total.Fill(col, row, 1)
		a.colTotal.Fill(col, 1)
		a.rowTotal.Fill(row, 1)
		a.inPixTotal.Fill(foldedU, foldedV, 1)

		if state.MatchedCluster != event.NoIndex {
			a.pass.Fill(col, row, 1)
			a.colPass.Fill(col, 1)
			a.rowPass.Fill(row, 1)
			a.inPixPass.Fill(foldedU, foldedV, 1)
		}
	}
	return nil
}

// foldInto reduces x modulo [lo, hi) into that window.
func foldInto(x, lo, hi float64) float64 {
	width := hi - lo
	f := math.Mod(x-lo, width)
	if f < 0 {
		f += width
	}
	return lo + f
}

// Finalize implements pipeline.Analyzer: logs the median, mean, and
// range of the per-pixel efficiency distribution.
func (a *EfficiencyAnalyzer) Finalize() error {
	var effs []float64
	var minEff, maxEff = math.Inf(1), math.Inf(-1)
	for i, total := range a.total.Bins {
		if total <= 0 {
			continue
		}
		eff := a.pass.Bins[i] / total
		effs = append(effs, eff)
		if eff < minEff {
			minEff = eff
		}
		if eff > maxEff {
			maxEff = eff
		}
	}
	if len(effs) == 0 {
		telelog.Infof("efficiency for %s: no tracks observed", a.sensor.Name)
		return nil
	}

	sort.Float64s(effs)
	median := effs[len(effs)/2]
	if len(effs)%2 == 0 {
		median = (effs[len(effs)/2-1] + effs[len(effs)/2]) / 2
	}
	var sum float64
	for _, e := range effs {
		sum += e
	}
	mean := sum / float64(len(effs))
	var sumSq float64
	for _, e := range effs {
		d := e - mean
		sumSq += d * d
	}
	meanErr := 0.0
	if len(effs) > 1 {
		meanErr = math.Sqrt(sumSq / float64(len(effs)-1) / float64(len(effs)))
	}

	telelog.Infof("efficiency for %s:", a.sensor.Name)
	telelog.Infof(" median: %.4f", median)
	telelog.Infof(" mean %.4f +- %.4f", mean, meanErr)
	telelog.Infof(" range: %.4f - %.4f", minEff, maxEff)
	return nil
}

// Efficiency returns the per-pixel total-tracks and matched-tracks
// histograms, for callers that want the raw distribution (e.g. the
// report package) rather than the logged summary. The pass/total ratio
// is not formed here.
func (a *EfficiencyAnalyzer) Efficiency() (total, pass *hist.Hist2D) {
	return a.total, a.pass
}
