// Package hist implements the minimal histogramming capability the core
// depends on: creating 1-D and 2-D histograms, filling them
// with (value, weight) or (x, y, weight), and reporting bin maxima,
// means, and errors, in particular the restricted-mean operator used
// by the residual and correlation aligners.
//
// The core never depends on a particular histogramming library; this
// package is the one concrete backend it is built against. Optional
// PNG export is provided via gonum.org/v1/plot for diagnostics.
package hist

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Hist1D is a fixed-range, fixed-bin-count one-dimensional histogram.
type Hist1D struct {
	Name string
	Min, Max float64
	Bins []float64 // bin content (weight sum)
	Underflow float64
	Overflow float64
	entries int
}

// NewHist1D creates an empty histogram over [min, max) with the given
// number of bins.
func NewHist1D(name string, min, max float64, nbins int) *Hist1D {
	return &Hist1D{Name: name, Min: min, Max: max, Bins: make([]float64, nbins)}
}

func (h *Hist1D) binWidth() float64 { return (h.Max - h.Min) / float64(len(h.Bins)) }

// BinOf returns the bin index for a value, or -1/len(Bins) for
// underflow/overflow.
func (h *Hist1D) BinOf(x float64) int {
	if x < h.Min {
		return -1
	}
	if x >= h.Max {
		return len(h.Bins)
	}
	i := int((x - h.Min) / h.binWidth())
	if i >= len(h.Bins) {
		i = len(h.Bins) - 1
	}
	return i
}

// BinCenter returns the center value of bin i.
func (h *Hist1D) BinCenter(i int) float64 {
	return h.Min + (float64(i)+0.5)*h.binWidth()
}

// Fill adds weight w at value x.
func (h *Hist1D) Fill(x, w float64) {
	i := h.BinOf(x)
	switch {
	case i < 0:
		h.Underflow += w
	case i >= len(h.Bins):
		h.Overflow += w
	default:
		h.Bins[i] += w
		h.entries++
	}
}

// Entries returns the number of in-range fills.
func (h *Hist1D) Entries() int { return h.entries }

// MaxBin returns the index of the bin with the largest content. Ties
// resolve to the first (lowest-index) bin.
func (h *Hist1D) MaxBin() int {
	best := 0
	for i, v := range h.Bins {
		if v > h.Bins[best] {
			best = i
		}
	}
	return best
}

// RestrictedMean locates the bin of maximum content and computes the
// weighted mean and the variance of that mean restricted to a window of
// +/-halfWidth bins around it. It returns (mean, variance-of-the-mean),
// not a standard error.
func (h *Hist1D) RestrictedMean(halfWidth int) (mean, varMean float64) {
	peak := h.MaxBin()
	lo := peak - halfWidth
	if lo < 0 {
		lo = 0
	}
	hi := peak + halfWidth
	if hi >= len(h.Bins) {
		hi = len(h.Bins) - 1
	}

	xs := make([]float64, 0, hi-lo+1)
	ws := make([]float64, 0, hi-lo+1)
	var sumW float64
	for i := lo; i <= hi; i++ {
		xs = append(xs, h.BinCenter(i))
		ws = append(ws, h.Bins[i])
		sumW += h.Bins[i]
	}
	if sumW <= 0 {
		return 0, math.Inf(1)
	}
	mean = stat.Mean(xs, ws)
	variance := stat.Variance(xs, ws)
	// variance of the mean estimator, guarding against a single
	// contributing bin (variance well-defined but sumW may be small).
	varMean = variance / sumW
	return mean, varMean
}

// Hist2D is a fixed-range, fixed-bin-count two-dimensional histogram.
type Hist2D struct {
	Name string
	MinX, MaxX float64
	MinY, MaxY float64
	NBinsX, NBinsY int
	Bins []float64 // row-major [y*NBinsX+x]
}

// NewHist2D creates an empty 2-D histogram.
func NewHist2D(name string, minX, maxX float64, nbinsX int, minY, maxY float64, nbinsY int) *Hist2D {
	return &Hist2D{
		Name: name, MinX: minX, MaxX: maxX, NBinsX: nbinsX,
		MinY: minY, MaxY: maxY, NBinsY: nbinsY,
		Bins: make([]float64, nbinsX*nbinsY),
	}
}

func (h *Hist2D) binXOf(x float64) int {
	w := (h.MaxX - h.MinX) / float64(h.NBinsX)
	if x < h.MinX || x >= h.MaxX {
		return -1
	}
	i := int((x - h.MinX) / w)
	if i >= h.NBinsX {
		i = h.NBinsX - 1
	}
	return i
}

func (h *Hist2D) binYOf(y float64) int {
	w := (h.MaxY - h.MinY) / float64(h.NBinsY)
	if y < h.MinY || y >= h.MaxY {
		return -1
	}
	i := int((y - h.MinY) / w)
	if i >= h.NBinsY {
		i = h.NBinsY - 1
	}
	return i
}

// Fill adds weight w at (x, y). Out-of-range points are silently dropped
// (2-D histograms here are used for correlation/efficiency plots where
// out-of-range means "not of interest", unlike the 1-D underflow/overflow
// counters used for restricted-mean diagnostics).
func (h *Hist2D) Fill(x, y, w float64) {
	bx, by := h.binXOf(x), h.binYOf(y)
	if bx < 0 || by < 0 {
		return
	}
	h.Bins[by*h.NBinsX+bx] += w
}

// At returns the content of bin (bx, by).
func (h *Hist2D) At(bx, by int) float64 { return h.Bins[by*h.NBinsX+bx] }

// Sum returns the total content of all bins.
func (h *Hist2D) Sum() float64 {
	var s float64
	for _, v := range h.Bins {
		s += v
	}
	return s
}
