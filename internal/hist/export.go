package hist

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ExportPNG renders the histogram as a bar chart to the PNG file at
// path. No CLI command calls it.
func (h *Hist1D) ExportPNG(path string, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = h.Name

	values := make(plotter.Values, len(h.Bins))
	copy(values, h.Bins)

	bar, err := plotter.NewBarChart(values, vg.Points(h.binWidth()))
	if err != nil {
		return fmt.Errorf("hist: build bar chart: %w", err)
	}
	p.Add(bar)

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("hist: save %s: %w", path, err)
	}
	return nil
}

// ExportHeatmapPNG renders the 2-D histogram as a heat map to path.
func (h *Hist2D) ExportHeatmapPNG(path string, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = h.Name

	grid := hist2DGrid{h}
	heat := plotter.NewHeatMap(grid, plotter.DefaultPalette)
	p.Add(heat)

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("hist: save %s: %w", path, err)
	}
	return nil
}

// hist2DGrid adapts Hist2D to plotter.GridXYZ.
type hist2DGrid struct{ h *Hist2D }

func (g hist2DGrid) Dims() (c, r int) { return g.h.NBinsX, g.h.NBinsY }
func (g hist2DGrid) X(c int) float64 {
	w := (g.h.MaxX - g.h.MinX) / float64(g.h.NBinsX)
	return g.h.MinX + (float64(c)+0.5)*w
}
func (g hist2DGrid) Y(r int) float64 {
	w := (g.h.MaxY - g.h.MinY) / float64(g.h.NBinsY)
	return g.h.MinY + (float64(r)+0.5)*w
}
func (g hist2DGrid) Z(c, r int) float64 { return g.h.At(c, r) }
