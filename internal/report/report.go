// Package report renders alignment and analyzer histograms to a
// self-contained HTML dashboard for the `run` CLI command's `--report`
// output.
package report

import (
	"fmt"
	"os"

	"github.com/banshee-data/proteusgo/internal/hist"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Report accumulates charts for one alignment or analysis run and
// renders them to a single HTML page.
type Report struct {
	page *components.Page
}

// NewReport creates an empty report with the given page title.
func NewReport(title string) *Report {
	page := components.NewPage()
	page.PageTitle = title
	return &Report{page: page}
}

// AddHist1D renders a 1-D histogram as a bar chart, one bar per bin.
func (r *Report) AddHist1D(h *hist.Hist1D) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: h.Name, Subtitle: fmt.Sprintf("entries=%d", h.Entries())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(h.Bins))
	data := make([]opts.BarData, len(h.Bins))
	for i, v := range h.Bins {
		labels[i] = fmt.Sprintf("%.4g", h.BinCenter(i))
		data[i] = opts.BarData{Value: v}
	}
	bar.SetXAxis(labels).AddSeries(h.Name, data)

	r.page.AddCharts(bar)
}

// AddHist2D renders a 2-D histogram as a color-mapped scatter, one
// point per populated bin.
func (r *Report) AddHist2D(h *hist.Hist2D) {
	points := make([]opts.ScatterData, 0, len(h.Bins))
	maxVal := 0.0
	for by := 0; by < h.NBinsY; by++ {
		for bx := 0; bx < h.NBinsX; bx++ {
			v := h.At(bx, by)
			if v <= 0 {
				continue
			}
			if v > maxVal {
				maxVal = v
			}
			x := h.MinX + (float64(bx)+0.5)*(h.MaxX-h.MinX)/float64(h.NBinsX)
			y := h.MinY + (float64(by)+0.5)*(h.MaxY-h.MinY)/float64(h.NBinsY)
			points = append(points, opts.ScatterData{Value: []interface{}{x, y, v}})
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: h.Name, Subtitle: fmt.Sprintf("sum=%.4g", h.Sum())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show: opts.Bool(true),
			Calculable: opts.Bool(true),
			Min: 0,
			Max: float32(maxVal),
			Dimension: "2",
			InRange: &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries(h.Name, points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	r.page.AddCharts(scatter)
}

// WriteHTML renders the accumulated charts to a single HTML file.
func (r *Report) WriteHTML(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	if err := r.page.Render(f); err != nil {
		return fmt.Errorf("report: render %s: %w", path, err)
	}
	return nil
}
