package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/growth.report/internal/reference"
)

// DefaultAssetsHost serves the echarts javascript.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var htmlColors = map[reference.Measure][2]string{
	reference.Height: {"deeppink", "hotpink"},
	reference.Weight: {"deepskyblue", "lightskyblue"},
}

// HTML renders an interactive page with one line chart per measure.
func (r *Renderer) HTML(w io.Writer, in Input, title string) error {
	panels := r.Panels(in)
	if allEmpty(panels) {
		return ErrNothingToPlot
	}

	page := components.NewPage()
	page.PageTitle = title
	page.SetAssetsHost(DefaultAssetsHost)
	for _, p := range panels {
		page.AddCharts(lineChart(p))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func lineChart(p Panel) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "480px", AssetsHost: DefaultAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: titleFor(p.Measure)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Age (months)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: unitFor(p.Measure), Scale: opts.Bool(true)}),
	)

	for _, b := range p.Bands {
		line.AddSeries(fmt.Sprintf("P%g", b.Percentile), lineData(b.Points),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "gray", Width: 1}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}

	colors := htmlColors[p.Measure]
	if len(p.Trajectory) > 0 {
		line.AddSeries("Measured", lineData(p.Trajectory),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colors[0], Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[0]}),
		)
	}
	if len(p.Projection) == 2 {
		line.AddSeries(p.ProjectionLabel(), lineData(p.Projection),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colors[1], Width: 2, Type: "dashed"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[1]}),
		)
	}
	return line
}

func lineData(pts []Point) []opts.LineData {
	data := make([]opts.LineData, len(pts))
	for i, p := range pts {
		data[i] = opts.LineData{Value: []interface{}{p.AgeMonth, p.Value}}
	}
	return data
}
