package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/growth.report/internal/reference"
)

// Image size of the stacked two-panel PNG.
const (
	PNGWidth  = 8 * vg.Inch
	PNGHeight = 10 * vg.Inch
)

var (
	backgroundColor = color.RGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 255}
	foregroundColor = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 255}
	bandColor       = color.RGBA{R: 128, G: 128, B: 128, A: 255}

	// measured, projected
	measureColors = map[reference.Measure][2]color.Color{
		reference.Height: {color.RGBA{R: 255, G: 20, B: 147, A: 255}, color.RGBA{R: 255, G: 105, B: 180, A: 255}},
		reference.Weight: {color.RGBA{R: 0, G: 191, B: 255, A: 255}, color.RGBA{R: 135, G: 206, B: 250, A: 255}},
	}
)

// PNG renders height above weight on a dark background and writes the PNG
// encoding to w.
func (r *Renderer) PNG(w io.Writer, in Input) error {
	panels := r.Panels(in)
	if allEmpty(panels) {
		return ErrNothingToPlot
	}

	plots := make([][]*plot.Plot, 0, len(panels))
	for i, p := range panels {
		pl, err := r.panelPlot(p, i == len(panels)-1)
		if err != nil {
			return fmt.Errorf("%s panel: %w", p.Measure, err)
		}
		plots = append(plots, []*plot.Plot{pl})
	}

	img := vgimg.NewWith(vgimg.UseWH(PNGWidth, PNGHeight), vgimg.UseBackgroundColor(backgroundColor))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Points(8),
		PadBottom: vg.Points(8),
		PadLeft:   vg.Points(8),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(16),
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (r *Renderer) panelPlot(p Panel, xLabel bool) (*plot.Plot, error) {
	pl := plot.New()
	styleDark(pl)
	pl.Title.Text = titleFor(p.Measure)
	pl.Y.Label.Text = unitFor(p.Measure)
	if xLabel {
		pl.X.Label.Text = "Age (months)"
	}

	for _, b := range p.Bands {
		if len(b.Points) == 0 {
			continue
		}
		l, err := plotter.NewLine(toXYs(b.Points))
		if err != nil {
			return nil, err
		}
		l.Color = bandColor
		l.Width = vg.Points(0.8)
		pl.Add(l)
	}

	colors := measureColors[p.Measure]
	if len(p.Trajectory) > 0 {
		l, s, err := plotter.NewLinePoints(toXYs(p.Trajectory))
		if err != nil {
			return nil, err
		}
		l.Color = colors[0]
		l.Width = vg.Points(1.5)
		s.Color = colors[0]
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(3)
		pl.Add(l, s)
		pl.Legend.Add("Measured", l, s)
	}

	if len(p.Projection) == 2 {
		l, s, err := plotter.NewLinePoints(toXYs(p.Projection))
		if err != nil {
			return nil, err
		}
		l.Color = colors[1]
		l.Width = vg.Points(1.5)
		l.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		s.Color = colors[1]
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(3)
		pl.Add(l, s)
		pl.Legend.Add(p.ProjectionLabel(), l, s)
	}

	pl.Legend.Top = true
	pl.Legend.Left = true
	pl.Legend.XOffs = 10
	pl.Legend.YOffs = -10
	return pl, nil
}

func styleDark(pl *plot.Plot) {
	pl.BackgroundColor = backgroundColor
	pl.Title.TextStyle.Color = foregroundColor
	pl.Legend.TextStyle.Color = foregroundColor
	for _, a := range []*plot.Axis{&pl.X, &pl.Y} {
		a.Color = foregroundColor
		a.Label.TextStyle.Color = foregroundColor
		a.Tick.Color = foregroundColor
		a.Tick.Label.Color = foregroundColor
	}
}

func toXYs(pts []Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X = p.AgeMonth
		xys[i].Y = p.Value
	}
	return xys
}
