// Package chart renders growth charts: population reference bands, the
// child's recorded trajectory and the dashed forecast projection.
package chart

import (
	"errors"
	"fmt"

	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/percentile"
	"github.com/banshee-data/growth.report/internal/reference"
)

// ErrNothingToPlot is returned when neither reference bands nor measurements
// are available for any measure.
var ErrNothingToPlot = errors.New("chart: nothing to plot")

// BandPercentiles are the reference curves drawn behind the trajectory.
var BandPercentiles = []float64{3, 10, 50, 90, 97}

// Input is what a chart is drawn from. History need not be sorted.
type Input struct {
	Sex      reference.Sex
	History  []growth.Entry
	Forecast *growth.Forecast
}

// Point is one (age, value) sample.
type Point struct {
	AgeMonth float64
	Value    float64
}

// Band is a reference curve at a fixed percentile.
type Band struct {
	Percentile float64
	Points     []Point
}

// Panel holds everything drawn for one measure.
type Panel struct {
	Measure    reference.Measure
	Bands      []Band
	Trajectory []Point
	// Projection is empty or exactly two points: the last recorded value and
	// the forecast.
	Projection []Point
	// HorizonMonths is how far past the latest entry the forecast reaches.
	HorizonMonths int
}

// ProjectionLabel names the projection series, e.g. "12-month forecast".
func (p Panel) ProjectionLabel() string {
	return fmt.Sprintf("%d-month forecast", p.HorizonMonths)
}

// Empty reports whether the panel has no data at all.
func (p Panel) Empty() bool {
	return len(p.Bands) == 0 && len(p.Trajectory) == 0
}

// Renderer draws charts against a reference table.
type Renderer struct {
	Table *reference.Table
}

// NewRenderer returns a Renderer for t.
func NewRenderer(t *reference.Table) *Renderer {
	return &Renderer{Table: t}
}

// Panels builds the height and weight panels for in.
func (r *Renderer) Panels(in Input) []Panel {
	history := (&growth.Session{History: in.History}).SortedHistory()

	panels := make([]Panel, 0, len(reference.Measures))
	for _, m := range reference.Measures {
		p := Panel{Measure: m, Bands: r.bands(in.Sex, m)}
		for _, e := range history {
			if v := e.Value(m); v != nil {
				p.Trajectory = append(p.Trajectory, Point{AgeMonth: float64(e.AgeMonth), Value: *v})
			}
		}
		if in.Forecast != nil && len(p.Trajectory) > 0 {
			if f := in.Forecast.Value(m); f != nil {
				last := p.Trajectory[len(p.Trajectory)-1]
				p.Projection = []Point{last, {AgeMonth: float64(in.Forecast.TargetAgeMonth), Value: *f}}
				p.HorizonMonths = in.Forecast.TargetAgeMonth - history[len(history)-1].AgeMonth
			}
		}
		panels = append(panels, p)
	}
	return panels
}

func (r *Renderer) bands(sex reference.Sex, m reference.Measure) []Band {
	if !sex.Valid() || r.Table == nil {
		return nil
	}
	ages := r.Table.Ages(sex, m)
	if len(ages) == 0 {
		return nil
	}

	bands := make([]Band, 0, len(BandPercentiles))
	for _, pct := range BandPercentiles {
		b := Band{Percentile: pct, Points: make([]Point, 0, len(ages))}
		prob := percentile.ClampPercentile(pct) / 100
		for _, age := range ages {
			lms, ok := r.Table.Lookup(sex, m, age)
			if !ok {
				continue
			}
			v, err := percentile.ValueAtPercentile(prob, lms)
			if err != nil {
				continue
			}
			b.Points = append(b.Points, Point{AgeMonth: float64(age), Value: v})
		}
		bands = append(bands, b)
	}
	return bands
}

func allEmpty(panels []Panel) bool {
	for _, p := range panels {
		if !p.Empty() {
			return false
		}
	}
	return true
}

func unitFor(m reference.Measure) string {
	if m == reference.Weight {
		return "kg"
	}
	return "cm"
}

func titleFor(m reference.Measure) string {
	if m == reference.Weight {
		return "Weight growth curve"
	}
	return "Height growth curve"
}
