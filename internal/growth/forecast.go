package growth

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/growth.report/internal/monitoring"
	"github.com/banshee-data/growth.report/internal/percentile"
	"github.com/banshee-data/growth.report/internal/reference"
)

// DefaultHorizonMonths is how far ahead a forecast projects.
const DefaultHorizonMonths = 12

// Forecast is a projected measurement at TargetAgeMonth. A nil value means no
// forecast could be made for that measure.
type Forecast struct {
	HeightCM       *float64 `json:"height_forecast,omitempty"`
	WeightKG       *float64 `json:"weight_forecast,omitempty"`
	TargetAgeMonth int      `json:"target_age_month"`
}

// Value returns the forecast for m.
func (f Forecast) Value(m reference.Measure) *float64 {
	switch m {
	case reference.Height:
		return f.HeightCM
	case reference.Weight:
		return f.WeightKG
	default:
		return nil
	}
}

// Forecaster projects each measure by holding its mean historical percentile
// fixed and reading the reference value at the target age.
type Forecaster struct {
	Table         *reference.Table
	HorizonMonths int
}

// NewForecaster returns a Forecaster with the default horizon.
func NewForecaster(t *reference.Table) *Forecaster {
	return &Forecaster{Table: t, HorizonMonths: DefaultHorizonMonths}
}

// Forecast projects the session forward from the highest recorded age, not
// the last appended entry. The boolean is false only for an empty history;
// a minimum history length is the caller's policy.
func (f *Forecaster) Forecast(s *Session) (Forecast, bool) {
	if len(s.History) == 0 {
		return Forecast{}, false
	}

	maxAge := s.History[0].AgeMonth
	for _, e := range s.History[1:] {
		if e.AgeMonth > maxAge {
			maxAge = e.AgeMonth
		}
	}

	out := Forecast{TargetAgeMonth: maxAge + f.Horizon()}
	if !s.Sex.Valid() {
		return out, true
	}
	out.HeightCM = f.project(s, reference.Height, out.TargetAgeMonth)
	out.WeightKG = f.project(s, reference.Weight, out.TargetAgeMonth)
	return out, true
}

// Horizon is the projection distance in months.
func (f *Forecaster) Horizon() int {
	if f.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return f.HorizonMonths
}

func (f *Forecaster) project(s *Session, m reference.Measure, target int) *float64 {
	var ps []float64
	for _, e := range s.History {
		if p := e.Percentile(m); p != nil {
			ps = append(ps, *p)
		}
	}
	if len(ps) == 0 {
		return nil
	}
	avg := stat.Mean(ps, nil)

	lms, ok := f.Table.Lookup(s.Sex, m, target)
	if !ok {
		return nil
	}
	v, err := percentile.ValueAtPercentile(percentile.ClampPercentile(avg)/100, lms)
	if err != nil {
		monitoring.Logf("forecast %s at %d months from p%.1f: %v", m, target, avg, err)
		return nil
	}
	return &v
}
