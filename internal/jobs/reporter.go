package jobs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/banshee-data/growth.report/internal/chart"
	"github.com/banshee-data/growth.report/internal/chat"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/units"
)

// Report is a rendered growth report.
type Report struct {
	File     string
	ImageURL string
	Summary  string
	Forecast growth.Forecast
}

// Reporter forecasts a session, renders the PNG chart and stores it where
// the static handler serves it from.
type Reporter struct {
	Forecaster    *growth.Forecaster
	Renderer      *chart.Renderer
	Charts        *ChartStore
	PublicBaseURL string
}

// NewReporter wires a reporter for one reference table.
func NewReporter(f *growth.Forecaster, charts *ChartStore, publicBaseURL string) *Reporter {
	return &Reporter{
		Forecaster:    f,
		Renderer:      chart.NewRenderer(f.Table),
		Charts:        charts,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Report renders s for userID.
func (r *Reporter) Report(_ context.Context, userID string, s *growth.Session) (Report, error) {
	in := chart.Input{Sex: s.Sex, History: s.History}
	fc, ok := r.Forecaster.Forecast(s)
	if ok {
		in.Forecast = &fc
	}

	var buf bytes.Buffer
	if err := r.Renderer.PNG(&buf, in); err != nil {
		return Report{}, fmt.Errorf("render chart: %w", err)
	}
	name, err := r.Charts.Save(userID, ".png", buf.Bytes())
	if err != nil {
		return Report{}, err
	}

	return Report{
		File:     name,
		ImageURL: r.PublicBaseURL + "/static/" + name,
		Summary:  chat.ReportSummary(s.Len(), r.Forecaster.Horizon(), forecastLines(fc)),
		Forecast: fc,
	}, nil
}

func forecastLines(fc growth.Forecast) []string {
	var lines []string
	for _, m := range reference.Measures {
		v := fc.Value(m)
		if v == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s 예상 %s: %s",
			units.FormatAge(fc.TargetAgeMonth), measureLabel(m), units.FormatValue(string(m), *v)))
	}
	return lines
}

func measureLabel(m reference.Measure) string {
	if m == reference.Height {
		return "키"
	}
	return "몸무게"
}
