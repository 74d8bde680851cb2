package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/reference"
)

// ForecastTool handles the growth_forecast MCP tool.
type ForecastTool struct {
	tracker    *growth.Tracker
	forecaster *growth.Forecaster
}

// NewForecastTool creates a ForecastTool projecting horizon months ahead.
func NewForecastTool(table *reference.Table, horizon int) *ForecastTool {
	f := growth.NewForecaster(table)
	f.HorizonMonths = horizon
	return &ForecastTool{tracker: growth.NewTracker(table), forecaster: f}
}

type entryArg struct {
	AgeMonth *int     `json:"age_month"`
	HeightCM *float64 `json:"height_cm"`
	WeightKG *float64 `json:"weight_kg"`
}

// Definition returns the MCP tool definition for growth_forecast.
func (t *ForecastTool) Definition() mcp.Tool {
	return mcp.NewTool("growth_forecast",
		mcp.WithDescription(
			"Project a child's height and weight forward by holding the mean historical percentile fixed. "+
				"Returns each entry's percentiles and the forecast at the oldest age plus the horizon.",
		),
		mcp.WithString("sex",
			mcp.Required(),
			mcp.Description("Reference population: male or female"),
			mcp.Enum("male", "female"),
		),
		mcp.WithString("entries",
			mcp.Required(),
			mcp.Description(`JSON array of measurements, e.g. [{"age_month":12,"height_cm":75.5,"weight_kg":9.8}]. `+
				"Each entry needs age_month and at least one of height_cm or weight_kg."),
		),
	)
}

// Handle processes the growth_forecast tool call.
func (t *ForecastTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sex, ok := reference.ParseSex(req.GetString("sex", ""))
	if !ok {
		return mcp.NewToolResultError("'sex' must be male or female"), nil
	}
	raw := req.GetString("entries", "")
	if raw == "" {
		return mcp.NewToolResultError("'entries' is required"), nil
	}
	var args []entryArg
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("'entries' is not a JSON array of measurements: %v", err)), nil
	}
	if len(args) == 0 {
		return mcp.NewToolResultError("'entries' must contain at least one measurement"), nil
	}

	s := growth.NewSession()
	s.AssignSex(sex)
	for i, a := range args {
		if a.AgeMonth == nil {
			return mcp.NewToolResultError(fmt.Sprintf("entry %d: age_month is required", i+1)), nil
		}
		m := growth.Measurement{AgeMonth: *a.AgeMonth, HeightCM: a.HeightCM, WeightKG: a.WeightKG}
		if _, err := t.tracker.Add(s, m); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("entry %d: %v", i+1, err)), nil
		}
	}

	fc, _ := t.forecaster.Forecast(s)

	var b strings.Builder
	fmt.Fprintf(&b, "## Growth history (%s, %d entries)\n\n", sex, s.Len())
	for _, e := range s.SortedHistory() {
		fmt.Fprintf(&b, "- %d months:", e.AgeMonth)
		for _, m := range reference.Measures {
			if v := e.Value(m); v != nil {
				fmt.Fprintf(&b, " %s %.1f%s (%s)", m, *v, unitFor(m), formatPercentile(e.Percentile(m)))
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Forecast at %d months\n\n", fc.TargetAgeMonth)
	for _, m := range reference.Measures {
		if v := fc.Value(m); v != nil {
			fmt.Fprintf(&b, "- %s: %.1f%s\n", m, *v, unitFor(m))
		} else {
			fmt.Fprintf(&b, "- %s: not enough data\n", m)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func formatPercentile(p *float64) string {
	if p == nil {
		return "no reference"
	}
	return fmt.Sprintf("p%.1f", *p)
}
