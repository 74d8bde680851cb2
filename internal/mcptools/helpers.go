// Package mcptools exposes the percentile engine and forecaster as MCP tools.
//
// Each tool follows one shape:
//   - a struct holding its dependencies, built by a constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() validates arguments and returns a text result
//
// Argument problems are reported as tool errors, never as Go errors, so the
// calling assistant sees the message.
package mcptools

import (
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/units"
)

// numberArg extracts a number argument. JSON numbers arrive as float64.
func numberArg(req mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// lookupArgs reads sex, measure and age_month and resolves the LMS row.
func lookupArgs(table *reference.Table, req mcp.CallToolRequest) (reference.Sex, reference.Measure, int, reference.LMS, error) {
	sex, ok := reference.ParseSex(req.GetString("sex", ""))
	if !ok {
		return "", "", 0, reference.LMS{}, fmt.Errorf("'sex' must be male or female")
	}
	measure, ok := reference.ParseMeasure(req.GetString("measure", ""))
	if !ok {
		return "", "", 0, reference.LMS{}, fmt.Errorf("'measure' must be height or weight")
	}
	age, ok := numberArg(req, "age_month")
	if !ok || age < 0 || age != math.Trunc(age) {
		return "", "", 0, reference.LMS{}, fmt.Errorf("'age_month' must be a non-negative whole number")
	}
	lms, ok := table.Lookup(sex, measure, int(age))
	if !ok {
		return "", "", 0, reference.LMS{}, fmt.Errorf("no reference data for %s %s at %d months", sex, measure, int(age))
	}
	return sex, measure, int(age), lms, nil
}

func unitFor(m reference.Measure) string {
	return units.ForMeasure(string(m))
}

// lookupOptions are the schema options shared by the table-backed tools.
func lookupOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("sex",
			mcp.Required(),
			mcp.Description("Reference population: male or female"),
			mcp.Enum("male", "female"),
		),
		mcp.WithString("measure",
			mcp.Required(),
			mcp.Description("Measurement type: height (cm) or weight (kg)"),
			mcp.Enum("height", "weight"),
		),
		mcp.WithNumber("age_month",
			mcp.Required(),
			mcp.Description("Age in whole months, 0 to 120"),
		),
	}
}
