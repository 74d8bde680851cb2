package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/banshee-data/growth.report/internal/percentile"
	"github.com/banshee-data/growth.report/internal/reference"
)

// PercentileTool handles the growth_percentile MCP tool.
type PercentileTool struct {
	table *reference.Table
}

// NewPercentileTool creates a PercentileTool over table.
func NewPercentileTool(table *reference.Table) *PercentileTool {
	return &PercentileTool{table: table}
}

// Definition returns the MCP tool definition for growth_percentile.
func (t *PercentileTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Percentile of a child's height or weight against the LMS growth reference for their sex and age."),
	}, lookupOptions()...)
	opts = append(opts, mcp.WithNumber("value",
		mcp.Required(),
		mcp.Description("Measured value in cm (height) or kg (weight)"),
	))
	return mcp.NewTool("growth_percentile", opts...)
}

// Handle processes the growth_percentile tool call.
func (t *PercentileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sex, measure, age, lms, err := lookupArgs(t.table, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := numberArg(req, "value")
	if !ok {
		return mcp.NewToolResultError("'value' is required"), nil
	}

	z, err := percentile.ZScore(value, lms)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot evaluate %v: %v", value, err)), nil
	}
	p := percentile.FromZScore(z)

	return mcp.NewToolResultText(fmt.Sprintf(
		"%s %s %.1f%s at %d months: percentile %.1f (z = %.2f)",
		sex, measure, value, unitFor(measure), age, p, z,
	)), nil
}

// ValueAtPercentileTool handles the growth_value_at_percentile MCP tool.
type ValueAtPercentileTool struct {
	table *reference.Table
}

// NewValueAtPercentileTool creates a ValueAtPercentileTool over table.
func NewValueAtPercentileTool(table *reference.Table) *ValueAtPercentileTool {
	return &ValueAtPercentileTool{table: table}
}

// Definition returns the MCP tool definition for growth_value_at_percentile.
func (t *ValueAtPercentileTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Reference height or weight at a given percentile for a sex and age. The inverse of growth_percentile."),
	}, lookupOptions()...)
	opts = append(opts, mcp.WithNumber("percentile",
		mcp.Required(),
		mcp.Description("Percentile strictly between 0 and 100, e.g. 50 for the median"),
	))
	return mcp.NewTool("growth_value_at_percentile", opts...)
}

// Handle processes the growth_value_at_percentile tool call.
func (t *ValueAtPercentileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sex, measure, age, lms, err := lookupArgs(t.table, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok := numberArg(req, "percentile")
	if !ok {
		return mcp.NewToolResultError("'percentile' is required"), nil
	}

	v, err := percentile.ValueAtPercentile(p/100, lms)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot invert percentile %v: %v", p, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"%s %s at %d months, percentile %.1f: %.1f%s",
		sex, measure, age, p, v, unitFor(measure),
	)), nil
}
