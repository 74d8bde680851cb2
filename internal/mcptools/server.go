package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/version"
)

const instructions = `Growth reference tools for children aged 0 to 120 months.
Use growth_percentile to place a single measurement, growth_value_at_percentile
to read the reference curve, and growth_forecast to project a history forward.
Heights are in centimetres and weights in kilograms.`

// NewServer returns an MCP server with every growth tool registered.
func NewServer(table *reference.Table, horizon int) *server.MCPServer {
	s := server.NewMCPServer(
		"growthbot",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	pct := NewPercentileTool(table)
	s.AddTool(pct.Definition(), pct.Handle)

	inv := NewValueAtPercentileTool(table)
	s.AddTool(inv.Definition(), inv.Handle)

	fc := NewForecastTool(table, horizon)
	s.AddTool(fc.Definition(), fc.Handle)

	return s
}
