package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/growth.report/internal/chart"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/security"
)

var (
	chartOut      string
	chartFormat   string
	chartForecast bool
)

func newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <session.json>",
		Short: "Render a growth chart from a session JSON file",
		Long: `Render a growth chart offline. The input has the shape served by
GET /api/sessions/{user}: {"sex":"male","history":[{"age_month":12,"height_cm":75.5}]}.
Percentiles are recomputed from the reference table.`,
		Args: cobra.ExactArgs(1),
		RunE: runChartCmd,
	}
	cmd.Flags().StringVarP(&chartOut, "out", "o", "growth.png", "output file")
	cmd.Flags().StringVar(&chartFormat, "format", "png", "output format: png or html")
	cmd.Flags().BoolVar(&chartForecast, "forecast", true, "draw the forecast line")
	return cmd
}

func runChartCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	table, err := referenceTable(cfg)
	if err != nil {
		return err
	}
	if err := security.ValidateOutputPath(chartOut); err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	var in growth.Session
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("failed to parse session: %w", err)
	}
	sex, ok := reference.ParseSex(string(in.Sex))
	if !ok {
		return fmt.Errorf("session sex must be male or female, got %q", in.Sex)
	}

	s := growth.NewSession()
	s.AssignSex(sex)
	tracker := growth.NewTracker(table)
	for i, e := range in.History {
		m := growth.Measurement{AgeMonth: e.AgeMonth, HeightCM: e.HeightCM, WeightKG: e.WeightKG}
		if _, err := tracker.Add(s, m); err != nil {
			return fmt.Errorf("history entry %d: %w", i+1, err)
		}
	}

	ci := chart.Input{Sex: s.Sex, History: s.History}
	if chartForecast {
		f := growth.NewForecaster(table)
		f.HorizonMonths = cfg.GetForecastHorizonMonths()
		if fc, ok := f.Forecast(s); ok {
			ci.Forecast = &fc
		}
	}

	renderer := chart.NewRenderer(table)
	var buf bytes.Buffer
	switch chartFormat {
	case "png":
		err = renderer.PNG(&buf, ci)
	case "html":
		err = renderer.HTML(&buf, ci, "growth chart")
	default:
		return fmt.Errorf("format must be png or html, got %q", chartFormat)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(chartOut, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d entries)\n", chartOut, s.Len())
	return nil
}
