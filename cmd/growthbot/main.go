// Package main provides the growthbot CLI: the chat webhook server, the
// queue worker, schema migrations, offline chart rendering and an MCP
// server over the percentile engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/growth.report/internal/config"
	"github.com/banshee-data/growth.report/internal/version"
)

var (
	configPath string
	devMode    bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "growthbot",
		Short:         "Child growth percentile chatbot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a .json or .toml config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "answer with the offline rule decider instead of Gemini")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newChartCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads the config file and applies any flag that was set
// explicitly on cmd.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringFlag(cmd, "listen", &cfg.Listen)
	applyStringFlag(cmd, "db", &cfg.DBPath)
	applyStringFlag(cmd, "queue", &cfg.Queue)
	applyStringFlag(cmd, "chart-dir", &cfg.ChartDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyStringFlag(cmd *cobra.Command, name string, target **string) {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	v := f.Value.String()
	*target = &v
}
