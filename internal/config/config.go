// Package config loads the server configuration from a JSON or TOML file.
// Every field is optional; Get* accessors supply defaults for omitted values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override file values. Secrets are only ever
// read from the environment.
const (
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvAMQPURL       = "GROWTH_AMQP_URL"
	EnvPublicBaseURL = "GROWTH_PUBLIC_BASE_URL"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueAMQP   = "amqp"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ServerConfig is the configuration for growthbot.
type ServerConfig struct {
	Listen        *string `json:"listen,omitempty" toml:"listen"`
	PublicBaseURL *string `json:"public_base_url,omitempty" toml:"public_base_url"`
	DBPath        *string `json:"db_path,omitempty" toml:"db_path"`
	ChartDir      *string `json:"chart_dir,omitempty" toml:"chart_dir"`

	Queue     *string `json:"queue,omitempty" toml:"queue"`
	AMQPURL   *string `json:"amqp_url,omitempty" toml:"amqp_url"`
	AMQPQueue *string `json:"amqp_queue,omitempty" toml:"amqp_queue"`
	Workers   *int    `json:"workers,omitempty" toml:"workers"`

	MinReportEntries      *int    `json:"min_report_entries,omitempty" toml:"min_report_entries"`
	ForecastHorizonMonths *int    `json:"forecast_horizon_months,omitempty" toml:"forecast_horizon_months"`
	LookupPolicy          *string `json:"lookup_policy,omitempty" toml:"lookup_policy"`

	DecisionModel    *string `json:"decision_model,omitempty" toml:"decision_model"`
	DecisionEndpoint *string `json:"decision_endpoint,omitempty" toml:"decision_endpoint"`
	DecisionTimeout  *string `json:"decision_timeout,omitempty" toml:"decision_timeout"` // duration string like "30s"
	CallbackTimeout  *string `json:"callback_timeout,omitempty" toml:"callback_timeout"` // duration string like "10s"
	SessionTTL       *string `json:"session_ttl,omitempty" toml:"session_ttl"`           // duration string like "72h"

	// GeminiAPIKey is populated from the environment only.
	GeminiAPIKey string `json:"-" toml:"-"`
}

func ptrString(v string) *string { return &v }

// Empty returns a ServerConfig with all fields unset.
func Empty() *ServerConfig {
	return &ServerConfig{}
}

// Load reads a .json or .toml file. An empty path yields an empty config.
// Environment overrides are applied and the result is validated.
func Load(path string) (*ServerConfig, error) {
	cfg := Empty()
	if path != "" {
		var err error
		if cfg, err = loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(path string) (*ServerConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	cfg := Empty()
	if ext == ".toml" {
		if _, err := toml.DecodeFile(cleanPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment using getenv.
func (c *ServerConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvGeminiAPIKey); v != "" {
		c.GeminiAPIKey = v
	}
	if v := getenv(EnvAMQPURL); v != "" {
		c.AMQPURL = ptrString(v)
	}
	if v := getenv(EnvPublicBaseURL); v != "" {
		c.PublicBaseURL = ptrString(v)
	}
}

// Validate checks that the configuration values are valid.
func (c *ServerConfig) Validate() error {
	if c.Queue != nil {
		switch *c.Queue {
		case QueueMemory:
		case QueueAMQP:
			if c.GetAMQPURL() == "" {
				return fmt.Errorf("queue %q requires amqp_url or %s", QueueAMQP, EnvAMQPURL)
			}
		default:
			return fmt.Errorf("queue must be %q or %q, got %q", QueueMemory, QueueAMQP, *c.Queue)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MinReportEntries != nil && *c.MinReportEntries < 1 {
		return fmt.Errorf("min_report_entries must be at least 1, got %d", *c.MinReportEntries)
	}
	if c.ForecastHorizonMonths != nil && *c.ForecastHorizonMonths < 1 {
		return fmt.Errorf("forecast_horizon_months must be at least 1, got %d", *c.ForecastHorizonMonths)
	}
	if c.LookupPolicy != nil {
		switch *c.LookupPolicy {
		case "", "exact", "nearest":
		default:
			return fmt.Errorf("lookup_policy must be \"exact\" or \"nearest\", got %q", *c.LookupPolicy)
		}
	}
	if err := validateDuration("decision_timeout", c.DecisionTimeout); err != nil {
		return err
	}
	if err := validateDuration("callback_timeout", c.CallbackTimeout); err != nil {
		return err
	}
	if err := validateDuration("session_ttl", c.SessionTTL); err != nil {
		return err
	}
	if c.PublicBaseURL != nil && *c.PublicBaseURL != "" {
		u := *c.PublicBaseURL
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("public_base_url must start with http:// or https://, got %q", u)
		}
	}
	return nil
}

func validateDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

func str(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func num(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func dur(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetListen returns the HTTP listen address.
func (c *ServerConfig) GetListen() string { return str(c.Listen, ":8080") }

// GetPublicBaseURL returns the externally reachable base URL, without a
// trailing slash. Chart links are built from it.
func (c *ServerConfig) GetPublicBaseURL() string {
	return strings.TrimRight(str(c.PublicBaseURL, "http://localhost:8080"), "/")
}

// GetDBPath returns the SQLite path. Empty means in-memory sessions.
func (c *ServerConfig) GetDBPath() string { return str(c.DBPath, "") }

// GetChartDir returns where rendered charts are written.
func (c *ServerConfig) GetChartDir() string {
	return str(c.ChartDir, filepath.Join(os.TempDir(), "growth-charts"))
}

func (c *ServerConfig) GetQueue() string     { return str(c.Queue, QueueMemory) }
func (c *ServerConfig) GetAMQPURL() string   { return str(c.AMQPURL, "") }
func (c *ServerConfig) GetAMQPQueue() string { return str(c.AMQPQueue, "growth.jobs") }
func (c *ServerConfig) GetWorkers() int      { return num(c.Workers, 4) }

// GetMinReportEntries returns the history length required for a report.
func (c *ServerConfig) GetMinReportEntries() int { return num(c.MinReportEntries, 2) }

// GetForecastHorizonMonths returns how far ahead forecasts project.
func (c *ServerConfig) GetForecastHorizonMonths() int { return num(c.ForecastHorizonMonths, 12) }

// GetLookupPolicy returns "exact" or "nearest".
func (c *ServerConfig) GetLookupPolicy() string { return str(c.LookupPolicy, "exact") }

func (c *ServerConfig) GetDecisionModel() string    { return str(c.DecisionModel, "") }
func (c *ServerConfig) GetDecisionEndpoint() string { return str(c.DecisionEndpoint, "") }

// GetDecisionTimeout bounds each decision model call.
func (c *ServerConfig) GetDecisionTimeout() time.Duration {
	return dur(c.DecisionTimeout, 30*time.Second)
}

// GetCallbackTimeout bounds each callback POST.
func (c *ServerConfig) GetCallbackTimeout() time.Duration {
	return dur(c.CallbackTimeout, 10*time.Second)
}

// GetSessionTTL is how long an idle session is kept. Zero disables expiry.
func (c *ServerConfig) GetSessionTTL() time.Duration {
	return dur(c.SessionTTL, 72*time.Hour)
}
