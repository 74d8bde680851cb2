package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/growth.report/internal/decision"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, devMode = "", false
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range newRootCmd().Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "worker", "migrate", "chart", "mcp", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "growthbot dev")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growth.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen = \":9000\"\nqueue = \"memory\"\n"), 0o644))

	cmd := newServeCmd()
	configPath = path
	defer func() { configPath = "" }()
	require.NoError(t, cmd.Flags().Set("db", filepath.Join(dir, "s.db")))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.GetListen(), "unset flag keeps the file value")
	assert.Equal(t, filepath.Join(dir, "s.db"), cfg.GetDBPath())

	require.NoError(t, cmd.Flags().Set("queue", "carrier-pigeon"))
	_, err = loadConfig(cmd)
	assert.Error(t, err)
}

func TestNewApp_RequiresAPIKeyOutsideDev(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cmd := newServeCmd()
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	_, err = newApp(cfg, false)
	assert.ErrorContains(t, err, "--dev")

	a, err := newApp(cfg, true)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.db)
	assert.Equal(t, 2, a.processor.ReportThreshold())
}

func TestNewApp_DeciderFollowsConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "growth.toml")
	body := "min_report_entries = 3\ncallback_timeout = \"2s\"\ndecision_timeout = \"40s\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	configPath = path
	defer func() { configPath = "" }()
	cfg, err := loadConfig(newServeCmd())
	require.NoError(t, err)

	a, err := newApp(cfg, false)
	require.NoError(t, err)
	defer a.Close()

	g, ok := a.processor.Decider.(*decision.GeminiDecider)
	require.True(t, ok, "decider is %T", a.processor.Decider)
	assert.Equal(t, 3, g.MinReportEntries)
	assert.Equal(t, 3, a.processor.ReportThreshold())

	cb, ok := a.processor.Client.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, cb.Timeout, "callbacks keep their own timeout")
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.db")

	out, err := execute(t, "migrate", "status", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "behind")

	out, err = execute(t, "migrate", "up", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2")

	_, err = execute(t, "migrate", "up")
	assert.Error(t, err, "a database path is required")
}

func TestChartCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"sex":"female","history":[
		{"age_month":12,"height_cm":74.0,"weight_kg":8.9},
		{"age_month":24,"height_cm":85.7,"weight_kg":11.5}
	]}`), 0o644))

	png := filepath.Join(dir, "out.png")
	out, err := execute(t, "chart", in, "--out", png)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 entries)")
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	html := filepath.Join(dir, "out.html")
	_, err = execute(t, "chart", in, "--out", html, "--format", "html", "--forecast=false")
	require.NoError(t, err)
	data, err = os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>growth chart</title>")
	assert.NotContains(t, string(data), "12-month forecast")
}

func TestChartCommand_Rejects(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "session.json")

	require.NoError(t, os.WriteFile(in, []byte(`{"history":[{"age_month":12,"height_cm":74}]}`), 0o644))
	_, err := execute(t, "chart", in, "--out", filepath.Join(dir, "a.png"))
	assert.ErrorContains(t, err, "sex")

	require.NoError(t, os.WriteFile(in, []byte(`{"sex":"male","history":[{"age_month":12}]}`), 0o644))
	_, err = execute(t, "chart", in, "--out", filepath.Join(dir, "b.png"))
	assert.ErrorContains(t, err, "history entry 1")

	_, err = execute(t, "chart", in, "--out", "/etc/growth.png")
	assert.Error(t, err)
}
