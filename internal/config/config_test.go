package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, []string{"LLM", "large language model"}, cfg.Arxiv.Keywords)
	require.Equal(t, 25, cfg.Arxiv.PageSize)
	require.Equal(t, 5, cfg.Arxiv.MaxRetries)
	require.Equal(t, 800, cfg.Arxiv.WindowLimit)
	require.Equal(t, 12, cfg.Schedule.CheckHour)
	require.Equal(t, "none", cfg.Mirror.Provider)
	require.Equal(t, 30*time.Second, cfg.RequestDelay())

	start, err := cfg.CoverageStart()
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9090
arxiv:
  keywords:
    - transformer
  page_size: 10
schedule:
  check_hour: 6
  coverage_start: "2024-01-01"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, []string{"transformer"}, cfg.Arxiv.Keywords)
	require.Equal(t, 10, cfg.Arxiv.PageSize)
	require.Equal(t, 6, cfg.Schedule.CheckHour)

	start, err := cfg.CoverageStart()
	require.NoError(t, err)
	require.Equal(t, 2024, start.Year())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no keywords", func(c *Config) { c.Arxiv.Keywords = nil }},
		{"zero page size", func(c *Config) { c.Arxiv.PageSize = 0 }},
		{"check hour out of range", func(c *Config) { c.Schedule.CheckHour = 24 }},
		{"bad coverage start", func(c *Config) { c.Schedule.CoverageStart = "Jan 1" }},
		{"unknown mirror", func(c *Config) { c.Mirror.Provider = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.Mirror.Provider = "postgres"; c.Mirror.DSN = "" }},
		{"pubsub without topic", func(c *Config) { c.PubSub.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
