package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/Laloops/tramagrid/internal/tracing"
)

func TestDefaults_Valid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, Defaults(), cfg)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url is required"},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://host" }, "http or https"},
		{"no host", func(c *Config) { c.API.BaseURL = "http://" }, "no host"},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, "timeouts"},
		{"negative window", func(c *Config) { c.API.MonitorWindow = -1 }, "monitor_window"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
		{"simplify step", func(c *Config) { c.Editor.SimplifyStep = 101 }, "simplify_step"},
		{"max colors", func(c *Config) { c.Generation.MaxColors = 1000 }, "max_colors"},
		{"grid width", func(c *Config) { c.Generation.GridWidthCells = -1 }, "grid_width_cells"},
		{"brightness", func(c *Config) { c.Generation.Brightness = -1 }, "brightness"},
		{"zoom", func(c *Config) { c.Generation.Zoom = 10 }, "zoom"},
		{"debounce", func(c *Config) { c.Watch.Debounce = -1 }, "watch.debounce"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateGeneration_ZeroMeansUnset(t *testing.T) {
	require.NoError(t, ValidateGeneration(GenerationConfig{}))
}

func TestValidateTracing(t *testing.T) {
	require.NoError(t, ValidateTracing(tracing.Config{}))
	require.ErrorContains(t, ValidateTracing(tracing.Config{Exporter: "zipkin"}), "tracing.exporter")
	require.ErrorContains(t, ValidateTracing(tracing.Config{Enabled: true, Exporter: "file", SampleRate: 1}), "file_path")
	require.ErrorContains(t, ValidateTracing(tracing.Config{Enabled: true, Exporter: "otlp", SampleRate: 1}), "otlp_endpoint")
	// File path only matters when enabled.
	require.NoError(t, ValidateTracing(tracing.Config{Enabled: false, Exporter: "file"}))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestDefaultTracesFilePath(t *testing.T) {
	p := DefaultTracesFilePath()
	if p != "" {
		require.True(t, strings.HasSuffix(p, filepath.Join("tramagrid", "traces", "traces.jsonl")))
	}
}
