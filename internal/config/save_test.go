package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func loadFile(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestSaveGeneration_PreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	g := GenerationConfig{MaxColors: 12, GridWidthCells: 80, Brightness: 1.2, Contrast: 1, Zoom: 2.5}
	require.NoError(t, SaveGeneration(path, g))

	cfg := loadFile(t, path)
	require.Equal(t, g, cfg.Generation)
	require.Equal(t, Defaults().API, cfg.API)
	require.Equal(t, Defaults().Watch, cfg.Watch)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Backend connection")
	require.Contains(t, string(data), "contrast: 1.0")
}

func TestSaveGeneration_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "config.yaml")

	g := GenerationConfig{MaxColors: 8}
	require.NoError(t, SaveGeneration(path, g))

	cfg := loadFile(t, path)
	require.Equal(t, g, cfg.Generation)
}

func TestSaveGeneration_AppendsMissingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: http://example.test\n"), 0o600))

	require.NoError(t, SaveGeneration(path, GenerationConfig{MaxColors: 5, Zoom: 1}))

	cfg := loadFile(t, path)
	require.Equal(t, "http://example.test", cfg.API.BaseURL)
	require.Equal(t, 5, cfg.Generation.MaxColors)
	require.InDelta(t, 1.0, cfg.Generation.Zoom, 1e-9)
}

func TestSaveGeneration_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, SaveGeneration(path, GenerationConfig{Zoom: 100}))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestSaveGeneration_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

	require.ErrorContains(t, SaveGeneration(path, GenerationConfig{}), "not a mapping")
}

func TestFormatFloat(t *testing.T) {
	require.Equal(t, "1.0", formatFloat(1))
	require.Equal(t, "2.5", formatFloat(2.5))
	require.Equal(t, "0.0", formatFloat(0))
}
