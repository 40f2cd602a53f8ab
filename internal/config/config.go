// Package config provides configuration types, defaults and validation for
// tramagrid.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/tracing"
)

// Config holds all configuration options for tramagrid.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Editor     EditorConfig     `mapstructure:"editor"`
	Generation GenerationConfig `mapstructure:"generation"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Tracing    tracing.Config   `mapstructure:"tracing"`
}

// APIConfig configures the connection to the backend.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`        // per request
	UploadTimeout time.Duration `mapstructure:"upload_timeout"` // image uploads only

	// MonitorWindow is the number of requests averaged by the latency monitor.
	MonitorWindow int `mapstructure:"monitor_window"`
	// MonitorInterval is how often latency stats are logged; 0 disables it.
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
}

// CacheConfig configures the reader cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// EditorConfig holds interactive editor options.
type EditorConfig struct {
	SimplifyStep         int           `mapstructure:"simplify_step"`
	SlowCommandThreshold time.Duration `mapstructure:"slow_command_threshold"`
	ShowLog              bool          `mapstructure:"show_log"`
}

// GenerationConfig holds the generation parameters sent before each grid
// generation. Zero values are not sent.
type GenerationConfig struct {
	MaxColors      int     `mapstructure:"max_colors"`
	GridWidthCells int     `mapstructure:"grid_width_cells"`
	Brightness     float64 `mapstructure:"brightness"`
	Contrast       float64 `mapstructure:"contrast"`
	Zoom           float64 `mapstructure:"zoom"`
}

// WatchConfig configures the source image watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// BackendConfig configures the bundled fake backend.
type BackendConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultTracesFilePath returns ~/.config/tramagrid/traces/traces.jsonl, or
// "" when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tramagrid", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:         "http://localhost:8000",
			Timeout:         15 * time.Second,
			UploadTimeout:   60 * time.Second,
			MonitorWindow:   20,
			MonitorInterval: 0,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     2 * time.Minute,
		},
		Editor: EditorConfig{
			SimplifyStep:         10,
			SlowCommandThreshold: 2 * time.Second,
			ShowLog:              false,
		},
		Generation: GenerationConfig{
			MaxColors:      64,
			GridWidthCells: 130,
			Brightness:     1.0,
			Contrast:       1.0,
			Zoom:           1.0,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Backend: BackendConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
		},
		Tracing: tracing.Config{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // derived from the home directory at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  tracing.DefaultServiceName,
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateAPI(c.API); err != nil {
		return err
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	if err := ValidateEditor(c.Editor); err != nil {
		return err
	}
	if err := ValidateGeneration(c.Generation); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateAPI checks the backend URL and timeouts.
func ValidateAPI(a APIConfig) error {
	if a.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be an http or https URL, got %q", a.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url has no host: %q", a.BaseURL)
	}
	if a.Timeout < 0 || a.UploadTimeout < 0 {
		return fmt.Errorf("api timeouts must not be negative")
	}
	if a.MonitorWindow < 0 {
		return fmt.Errorf("api.monitor_window must not be negative, got %d", a.MonitorWindow)
	}
	return nil
}

// ValidateCache checks the reader cache settings.
func ValidateCache(c CacheConfig) error {
	if c.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", c.TTL)
	}
	return nil
}

// ValidateEditor checks editor settings.
func ValidateEditor(e EditorConfig) error {
	if e.SimplifyStep < 0 || e.SimplifyStep > 100 {
		return fmt.Errorf("editor.simplify_step must be between 0 and 100, got %d", e.SimplifyStep)
	}
	return nil
}

// ValidateGeneration checks generation parameters. Zero means "unset".
func ValidateGeneration(g GenerationConfig) error {
	if g.MaxColors < 0 || g.MaxColors > 256 {
		return fmt.Errorf("generation.max_colors must be between 1 and 256, got %d", g.MaxColors)
	}
	if g.GridWidthCells < 0 {
		return fmt.Errorf("generation.grid_width_cells must not be negative, got %d", g.GridWidthCells)
	}
	if g.Brightness < 0 || g.Contrast < 0 {
		return fmt.Errorf("generation.brightness and generation.contrast must not be negative")
	}
	if g.Zoom != 0 && (g.Zoom < 0.4 || g.Zoom > 8) {
		return fmt.Errorf("generation.zoom must be between 0.4 and 8, got %v", g.Zoom)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Path requirements only matter when tracing is on.
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Tramagrid Configuration

# Backend connection
api:
  base_url: http://localhost:8000
  timeout: 15s            # Deadline for each request
  upload_timeout: 60s     # Deadline for image uploads
  monitor_window: 20      # Requests averaged for latency stats
  monitor_interval: 0s    # Log latency stats this often (0s = off)

# Cache palette/grid/params reads until the next edit
cache:
  enabled: true
  ttl: 2m

# Interactive editor
editor:
  simplify_step: 10             # Intensity change per simplify keypress (0-100)
  slow_command_threshold: 2s    # Log a warning for commands slower than this
  show_log: false               # Show the debug log pane

# Parameters sent before each grid generation (0 = backend default)
generation:
  max_colors: 64
  grid_width_cells: 130
  brightness: 1.0
  contrast: 1.0
  zoom: 1.0                     # 0.4 - 8

# Source image watcher (tramagrid watch, tramagrid edit --watch)
watch:
  debounce: 300ms

# Bundled fake backend (tramagrid fake-backend)
backend:
  addr: ":8000"
  allowed_origins: ["*"]

# Distributed tracing
tracing:
  enabled: false                # Enable/disable tracing (default: false)
  exporter: file                # Export backend: none, file, stdout, otlp
  # file_path: ~/.config/tramagrid/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: tramagrid
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
