package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Laloops/tramagrid/internal/app"
	"github.com/Laloops/tramagrid/internal/config"
	"github.com/Laloops/tramagrid/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply cannot leak into the editor's text input.
	_ = lipgloss.HasDarkBackground()
}

const (
	envPrefix       = "TRAMAGRID"
	localConfigPath = ".tramagrid/config.yaml"
	defaultLogPath  = "debug.log"
	configDirName   = "tramagrid"
	configFileName  = "config"
	configFileExt   = "yaml"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tramagrid",
	Short: "Session coordinator for the tramagrid pixel grid backend",
	Long: `tramagrid drives a pixel-art grid backend: it uploads an image, turns it
into a color grid and edits the palette (paint, merge, delete, replace,
simplify) while keeping every view in sync with the backend.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tramagrid/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (also TRAMAGRID_DEBUG)")
	rootCmd.PersistentFlags().String("api-url", "", "backend base URL")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per request timeout")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("api.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

// setDefaults registers every key so that environment overrides work for
// keys absent from the config file.
func setDefaults(v *viper.Viper) {
	d := config.Defaults()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.upload_timeout", d.API.UploadTimeout)
	v.SetDefault("api.monitor_window", d.API.MonitorWindow)
	v.SetDefault("api.monitor_interval", d.API.MonitorInterval)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("editor.simplify_step", d.Editor.SimplifyStep)
	v.SetDefault("editor.slow_command_threshold", d.Editor.SlowCommandThreshold)
	v.SetDefault("editor.show_log", d.Editor.ShowLog)
	v.SetDefault("generation.max_colors", d.Generation.MaxColors)
	v.SetDefault("generation.grid_width_cells", d.Generation.GridWidthCells)
	v.SetDefault("generation.brightness", d.Generation.Brightness)
	v.SetDefault("generation.contrast", d.Generation.Contrast)
	v.SetDefault("generation.zoom", d.Generation.Zoom)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("backend.addr", d.Backend.Addr)
	v.SetDefault("backend.allowed_origins", d.Backend.AllowedOrigins)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// configure registers defaults and TRAMAGRID_* environment overrides,
// e.g. TRAMAGRID_API_BASE_URL for api.base_url.
func configure(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	configure(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Lookup order:
		// 1. .tramagrid/config.yaml (current directory)
		// 2. ~/.config/tramagrid/config.yaml
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", configDirName))
			viper.SetConfigName(configFileName)
			viper.SetConfigType(configFileExt)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Nothing anywhere: write the defaults where the user will look.
			if writeErr := config.WriteDefaultConfig(localConfigPath); writeErr == nil {
				viper.SetConfigFile(localConfigPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configPath is where generation settings are saved.
func configPath() string {
	if p := viper.ConfigFileUsed(); p != "" {
		return p
	}
	return localConfigPath
}

// setupLogging enables the debug log when --debug or TRAMAGRID_DEBUG is set.
// TRAMAGRID_LOG overrides the file. tea routes Bubble Tea's own log output
// to the same file.
func setupLogging(prefix string, tea bool) (func(), error) {
	if !debugFlag && os.Getenv(envPrefix+"_DEBUG") == "" {
		return func() {}, nil
	}
	path := os.Getenv(envPrefix + "_LOG")
	if path == "" {
		path = defaultLogPath
	}
	var (
		cleanup func()
		err     error
	)
	if tea {
		cleanup, err = log.InitWithTeaLog(path, prefix)
	} else {
		cleanup, err = log.Init(path)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "tramagrid starting", "version", version, "log", path, "config", viper.ConfigFileUsed())
	return cleanup, nil
}

// newApp builds the services from the loaded config. The caller closes it.
func newApp(c config.Config) (*app.App, error) {
	return app.New(c, app.WithVersion(version))
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		log.ErrorErr(log.CatConfig, "shutdown", err)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
