// Package app wires the session coordinator: API client, session handle,
// refresh bus, command dispatcher and readers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/api"
	"github.com/Laloops/tramagrid/internal/command"
	"github.com/Laloops/tramagrid/internal/config"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/readers"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
	"github.com/Laloops/tramagrid/internal/tracing"
	"github.com/Laloops/tramagrid/internal/watcher"
)

// App owns the shared services of one client process.
type App struct {
	Config     config.Config
	Session    *session.Handle
	Bus        *refresh.Bus
	Client     *api.Client
	Monitor    *api.Monitor
	Dispatcher *command.Dispatcher
	Readers    *readers.Readers

	tracing *tracing.Provider
}

type options struct {
	httpClient *http.Client
	version    string
}

// Option customizes New.
type Option func(*options)

// WithHTTPClient replaces the HTTP client used for backend calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithVersion is reported in the User-Agent header.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// New validates cfg and builds the services.
// An enabled file exporter without a path writes to DefaultTracesFilePath.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if tc := &cfg.Tracing; tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	tracer := provider.Tracer()

	monitor := api.NewMonitor(cfg.API.MonitorWindow)
	if cfg.API.MonitorInterval > 0 {
		monitor.Start(cfg.API.MonitorInterval)
	}

	userAgent := "tramagrid"
	if o.version != "" {
		userAgent += "/" + o.version
	}
	clientOpts := []api.Option{api.WithTracer(tracer), api.WithMonitor(monitor)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	client := api.New(api.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		UploadTimeout: cfg.API.UploadTimeout,
		UserAgent:     userAgent,
	}, clientOpts...)

	handle := session.New()
	bus := refresh.NewBus()

	dispatcher := command.NewDispatcher(handle, client, bus,
		command.WithTracer(tracer),
		command.WithSlowThreshold(cfg.Editor.SlowCommandThreshold),
	)

	readerOpts := []readers.Option{readers.WithTracer(tracer)}
	if cfg.Cache.Enabled {
		readerOpts = append(readerOpts, readers.WithCache(cfg.Cache.TTL))
	}
	rd := readers.New(handle, client, readerOpts...)
	rd.InvalidateOn(bus)

	log.Info(log.CatConfig, "app ready",
		"api", client.BaseURL(),
		"cache", cfg.Cache.Enabled,
		"tracing", provider.Enabled())

	return &App{
		Config:     cfg,
		Session:    handle,
		Bus:        bus,
		Client:     client,
		Monitor:    monitor,
		Dispatcher: dispatcher,
		Readers:    rd,
		tracing:    provider,
	}, nil
}

// Tracer returns the application tracer. It is a no-op when tracing is off.
func (a *App) Tracer() trace.Tracer { return a.tracing.Tracer() }

// GridParams converts the configured generation preferences. Zero fields are
// left unset.
func GridParams(g config.GenerationConfig) command.GridParams {
	var p command.GridParams
	if g.MaxColors > 0 {
		p.MaxColors = command.Int(g.MaxColors)
	}
	if g.GridWidthCells > 0 {
		p.GridWidthCells = command.Int(g.GridWidthCells)
	}
	if g.Brightness > 0 {
		p.Brightness = command.Float(g.Brightness)
	}
	if g.Contrast > 0 {
		p.Contrast = command.Float(g.Contrast)
	}
	if g.Zoom > 0 {
		p.Zoom = command.Float(g.Zoom)
	}
	return p
}

// Open starts a new session on path: create, upload, then Regenerate.
func (a *App) Open(ctx context.Context, path string) error {
	if _, err := a.Dispatcher.CreateSession(ctx); err != nil {
		return err
	}
	if err := a.Dispatcher.UploadFile(ctx, path); err != nil {
		return err
	}
	return a.Regenerate(ctx)
}

// Regenerate sends the configured generation params, if any, and regenerates
// the grid.
func (a *App) Regenerate(ctx context.Context) error {
	if p := GridParams(a.Config.Generation); !p.IsZero() {
		if _, err := a.Dispatcher.UpdateGridParams(ctx, p); err != nil {
			return err
		}
	}
	_, err := a.Dispatcher.GenerateGrid(ctx)
	return err
}

// Reupload replaces the source image of the current session and regenerates.
func (a *App) Reupload(ctx context.Context, path string) error {
	if err := a.Dispatcher.UploadFile(ctx, path); err != nil {
		return err
	}
	return a.Regenerate(ctx)
}

// WatchSource re-uploads path whenever it changes until ctx ends. onReload,
// if set, receives the outcome of every reload.
func (a *App) WatchSource(ctx context.Context, path string, onReload func(error)) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Config{Path: path, Debounce: a.Config.Watch.Debounce})
	if err != nil {
		return nil, err
	}
	events := w.Subscribe(ctx)
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}

	go func() {
		defer func() { _ = w.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				log.Info(log.CatWatcher, "source changed", "path", ev.Payload)
				err := a.Reupload(ctx, ev.Payload)
				if err != nil {
					log.ErrorErr(log.CatWatcher, "reload failed", err, "path", ev.Payload)
				}
				if onReload != nil {
					onReload(err)
				}
			}
		}
	}()
	return w, nil
}

// Close stops background work and flushes traces.
func (a *App) Close(ctx context.Context) error {
	a.Monitor.Stop()
	a.Bus.Close()
	if err := a.tracing.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("tracing shutdown: %w", err)
	}
	return nil
}
