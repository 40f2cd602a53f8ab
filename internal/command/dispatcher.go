package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/api"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
)

// Transport is the subset of api.Client the dispatcher needs.
type Transport interface {
	Sender
	CreateSession(ctx context.Context) (string, error)
	Upload(ctx context.Context, sessionID, filename string, r io.Reader) error
}

// Dispatcher exposes one method per editing intent.
type Dispatcher struct {
	handle    *session.Handle
	transport Transport
	bus       *refresh.Bus
	chain     Handler

	tracer        trace.Tracer
	slowThreshold time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer enables a span per command.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithSlowThreshold sets the slow-command warning threshold.
func WithSlowThreshold(threshold time.Duration) Option {
	return func(d *Dispatcher) { d.slowThreshold = threshold }
}

// NewDispatcher wires the middleware chain around transport.
func NewDispatcher(h *session.Handle, t Transport, bus *refresh.Bus, opts ...Option) *Dispatcher {
	d := &Dispatcher{handle: h, transport: t, bus: bus}
	for _, opt := range opts {
		opt(d)
	}
	d.chain = Chain(NewSendHandler(t),
		NewLoggingMiddleware(),
		NewTracingMiddleware(d.tracer),
		NewSlowCommandMiddleware(d.slowThreshold),
		NewSessionGuardMiddleware(),
		NewValidationMiddleware(),
		NewRefreshMiddleware(bus),
	)
	return d
}

// Session returns the handle the dispatcher reads from.
func (d *Dispatcher) Session() *session.Handle { return d.handle }

// Execute runs an already built command through the chain.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return d.chain.Handle(ctx, cmd)
}

// CreateSession obtains a new session and makes it current. On failure the
// previous session stays current.
func (d *Dispatcher) CreateSession(ctx context.Context) (string, error) {
	id, err := d.transport.CreateSession(ctx)
	if err != nil {
		log.ErrorErr(log.CatSession, "create session failed", err)
		return "", fmt.Errorf("create session: %w", err)
	}
	prev := d.handle.ID()
	d.handle.SetID(id)
	log.Info(log.CatSession, "session created", "session", id, "replaced", prev)
	return id, nil
}

// UploadImage sends r as the session's source image. The session id is not
// checked locally; without one the backend's rejection is returned. No
// refresh is published.
func (d *Dispatcher) UploadImage(ctx context.Context, filename string, r io.Reader) error {
	sid := d.handle.ID()
	if err := d.transport.Upload(ctx, sid, filename, r); err != nil {
		log.ErrorErr(log.CatSession, "upload failed", err, "session", sid, "file", filename)
		return fmt.Errorf("upload %s: %w", filename, err)
	}
	log.Info(log.CatSession, "image uploaded", "session", sid, "file", filename)
	return nil
}

// UploadFile opens path and uploads it.
func (d *Dispatcher) UploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: user-chosen image path
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return d.UploadImage(ctx, path, f)
}

func (d *Dispatcher) GenerateGrid(ctx context.Context) (*Result, error) {
	return d.Execute(ctx, NewGenerateGrid(d.handle.ID()))
}

// PaintCell paints (x, y) with the active color index as of this call.
func (d *Dispatcher) PaintCell(ctx context.Context, x, y int) (*Result, error) {
	snap := d.handle.Snapshot()
	return d.Execute(ctx, NewPaintCell(snap.ID, x, y, snap.ActiveColorIndex))
}

func (d *Dispatcher) UndoLastAction(ctx context.Context) (*Result, error) {
	return d.Execute(ctx, NewUndo(d.handle.ID()))
}

func (d *Dispatcher) MergeColors(ctx context.Context, from, to int) (*Result, error) {
	return d.Execute(ctx, NewMergeColors(d.handle.ID(), from, to))
}

// CompleteMerge merges the picked source into to. The source stays picked.
func (d *Dispatcher) CompleteMerge(ctx context.Context, to int) (*Result, error) {
	snap := d.handle.Snapshot()
	if !snap.HasMergeSource {
		cmd := NewMergeColors(snap.ID, 0, to)
		log.Debug(log.CatCommand, "merge skipped", "reason", ErrNoMergeSource.Error())
		return newResult(cmd, OutcomeSkipped, ErrNoMergeSource), ErrNoMergeSource
	}
	return d.Execute(ctx, NewMergeColors(snap.ID, snap.MergeSource, to))
}

// UpdateParams forwards params to the backend unchanged.
func (d *Dispatcher) UpdateParams(ctx context.Context, params Params) (*Result, error) {
	return d.Execute(ctx, NewUpdateParams(d.handle.ID(), params))
}

// UpdateGridParams sends the set fields of p.
func (d *Dispatcher) UpdateGridParams(ctx context.Context, p GridParams) (*Result, error) {
	return d.UpdateParams(ctx, p.AsParams())
}

func (d *Dispatcher) ReplaceColor(ctx context.Context, index int, newHex string) (*Result, error) {
	return d.Execute(ctx, NewReplaceColor(d.handle.ID(), index, newHex))
}

func (d *Dispatcher) DeleteColor(ctx context.Context, index int) (*Result, error) {
	return d.Execute(ctx, NewDeleteColor(d.handle.ID(), index))
}

func (d *Dispatcher) SimplifyPalette(ctx context.Context, intensity int) (*Result, error) {
	return d.Execute(ctx, NewSimplifyPalette(d.handle.ID(), intensity))
}

func (d *Dispatcher) SimplifyBW(ctx context.Context) (*Result, error) {
	return d.Execute(ctx, NewSimplifyBW(d.handle.ID()))
}

// ReplaceColorInRegion is sent even when the rectangle lies outside the grid.
func (d *Dispatcher) ReplaceColorInRegion(ctx context.Context, x, y, w, h, from, to int) (*Result, error) {
	return d.Execute(ctx, NewReplaceColorInRegion(d.handle.ID(), Region{X: x, Y: y, W: w, H: h}, from, to))
}

var _ Transport = (*api.Client)(nil)
