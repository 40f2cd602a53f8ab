package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/Laloops/tramagrid/internal/api"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
)

type sentRequest struct {
	Route     api.Route
	SessionID string
	Payload   string
}

// recordingTransport records requests and optionally blocks inside Do.
type recordingTransport struct {
	mu        sync.Mutex
	sent      []sentRequest
	uploads   []string
	err       error
	newID     string
	createErr error

	started chan struct{}
	release chan struct{}
}

func (r *recordingTransport) Do(ctx context.Context, route api.Route, sid string, payload, out any) error {
	body := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = string(data)
	}

	r.mu.Lock()
	r.sent = append(r.sent, sentRequest{Route: route, SessionID: sid, Payload: body})
	err := r.err
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return err
}

func (r *recordingTransport) CreateSession(context.Context) (string, error) {
	return r.newID, r.createErr
}

func (r *recordingTransport) Upload(_ context.Context, sid, filename string, rd io.Reader) error {
	_, _ = io.Copy(io.Discard, rd)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, sid+":"+filename)
	return r.err
}

func (r *recordingTransport) requests() []sentRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentRequest(nil), r.sent...)
}

func newTestDispatcher(t *testing.T, sessionID string, tr *recordingTransport) (*Dispatcher, *refresh.Bus) {
	t.Helper()
	h := session.New()
	h.SetID(sessionID)
	bus := refresh.NewBus()
	t.Cleanup(bus.Close)
	return NewDispatcher(h, tr, bus), bus
}

func published(bus *refresh.Bus) uint64 {
	n, _ := bus.Stats()
	return n
}

// mutation is one Dispatcher operation with fixed arguments.
type mutation struct {
	name string
	run  func(ctx context.Context, d *Dispatcher) (*Result, error)
}

func mutations() []mutation {
	return []mutation{
		{"generate", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.GenerateGrid(ctx) }},
		{"paint", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.PaintCell(ctx, 3, 4) }},
		{"undo", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.UndoLastAction(ctx) }},
		{"merge", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.MergeColors(ctx, 1, 2) }},
		{"params", func(ctx context.Context, d *Dispatcher) (*Result, error) {
			return d.UpdateParams(ctx, Params{"zoom": 2.0})
		}},
		{"replace", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.ReplaceColor(ctx, 0, "#ff0000") }},
		{"delete", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.DeleteColor(ctx, 2) }},
		{"simplify", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.SimplifyPalette(ctx, 40) }},
		{"simplify_bw", func(ctx context.Context, d *Dispatcher) (*Result, error) { return d.SimplifyBW(ctx) }},
		{"region", func(ctx context.Context, d *Dispatcher) (*Result, error) {
			return d.ReplaceColorInRegion(ctx, 0, 0, 5, 5, 1, 2)
		}},
	}
}

func TestDispatcher_Payloads(t *testing.T) {
	tests := []struct {
		name    string
		run     func(ctx context.Context, d *Dispatcher) (*Result, error)
		path    string
		payload string
	}{
		{"generate", mutations()[0].run, "/api/generate/s1", ""},
		{"paint", mutations()[1].run, "/api/paint/s1", `{"x":3,"y":4,"color_index":0}`},
		{"undo", mutations()[2].run, "/api/undo/s1", ""},
		{"merge", mutations()[3].run, "/api/merge/s1", `{"from_index":1,"to_index":2}`},
		{"params", mutations()[4].run, "/api/params/s1", `{"zoom":2}`},
		{"replace", mutations()[5].run, "/api/color/replace/s1", `{"index":0,"new_hex":"#ff0000"}`},
		{"delete", mutations()[6].run, "/api/color/delete/s1", `{"index":2}`},
		{"simplify", mutations()[7].run, "/api/simplify/s1", `{"intensity":40}`},
		{"simplify_bw", mutations()[8].run, "/api/simplify-bw/s1", ""},
		{"region", mutations()[9].run, "/api/region/replace/s1", `{"x":0,"y":0,"w":5,"h":5,"from_index":1,"to_index":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &recordingTransport{}
			d, bus := newTestDispatcher(t, "s1", tr)

			res, err := tt.run(context.Background(), d)
			require.NoError(t, err)
			require.True(t, res.Applied())
			require.Equal(t, "s1", res.SessionID)

			reqs := tr.requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.path, reqs[0].Route.Path(reqs[0].SessionID))
			assert.Equal(t, "POST", reqs[0].Route.Method)
			if tt.payload == "" {
				assert.Empty(t, reqs[0].Payload)
			} else {
				assert.JSONEq(t, tt.payload, reqs[0].Payload)
			}
			assert.Equal(t, uint64(1), published(bus))
		})
	}
}

func TestDispatcher_NoSessionNeverSends(t *testing.T) {
	ops := mutations()
	rapid.Check(t, func(rt *rapid.T) {
		op := rapid.SampledFrom(ops).Draw(rt, "op")

		tr := &recordingTransport{}
		h := session.New()
		h.SetActiveColorIndex(rapid.IntRange(-5, 50).Draw(rt, "active"))
		bus := refresh.NewBus()
		defer bus.Close()
		d := NewDispatcher(h, tr, bus)

		res, err := op.run(context.Background(), d)

		if !errors.Is(err, session.ErrNoSession) {
			rt.Fatalf("%s: expected ErrNoSession, got %v", op.name, err)
		}
		if res == nil || res.Outcome != OutcomeSkipped {
			rt.Fatalf("%s: expected skipped result, got %+v", op.name, res)
		}
		if n := len(tr.requests()); n != 0 {
			rt.Fatalf("%s: %d requests sent without a session", op.name, n)
		}
		if n := published(bus); n != 0 {
			rt.Fatalf("%s: %d refresh events without a session", op.name, n)
		}
	})
}

func TestDispatcher_BroadcastIffSuccess(t *testing.T) {
	ops := mutations()
	rapid.Check(t, func(rt *rapid.T) {
		op := rapid.SampledFrom(ops).Draw(rt, "op")
		fail := rapid.Bool().Draw(rt, "fail")

		tr := &recordingTransport{}
		if fail {
			tr.err = &api.StatusError{Route: op.name, StatusCode: 500}
		}
		h := session.New()
		h.SetID("s1")
		bus := refresh.NewBus()
		defer bus.Close()
		d := NewDispatcher(h, tr, bus)

		res, err := op.run(context.Background(), d)

		want := uint64(1)
		if fail {
			want = 0
			if err == nil || res.Outcome != OutcomeFailed {
				rt.Fatalf("%s: expected failure, got %+v / %v", op.name, res, err)
			}
		} else if err != nil || !res.Applied() {
			rt.Fatalf("%s: expected success, got %+v / %v", op.name, res, err)
		}
		if got := published(bus); got != want {
			rt.Fatalf("%s: published %d events, want %d", op.name, got, want)
		}
		if n := len(tr.requests()); n != 1 {
			rt.Fatalf("%s: %d requests, want 1", op.name, n)
		}
	})
}

func TestDispatcher_BroadcastAfterResponse(t *testing.T) {
	tr := &recordingTransport{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d, bus := newTestDispatcher(t, "s1", tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := bus.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.UndoLastAction(ctx)
	}()

	<-tr.started
	select {
	case <-events:
		t.Fatal("refresh published before the response arrived")
	case <-time.After(20 * time.Millisecond):
	}

	close(tr.release)
	<-done

	select {
	case ev := <-events:
		require.Equal(t, "undo", ev.Payload.Command)
	case <-time.After(time.Second):
		t.Fatal("no refresh after response")
	}
}

func TestDispatcher_PaintUsesActiveColorAtCallTime(t *testing.T) {
	tr := &recordingTransport{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d, _ := newTestDispatcher(t, "s1", tr)
	d.Session().SetActiveColorIndex(3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.PaintCell(context.Background(), 1, 1)
	}()

	<-tr.started
	d.Session().SetActiveColorIndex(7)
	close(tr.release)
	<-done

	reqs := tr.requests()
	require.Len(t, reqs, 1)
	require.JSONEq(t, `{"x":1,"y":1,"color_index":3}`, reqs[0].Payload)
}

func TestDispatcher_PaintPayloadProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := &recordingTransport{}
		h := session.New()
		h.SetID("s1")
		bus := refresh.NewBus()
		defer bus.Close()
		d := NewDispatcher(h, tr, bus)

		colors := rapid.SliceOfN(rapid.IntRange(0, 63), 1, 10).Draw(rt, "colors")
		for _, c := range colors {
			h.SetActiveColorIndex(c)
			_, err := d.PaintCell(context.Background(), c, c)
			if err != nil {
				rt.Fatal(err)
			}
		}

		reqs := tr.requests()
		for i, c := range colors {
			var body struct {
				ColorIndex int `json:"color_index"`
			}
			if err := json.Unmarshal([]byte(reqs[i].Payload), &body); err != nil {
				rt.Fatal(err)
			}
			if body.ColorIndex != c {
				rt.Fatalf("request %d: color_index %d, want %d", i, body.ColorIndex, c)
			}
		}
	})
}

func TestDispatcher_ReplaceColorValidatesHex(t *testing.T) {
	for _, hex := range []string{"ff0000", "#ff00", "#gg0000", "#ff00001", ""} {
		t.Run(hex, func(t *testing.T) {
			tr := &recordingTransport{}
			d, bus := newTestDispatcher(t, "s1", tr)

			res, err := d.ReplaceColor(context.Background(), 1, hex)
			require.ErrorIs(t, err, ErrInvalidHex)
			require.Equal(t, OutcomeFailed, res.Outcome)
			require.Empty(t, tr.requests())
			require.Zero(t, published(bus))
		})
	}
}

func TestDispatcher_RegionOutsideGridIsSent(t *testing.T) {
	tr := &recordingTransport{}
	d, bus := newTestDispatcher(t, "s1", tr)

	res, err := d.ReplaceColorInRegion(context.Background(), 10_000, -50, 3, 3, 0, 1)
	require.NoError(t, err)
	require.True(t, res.Applied())
	require.Len(t, tr.requests(), 1)
	require.JSONEq(t, `{"x":10000,"y":-50,"w":3,"h":3,"from_index":0,"to_index":1}`, tr.requests()[0].Payload)
	require.Equal(t, uint64(1), published(bus))
}

func TestDispatcher_UpdateParamsNilSendsEmptyObject(t *testing.T) {
	tr := &recordingTransport{}
	d, _ := newTestDispatcher(t, "s1", tr)

	_, err := d.UpdateParams(context.Background(), nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, tr.requests()[0].Payload)
}

func TestDispatcher_UpdateGridParams(t *testing.T) {
	tr := &recordingTransport{}
	d, _ := newTestDispatcher(t, "s1", tr)

	_, err := d.UpdateGridParams(context.Background(), GridParams{MaxColors: Int(12), Zoom: Float(1.5)})
	require.NoError(t, err)
	require.JSONEq(t, `{"max_colors":12,"zoom":1.5}`, tr.requests()[0].Payload)
}

func TestDispatcher_CompleteMerge(t *testing.T) {
	tr := &recordingTransport{}
	d, bus := newTestDispatcher(t, "s1", tr)

	res, err := d.CompleteMerge(context.Background(), 4)
	require.ErrorIs(t, err, ErrNoMergeSource)
	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.Empty(t, tr.requests())

	d.Session().PickMergeSource(2)
	res, err = d.CompleteMerge(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, res.Applied())
	require.JSONEq(t, `{"from_index":2,"to_index":4}`, tr.requests()[0].Payload)
	require.Equal(t, uint64(1), published(bus))

	src, ok := d.Session().MergeSource()
	require.True(t, ok)
	require.Equal(t, 2, src)
}

func TestDispatcher_CreateSession(t *testing.T) {
	tr := &recordingTransport{newID: "fresh"}
	d, bus := newTestDispatcher(t, "old", tr)

	id, err := d.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", id)
	require.Equal(t, "fresh", d.Session().ID())
	require.Zero(t, published(bus))
}

func TestDispatcher_CreateSessionFailureKeepsPrevious(t *testing.T) {
	tr := &recordingTransport{createErr: &api.TransportError{Route: "create_session", Err: errors.New("refused")}}
	d, _ := newTestDispatcher(t, "old", tr)

	_, err := d.CreateSession(context.Background())
	require.ErrorIs(t, err, api.ErrTransport)
	require.Equal(t, "old", d.Session().ID())
}

func TestDispatcher_UploadWithoutSessionReachesBackend(t *testing.T) {
	tr := &recordingTransport{err: &api.StatusError{Route: "upload", StatusCode: 404, Detail: "Not Found"}}
	d, bus := newTestDispatcher(t, "", tr)

	err := d.UploadImage(context.Background(), "cat.png", strings.NewReader("img"))
	require.True(t, api.IsNotFound(err))
	require.Equal(t, []string{":cat.png"}, tr.uploads)
	require.Zero(t, published(bus))
}

func TestDispatcher_UploadFileMissing(t *testing.T) {
	tr := &recordingTransport{}
	d, _ := newTestDispatcher(t, "s1", tr)

	err := d.UploadFile(context.Background(), "/does/not/exist.png")
	require.Error(t, err)
	require.Empty(t, tr.uploads)
}

func TestDispatcher_TracingSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	tr := &recordingTransport{}
	h := session.New()
	bus := refresh.NewBus()
	defer bus.Close()
	d := NewDispatcher(h, tr, bus, WithTracer(tp.Tracer("test")))

	_, _ = d.SimplifyBW(context.Background())
	h.SetID("s1")
	tr.err = errors.New("boom")
	_, _ = d.DeleteColor(context.Background(), 1)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "command.simplify_bw", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, "command.delete_color", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}
	h := Chain(HandlerFunc(func(context.Context, Command) (*Result, error) {
		order = append(order, "handler")
		return nil, nil
	}), mw("a"), mw("b"))

	_, _ = h.Handle(context.Background(), NewUndo("s1"))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestOutcome_String(t *testing.T) {
	require.Equal(t, "skipped", OutcomeSkipped.String())
	require.Equal(t, "applied", OutcomeApplied.String())
	require.Equal(t, "failed", OutcomeFailed.String())
	require.Equal(t, "unknown", Outcome(9).String())
}

func TestGridParams_AsParams(t *testing.T) {
	require.True(t, GridParams{}.IsZero())
	p := GridParams{
		MaxColors:      Int(8),
		GridWidthCells: Int(100),
		Brightness:     Float(1.1),
		Contrast:       Float(0.9),
		Zoom:           Float(2),
		HighlightedRow: Int(-1),
	}
	require.Equal(t, Params{
		"max_colors":       8,
		"grid_width_cells": 100,
		"brightness":       1.1,
		"contrast":         0.9,
		"zoom":             2.0,
		"highlighted_row":  -1,
	}, p.AsParams())
}
