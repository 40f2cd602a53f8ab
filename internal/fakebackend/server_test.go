package fakebackend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	srv := httptest.NewServer(New(opts...))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

func (ts *testServer) do(method, path, contentType string, body io.Reader) (int, []byte) {
	ts.t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	require.NoError(ts.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp.StatusCode, data
}

func (ts *testServer) postJSON(path string, v any) (int, []byte) {
	ts.t.Helper()
	body, err := json.Marshal(v)
	require.NoError(ts.t, err)
	return ts.do(http.MethodPost, path, "application/json", bytes.NewReader(body))
}

func (ts *testServer) get(path string) (int, []byte) {
	ts.t.Helper()
	return ts.do(http.MethodGet, path, "", nil)
}

func (ts *testServer) createSession() string {
	ts.t.Helper()
	code, body := ts.do(http.MethodPost, "/api/session", "", nil)
	require.Equal(ts.t, http.StatusOK, code)
	var resp sessionResponse
	require.NoError(ts.t, json.Unmarshal(body, &resp))
	require.NotEmpty(ts.t, resp.SessionID)
	return resp.SessionID
}

func (ts *testServer) upload(sid string, data []byte) (int, []byte) {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "source.png")
	require.NoError(ts.t, err)
	_, err = fw.Write(data)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())
	return ts.do(http.MethodPost, "/api/upload/"+sid, mw.FormDataContentType(), &buf)
}

// ready returns a session with a generated 16x4 grid of four colors.
func (ts *testServer) ready() string {
	ts.t.Helper()
	sid := ts.createSession()
	code, _ := ts.upload(sid, encodePNG(ts.t, blocksImage(fourColors...)))
	require.Equal(ts.t, http.StatusOK, code)
	code, _ = ts.postJSON("/api/params/"+sid, map[string]any{"grid_width_cells": 16})
	require.Equal(ts.t, http.StatusOK, code)
	code, _ = ts.do(http.MethodPost, "/api/generate/"+sid, "", nil)
	require.Equal(ts.t, http.StatusOK, code)
	return sid
}

func (ts *testServer) palette(sid string) []PaletteEntry {
	ts.t.Helper()
	code, body := ts.get("/api/palette/" + sid)
	require.Equal(ts.t, http.StatusOK, code)
	var entries []PaletteEntry
	require.NoError(ts.t, json.Unmarshal(body, &entries))
	return entries
}

func detailOf(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Detail
}

func TestUnknownSession_404(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/palette/nope"},
		{http.MethodGet, "/api/grid/nope"},
		{http.MethodGet, "/api/params/nope"},
		{http.MethodGet, "/api/clusters/nope"},
		{http.MethodPost, "/api/generate/nope"},
		{http.MethodPost, "/api/undo/nope"},
		{http.MethodPost, "/api/simplify-bw/nope"},
	}
	for _, p := range paths {
		code, body := ts.do(p.method, p.path, "", nil)
		require.Equal(t, http.StatusNotFound, code, p.path)
		require.Equal(t, sessionNotFound, detailOf(t, body), p.path)
	}
}

func TestCreateSession_Distinct(t *testing.T) {
	ts := newTestServer(t)
	a, b := ts.createSession(), ts.createSession()
	require.NotEqual(t, a, b)
}

func TestUploadGeneratePalette(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	require.Empty(t, ts.palette(sid))

	sid = ts.ready()
	entries := ts.palette(sid)
	require.Len(t, entries, 4)
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	code, body := ts.upload(sid, []byte("garbage"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, detailOf(t, body), "unsupported image")

	code, _ = ts.postJSON("/api/upload/"+sid, map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = ts.do(http.MethodPost, "/api/generate/"+sid, "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, ErrNoImage.Error(), detailOf(t, body))
}

func TestGrid_ReturnsBase64PNG(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	code, body := ts.get("/api/grid/" + sid)
	require.Equal(t, http.StatusOK, code)

	var resp gridResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, strings.HasPrefix(resp.ImageBase64, "iVBOR"))

	raw, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
}

func TestParams_RoundTrip(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	code, _ := ts.postJSON("/api/params/"+sid, map[string]any{"zoom": 99, "max_colors": 12})
	require.Equal(t, http.StatusOK, code)

	code, body := ts.get("/api/params/" + sid)
	require.Equal(t, http.StatusOK, code)
	var p Params
	require.NoError(t, json.Unmarshal(body, &p))
	require.Equal(t, MaxZoom, p.Zoom)
	require.Equal(t, 12, p.MaxColors)
	require.Equal(t, DefaultGridWidthCells, p.GridWidthCells)
}

func TestInvalidBody_422(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.createSession()

	code, body := ts.do(http.MethodPost, "/api/color/delete/"+sid, "application/json", strings.NewReader("{"))
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, detailOf(t, body), "invalid body")
}

func TestDeleteColor_OneFewer(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	code, _ := ts.postJSON("/api/color/delete/"+sid, map[string]int{"index": 2})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, ts.palette(sid), 3)

	code, body := ts.postJSON("/api/color/delete/"+sid, map[string]int{"index": 99})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, detailOf(t, body), "invalid color index")
}

func TestPaintQueryUndo(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	pixel := func(x, y int) *int {
		code, body := ts.postJSON("/api/query-pixel/"+sid, map[string]int{"x": x, "y": y})
		require.Equal(t, http.StatusOK, code)
		var resp pixelResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		return resp.Index
	}

	before := pixel(0, 0)
	target := pixel(15, 0)
	require.NotNil(t, before)
	require.NotNil(t, target)
	require.Nil(t, pixel(500, 500))

	code, _ := ts.postJSON("/api/paint/"+sid, map[string]int{"x": 0, "y": 0, "color_index": *target})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, *target, *pixel(0, 0))

	code, _ = ts.do(http.MethodPost, "/api/undo/"+sid, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, *before, *pixel(0, 0))

	code, body := ts.do(http.MethodPost, "/api/undo/"+sid, "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, ErrNothingToUndo.Error(), detailOf(t, body))
}

func TestMergeReplaceSimplify(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	code, _ := ts.postJSON("/api/merge/"+sid, map[string]int{"from_index": 0, "to_index": 1})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, ts.palette(sid), 3)

	code, _ = ts.postJSON("/api/color/replace/"+sid, map[string]any{"index": 0, "new_hex": "#abcdef"})
	require.Equal(t, http.StatusOK, code)
	found := false
	for _, e := range ts.palette(sid) {
		found = found || e.Hex == "#abcdef"
	}
	require.True(t, found)

	code, _ = ts.postJSON("/api/color/replace/"+sid, map[string]any{"index": 0, "new_hex": "nope"})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.postJSON("/api/simplify/"+sid, map[string]int{"intensity": 100})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, ts.palette(sid), 1)

	code, _ = ts.do(http.MethodPost, "/api/simplify-bw/"+sid, "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestRegionReplace_OutsideAccepted(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	code, _ := ts.postJSON("/api/region/replace/"+sid, map[string]int{
		"x": 1000, "y": 1000, "w": 10, "h": 10, "from_index": 0, "to_index": 1,
	})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, ts.palette(sid), 4)
}

func TestClusters(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.ready()

	code, body := ts.get("/api/clusters/" + sid)
	require.Equal(t, http.StatusOK, code)
	var resp clustersResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Clusters)
	require.Empty(t, resp.Clusters)

	code, body = ts.get("/api/clusters/" + sid + "?radius=500")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Clusters, 1)
	require.Len(t, resp.Clusters[0].Indices, 4)

	code, _ = ts.get("/api/clusters/" + sid + "?radius=abc")
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/session", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTracing_ServerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	ts := newTestServer(t, WithTracer(tp.Tracer("fakebackend")))
	ts.get("/api/palette/missing")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "http.server", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "/api/palette/{sid}", attrs["http.route"])
	require.EqualValues(t, http.StatusNotFound, attrs["http.response.status_code"])
}
