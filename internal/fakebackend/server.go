// Package fakebackend is an in-memory implementation of the grid editing
// backend. It serves the same routes and JSON shapes as the real service and
// backs the integration tests and the fake-backend command.
package fakebackend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/tracing"
)

const (
	maxUploadBytes    = 32 << 20
	sessionNotFound   = "session not found"
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type (
	errorResponse struct {
		Detail string `json:"detail"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}

	sessionResponse struct {
		SessionID string `json:"session_id"`
	}

	gridResponse struct {
		ImageBase64 string `json:"image_base64"`
	}

	pixelResponse struct {
		Index *int `json:"index"`
	}

	clustersResponse struct {
		Clusters []Cluster `json:"clusters"`
	}

	colorReplaceRequest struct {
		Index  int    `json:"index"`
		NewHex string `json:"new_hex"`
	}

	colorDeleteRequest struct {
		Index int `json:"index"`
	}

	simplifyRequest struct {
		Intensity int `json:"intensity"`
	}

	paintRequest struct {
		X          int `json:"x"`
		Y          int `json:"y"`
		ColorIndex int `json:"color_index"`
	}

	mergeRequest struct {
		FromIndex int `json:"from_index"`
		ToIndex   int `json:"to_index"`
	}

	regionRequest struct {
		X         int `json:"x"`
		Y         int `json:"y"`
		W         int `json:"w"`
		H         int `json:"h"`
		FromIndex int `json:"from_index"`
		ToIndex   int `json:"to_index"`
	}

	pixelRequest struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
)

// Server routes backend requests to the session store.
type Server struct {
	store   *Store
	router  chi.Router
	tracer  trace.Tracer
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithTracer records a server span per request, joined to any incoming
// traceparent.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithAllowedOrigins sets the CORS origins. Defaults to "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithStore serves an existing store.
func WithStore(st *Store) Option {
	return func(s *Server) { s.store = st }
}

// New builds the router.
func New(opts ...Option) *Server {
	s := &Server{origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewStore()
	}
	s.router = s.routes()
	return s
}

// Store returns the session store.
func (s *Server) Store() *Store { return s.store }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.tracer != nil {
		r.Use(s.traceRequests)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "X-Request-ID", "Traceparent", "Tracestate"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)

		r.Post("/upload/{sid}", s.withSession(handleUpload))
		r.Post("/generate/{sid}", s.withSession(handleGenerate))
		r.Get("/palette/{sid}", s.withSession(handlePalette))
		r.Get("/grid/{sid}", s.withSession(handleGrid))
		r.Get("/params/{sid}", s.withSession(handleGetParams))
		r.Post("/params/{sid}", s.withSession(handleUpdateParams))
		r.Post("/color/replace/{sid}", s.withSession(handleReplaceColor))
		r.Post("/color/delete/{sid}", s.withSession(handleDeleteColor))
		r.Post("/simplify/{sid}", s.withSession(handleSimplify))
		r.Post("/simplify-bw/{sid}", s.withSession(handleSimplifyBW))
		r.Post("/paint/{sid}", s.withSession(handlePaint))
		r.Post("/query-pixel/{sid}", s.withSession(handleQueryPixel))
		r.Post("/undo/{sid}", s.withSession(handleUndo))
		r.Post("/merge/{sid}", s.withSession(handleMerge))
		r.Get("/clusters/{sid}", s.withSession(handleClusters))
		r.Post("/region/replace/{sid}", s.withSession(handleRegionReplace))
	})
	return r
}

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		sess, ok := s.store.Get(sid)
		if !ok {
			writeError(w, r, http.StatusNotFound, sessionNotFound)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.store.Create()
	log.Info(log.CatBackend, "session created", "session_id", id)
	render.JSON(w, r, sessionResponse{SessionID: id})
}

func handleUpload(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "multipart form required")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer f.Close()

	if err := sess.Load(f); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "image loaded")
}

func handleGenerate(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := sess.Generate(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "grid generated")
}

func handlePalette(w http.ResponseWriter, r *http.Request, sess *Session) {
	render.JSON(w, r, sess.PaletteInfo())
}

func handleGrid(w http.ResponseWriter, r *http.Request, sess *Session) {
	data, err := sess.GridPNG()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	render.JSON(w, r, gridResponse{ImageBase64: base64.StdEncoding.EncodeToString(data)})
}

func handleGetParams(w http.ResponseWriter, r *http.Request, sess *Session) {
	render.JSON(w, r, sess.Params())
}

func handleUpdateParams(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req ParamsUpdate
	if !decode(w, r, &req) {
		return
	}
	sess.UpdateParams(req)
	writeMessage(w, r, "params updated")
}

func handleReplaceColor(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req colorReplaceRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.ReplaceColor(req.Index, req.NewHex); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "color replaced")
}

func handleDeleteColor(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req colorDeleteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.DeleteColor(req.Index); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "color removed")
}

func handleSimplify(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req simplifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.Simplify(req.Intensity); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "palette simplified")
}

func handleSimplifyBW(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := sess.SimplifyBW(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "black and white simplification applied")
}

func handlePaint(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req paintRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.Paint(req.X, req.Y, req.ColorIndex); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "cell painted")
}

func handleQueryPixel(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req pixelRequest
	if !decode(w, r, &req) {
		return
	}
	var resp pixelResponse
	if idx, ok := sess.PixelIndex(req.X, req.Y); ok {
		resp.Index = &idx
	}
	render.JSON(w, r, resp)
}

func handleUndo(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := sess.Undo(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "undone")
}

func handleMerge(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req mergeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.Merge(req.FromIndex, req.ToIndex); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "colors merged")
}

func handleClusters(w http.ResponseWriter, r *http.Request, sess *Session) {
	radius := DefaultClusterRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusUnprocessableEntity, "radius must be a non-negative number")
			return
		}
		radius = v
	}
	render.JSON(w, r, clustersResponse{Clusters: sess.Clusters(radius)})
}

func handleRegionReplace(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req regionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.ReplaceInRegion(req.X, req.Y, req.W, req.H, req.FromIndex, req.ToIndex); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeMessage(w, r, "region recolored")
}

// decode reads a JSON body into v, answering 422 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, r *http.Request, msg string) {
	render.JSON(w, r, messageResponse{Message: msg})
}

// clientErrors are answered with 400.
var clientErrors = []error{
	ErrBadImage, ErrNoImage, ErrNotGenerated, ErrBadIndex, ErrLastColor,
	ErrOutOfBounds, ErrNothingToUndo, ErrSameColor, errBadHex,
}

// writeFailure maps session errors to 400 and anything else to 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			status = http.StatusBadRequest
			break
		}
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	log.Warn(log.CatBackend, "request failed",
		"path", r.URL.Path, "status", status, "detail", detail,
		"request_id", middleware.GetReqID(r.Context()))
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: detail})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug(log.CatBackend, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func (s *Server) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.ExtractHeaders(r.Context(), r.Header)
		ctx, span := s.tracer.Start(ctx, tracing.SpanPrefixHTTP+"server",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(tracing.AttrHTTPMethod, r.Method),
				attribute.String(tracing.AttrRequestID, middleware.GetReqID(r.Context())),
			))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			span.SetAttributes(attribute.String(tracing.AttrHTTPRoute, rctx.RoutePattern()))
		}
		span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, ww.Status()))
		if ww.Status() >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatBackend, "listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
