// Package api is the HTTP transport to the tramagrid backend. It knows the
// route table and the wire shapes but nothing about sessions or refresh.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/tracing"
)

const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultTimeout       = 15 * time.Second
	DefaultUploadTimeout = 60 * time.Second

	// HeaderRequestID correlates client and backend logs.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 64 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	UserAgent     string
}

// Client performs one HTTP round trip per call.
type Client struct {
	base          string
	timeout       time.Duration
	uploadTimeout time.Duration
	userAgent     string
	http          *http.Client
	tracer        trace.Tracer
	monitor       *Monitor
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracer sets the tracer used for client spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMonitor records latency of every request in m.
func WithMonitor(m *Monitor) Option {
	return func(c *Client) { c.monitor = m }
}

// New creates a Client. Zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		base:          strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		userAgent:     cfg.UserAgent,
		http:          &http.Client{},
		tracer:        otel.Tracer("github.com/Laloops/tramagrid/internal/api"),
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "tramagrid"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.base }

// Monitor returns the attached monitor, or nil.
func (c *Client) Monitor() *Monitor { return c.monitor }

// CreateSession asks the backend for a new session token.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Do(ctx, RouteSession, "", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("%s: %w: empty session_id", RouteSession.Name, ErrDecode)
	}
	return out.SessionID, nil
}

// Upload sends r as the multipart field "file" to the session's upload
// endpoint. The session id is sent as given, including "".
func (c *Client) Upload(ctx context.Context, sessionID, filename string, r io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}

	path := RouteUpload.Prefix + "/" + url.PathEscape(sessionID)
	return c.roundTrip(ctx, RouteUpload, path, c.uploadTimeout, mw.FormDataContentType(), &body, nil)
}

// Do sends payload (JSON-encoded, or no body when nil) to route for
// sessionID and decodes the response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, route Route, sessionID string, payload, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", route.Name, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.roundTrip(ctx, route, route.Path(sessionID), c.timeout, contentType, body, out)
}

func (c *Client) roundTrip(ctx context.Context, route Route, path string, timeout time.Duration, contentType string, body io.Reader, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, tracing.SpanPrefixHTTP+route.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, route.Method),
			attribute.String(tracing.AttrHTTPRoute, route.Prefix),
			attribute.String(tracing.AttrRequestID, requestID),
		),
	)
	start := time.Now()
	defer func() {
		dur := time.Since(start)
		if c.monitor != nil {
			c.monitor.Observe(route.Kind(), dur, err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Debug(log.CatTransport, "request failed",
				"route", route.Name, "request_id", requestID, "duration", dur, "error", err)
		} else {
			span.SetStatus(codes.Ok, "")
			log.Debug(log.CatTransport, "request done",
				"route", route.Name, "request_id", requestID, "duration", dur)
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, route.Method, c.base+path, body)
	if err != nil {
		return &TransportError{Route: route.Name, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Route: route.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Route: route.Name, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Route:      route.Name,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(data),
		}
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %w", route.Name, ErrDecode, err)
	}
	return nil
}

// IsTransient reports whether err is a transport failure or a 5xx status.
// The client never retries; callers may use this to word error messages.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 500
}
