package command

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Laloops/tramagrid/internal/api"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
	"github.com/Laloops/tramagrid/internal/tracing"
)

// Handler executes a command.
type Handler interface {
	Handle(ctx context.Context, cmd Command) (*Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd Command) (*Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies middlewares so the first one is outermost:
// Chain(h, a, b) == a(b(h)).
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Sender performs the round trip for a command.
type Sender interface {
	Do(ctx context.Context, route api.Route, sessionID string, payload, out any) error
}

// NewSendHandler is the innermost handler: one request, response body ignored.
func NewSendHandler(s Sender) Handler {
	return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
		if err := s.Do(ctx, cmd.Route(), cmd.SessionID(), cmd.Payload(), nil); err != nil {
			return newResult(cmd, OutcomeFailed, err), err
		}
		return newResult(cmd, OutcomeApplied, nil), nil
	})
}

// NewLoggingMiddleware logs every command once it finishes.
func NewLoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			start := time.Now()
			res, err := next.Handle(ctx, cmd)
			dur := time.Since(start)
			if res != nil {
				res.Duration = dur
			}

			fields := []any{
				"command_id", cmd.ID(),
				"command_type", cmd.Type().String(),
				"session", cmd.SessionID(),
				"duration", dur,
				"trace_id", tracing.TraceIDFromContext(ctx),
			}
			switch {
			case err == nil:
				log.Debug(log.CatCommand, "command applied", fields...)
			case errors.Is(err, session.ErrNoSession), errors.Is(err, ErrNoMergeSource):
				log.Debug(log.CatCommand, "command skipped", append(fields, "reason", err.Error())...)
			default:
				log.Warn(log.CatCommand, "command failed", append(fields, "error", err.Error())...)
			}
			return res, err
		})
	}
}

// NewTracingMiddleware wraps each command in a span. A nil tracer disables it.
func NewTracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		return func(next Handler) Handler { return next }
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			ctx, span := tracer.Start(ctx, tracing.SpanPrefixCommand+cmd.Type().String(),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String(tracing.AttrCommandID, cmd.ID()),
					attribute.String(tracing.AttrCommandType, cmd.Type().String()),
					attribute.String(tracing.AttrSessionID, cmd.SessionID()),
				),
			)
			defer span.End()

			res, err := next.Handle(ctx, cmd)
			if res != nil {
				span.SetAttributes(attribute.String(tracing.AttrCommandOutcome, res.Outcome.String()))
			}
			switch {
			case res != nil && res.Outcome == OutcomeSkipped:
				span.AddEvent(tracing.EventCommandSkipped)
				span.SetStatus(codes.Unset, "")
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			default:
				span.SetStatus(codes.Ok, "")
			}
			return res, err
		})
	}
}

// DefaultSlowThreshold is the default for NewSlowCommandMiddleware.
const DefaultSlowThreshold = 2 * time.Second

// NewSlowCommandMiddleware warns when a command takes longer than threshold.
// It never aborts the command; deadlines belong to the transport.
func NewSlowCommandMiddleware(threshold time.Duration) Middleware {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			start := time.Now()
			res, err := next.Handle(ctx, cmd)
			if d := time.Since(start); d > threshold {
				log.Warn(log.CatCommand, "command exceeded time threshold",
					"command_id", cmd.ID(),
					"command_type", cmd.Type().String(),
					"duration", d,
					"threshold", threshold)
			}
			return res, err
		})
	}
}

// NewSessionGuardMiddleware skips commands built without a session.
func NewSessionGuardMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			if cmd.SessionID() == "" {
				return newResult(cmd, OutcomeSkipped, session.ErrNoSession), session.ErrNoSession
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// NewValidationMiddleware rejects invalid commands before they are sent.
func NewValidationMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			if err := cmd.Validate(); err != nil {
				return newResult(cmd, OutcomeFailed, err), err
			}
			trace.SpanFromContext(ctx).AddEvent(tracing.EventCommandValidated)
			return next.Handle(ctx, cmd)
		})
	}
}

// NewRefreshMiddleware publishes one StateInvalidated after each applied
// command. Nothing is published for failures.
func NewRefreshMiddleware(bus *refresh.Bus) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*Result, error) {
			res, err := next.Handle(ctx, cmd)
			if err != nil || !res.Applied() {
				return res, err
			}
			bus.Publish(refresh.StateInvalidated{
				SessionID: cmd.SessionID(),
				Command:   cmd.Type().String(),
			})
			trace.SpanFromContext(ctx).AddEvent(tracing.EventRefreshPublished)
			return res, nil
		})
	}
}
