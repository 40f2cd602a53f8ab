package tracing

// Span attribute keys.
const (
	AttrCommandID      = "command.id"
	AttrCommandType    = "command.type"
	AttrCommandOutcome = "command.outcome"

	AttrSessionID = "session.id"
	AttrQuery     = "reader.query"
	AttrCacheHit  = "reader.cache_hit"

	AttrHTTPMethod     = "http.request.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrRequestID      = "http.request.id"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span name prefixes.
const (
	SpanPrefixCommand = "command."
	SpanPrefixReader  = "reader."
	SpanPrefixHTTP    = "http."
)

// Span event names.
const (
	EventCommandValidated = "command.validated"
	EventCommandSkipped   = "command.skipped"
	EventRefreshPublished = "refresh.published"
)
