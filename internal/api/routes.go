package api

import (
	"net/http"
	"net/url"
)

// Route is one backend endpoint. Session-scoped routes append the session id
// as the final path segment.
type Route struct {
	Name     string
	Method   string
	Prefix   string
	Mutating bool
	// Setup marks session creation and image upload. They change backend
	// state but are not editing commands and publish no refresh.
	Setup bool
}

// RouteKind buckets requests for the Monitor.
type RouteKind int

const (
	KindQuery RouteKind = iota
	KindCommand
	KindSetup
)

// Kind reports which Monitor bucket the route belongs to.
func (r Route) Kind() RouteKind {
	switch {
	case r.Setup:
		return KindSetup
	case r.Mutating:
		return KindCommand
	default:
		return KindQuery
	}
}

// Path returns the request path for sessionID.
func (r Route) Path(sessionID string) string {
	if sessionID == "" {
		return r.Prefix
	}
	return r.Prefix + "/" + url.PathEscape(sessionID)
}

var (
	RouteSession = Route{Name: "create_session", Method: http.MethodPost, Prefix: "/api/session", Setup: true}
	RouteUpload  = Route{Name: "upload", Method: http.MethodPost, Prefix: "/api/upload", Setup: true}

	RouteGenerate      = Route{Name: "generate_grid", Method: http.MethodPost, Prefix: "/api/generate", Mutating: true}
	RoutePaint         = Route{Name: "paint_cell", Method: http.MethodPost, Prefix: "/api/paint", Mutating: true}
	RouteUndo          = Route{Name: "undo", Method: http.MethodPost, Prefix: "/api/undo", Mutating: true}
	RouteMerge         = Route{Name: "merge_colors", Method: http.MethodPost, Prefix: "/api/merge", Mutating: true}
	RouteUpdateParams  = Route{Name: "update_params", Method: http.MethodPost, Prefix: "/api/params", Mutating: true}
	RouteReplaceColor  = Route{Name: "replace_color", Method: http.MethodPost, Prefix: "/api/color/replace", Mutating: true}
	RouteDeleteColor   = Route{Name: "delete_color", Method: http.MethodPost, Prefix: "/api/color/delete", Mutating: true}
	RouteSimplify      = Route{Name: "simplify_palette", Method: http.MethodPost, Prefix: "/api/simplify", Mutating: true}
	RouteSimplifyBW    = Route{Name: "simplify_bw", Method: http.MethodPost, Prefix: "/api/simplify-bw", Mutating: true}
	RouteRegionReplace = Route{Name: "replace_color_in_region", Method: http.MethodPost, Prefix: "/api/region/replace", Mutating: true}

	RoutePalette    = Route{Name: "palette", Method: http.MethodGet, Prefix: "/api/palette"}
	RouteGrid       = Route{Name: "grid", Method: http.MethodGet, Prefix: "/api/grid"}
	RouteParams     = Route{Name: "params", Method: http.MethodGet, Prefix: "/api/params"}
	RouteQueryPixel = Route{Name: "query_pixel", Method: http.MethodPost, Prefix: "/api/query-pixel"}
	RouteClusters   = Route{Name: "clusters", Method: http.MethodGet, Prefix: "/api/clusters"}
)
