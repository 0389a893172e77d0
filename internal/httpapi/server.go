package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/minisql/minisql/internal/facade"
)

// Server wires the façade to the HTTP surface described in spec.md §6.
type Server struct {
	facade         *facade.Facade
	corsOrigins    []string
	maxQueryLen    int
	defaultHistory int
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithCORSOrigins sets the allow-list consulted by corsMiddleware.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxQueryLen sets the byte cap enforced before a query is lexed.
func WithMaxQueryLen(n int) Option {
	return func(s *Server) { s.maxQueryLen = n }
}

// WithDefaultHistoryLimit sets the default "limit" used by GET
// /api/v1/history when the caller omits the query parameter.
func WithDefaultHistoryLimit(n int) Option {
	return func(s *Server) { s.defaultHistory = n }
}

// New returns a Server ready to be mounted via Routes.
func New(f *facade.Facade, opts ...Option) *Server {
	s := &Server{facade: f, corsOrigins: []string{"*"}, maxQueryLen: 65536, defaultHistory: 50}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the fully wrapped handler for the five endpoints in
// spec.md §6, ready to pass to http.ListenAndServe.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/execute", withMethod(http.MethodPost, s.handleExecute))
	mux.HandleFunc("/api/v1/history", withMethod(http.MethodGet, s.handleHistory))
	mux.HandleFunc("/api/v1/reset", withMethod(http.MethodPost, s.handleReset))
	mux.HandleFunc("/api/v1/tables", withMethod(http.MethodGet, s.handleTables))
	mux.HandleFunc("/health", withMethod(http.MethodGet, s.handleHealth))

	mw := chain(recoveryMiddleware, requestIDMiddleware, corsMiddleware(s.corsOrigins))
	return mw(mux)
}

// withMethod adapts a handler to only match a single HTTP method, mirroring
// the method-prefixed pattern matching introduced in Go 1.22's ServeMux.
func withMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
