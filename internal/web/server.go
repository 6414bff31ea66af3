// Package web serves the descriptor registry over HTTP, streams catalog
// events over WebSocket and exports Prometheus metrics.
package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/script"
	"uzigbee-devices/internal/zcl"
)

// ReportSource provides the latest interview checks of live devices.
type ReportSource interface {
	Reports() []interview.Report
}

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithScripts enables the script endpoints.
func WithScripts(engine *script.Engine) ServerOption {
	return func(s *Server) {
		s.scripts = engine
	}
}

// WithReports exposes interview checks from a running bridge.
func WithReports(src ReportSource) ServerOption {
	return func(s *Server) {
		s.reports = src
	}
}

// WithRegistry sets the cluster registry used for /api/clusters and the
// device file export. Defaults to the standard clusters.
func WithRegistry(r *zcl.Registry) ServerOption {
	return func(s *Server) {
		s.registry = r
	}
}

// WithVersion sets the application version string.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP API.
type Server struct {
	catalog        *catalog.Catalog
	registry       *zcl.Registry
	scripts        *script.Engine
	reports        ReportSource
	wsHub          *WSHub
	metrics        *metrics
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates a new web server.
func NewServer(cat *catalog.Catalog, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	s := &Server{
		catalog: cat,
		logger:  logger.With("component", "web"),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = zcl.NewStandardRegistry(logger)
	}

	s.metrics = newMetrics(cat)
	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	s.unsubEvents = cat.Events().OnAll(func(event catalog.Event) {
		s.metrics.observe(event)
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s, nil
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	// Registry
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("GET /api/devices/{model}", s.handleAPIGetDevice)
	s.mux.HandleFunc("PUT /api/devices/{model}", s.handleAPISaveDevice)
	s.mux.HandleFunc("DELETE /api/devices/{model}", s.handleAPIDeleteDevice)
	s.mux.HandleFunc("GET /api/lookup/{zigbeeModel}", s.handleAPILookup)
	s.mux.HandleFunc("GET /api/template", s.handleAPITemplate)
	s.mux.HandleFunc("GET /api/issues", s.handleAPIIssues)
	s.mux.HandleFunc("POST /api/reload", s.handleAPIReload)
	s.mux.HandleFunc("GET /api/extensions", s.handleAPIListExtensions)
	s.mux.HandleFunc("GET /api/clusters", s.handleAPIListClusters)

	// Exports
	s.mux.HandleFunc("GET /api/converter.js", s.handleAPIConverterJS)
	s.mux.HandleFunc("GET /api/template.js", s.handleAPITemplateJS)
	s.mux.HandleFunc("GET /api/export/{format}", s.handleAPIExport)

	// Interview
	s.mux.HandleFunc("POST /api/interview", s.handleAPIInterview)
	s.mux.HandleFunc("GET /api/interview/reports", s.handleAPIInterviewReports)

	// Scripts
	s.mux.HandleFunc("GET /api/scripts", s.handleAPIListScripts)
	s.mux.HandleFunc("GET /api/scripts/{id}", s.handleAPIGetScript)
	s.mux.HandleFunc("POST /api/scripts", s.handleAPICreateScript)
	s.mux.HandleFunc("PUT /api/scripts/{id}", s.handleAPIUpdateScript)
	s.mux.HandleFunc("DELETE /api/scripts/{id}", s.handleAPIDeleteScript)
	s.mux.HandleFunc("POST /api/scripts/{id}/run", s.handleAPIRunScript)

	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	s.mux.Handle("GET /metrics", s.metrics.handler())

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	// Browsers cannot send custom headers on a WebSocket upgrade, so only
	// /api/ is key-protected.
	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
