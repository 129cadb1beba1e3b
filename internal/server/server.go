package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
	"github.com/pihole-wizard/pihole-wizard/internal/engine"
	"github.com/pihole-wizard/pihole-wizard/internal/prereq"
	"github.com/pihole-wizard/pihole-wizard/internal/stats"
	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

// Server is the HTTP backend the wizard frontend talks to.
type Server struct {
	cfg      *config.Config
	wizard   *wizard.Store
	engine   *engine.Engine
	checker  *prereq.Checker
	tracker  *stats.Tracker
	sessions *sessionSet
	log      *clog.Logger
	spa      fs.FS // disk-based frontend assets, may be nil
	http     *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithSPA serves the wizard frontend from the given filesystem.
func WithSPA(spaFS fs.FS) Option {
	return func(s *Server) { s.spa = spaFS }
}

// WithLogger replaces the default logger.
func WithLogger(logger *clog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// New wires the API routes and middleware.
func New(cfg *config.Config, store *wizard.Store, eng *engine.Engine, checker *prereq.Checker, tracker *stats.Tracker, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		wizard:   store,
		engine:   eng,
		checker:  checker,
		tracker:  tracker,
		sessions: newSessionSet(),
		log:      clog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/prerequisites/check", s.handlePrereqs)

	// Wizard state
	mux.HandleFunc("GET /api/wizard/state", s.handleGetState)
	mux.HandleFunc("PUT /api/wizard/state", s.withAuth(s.handlePutState))
	mux.HandleFunc("POST /api/wizard/state", s.withAuth(s.handlePutState))
	mux.HandleFunc("PATCH /api/wizard/state", s.withAuth(s.handlePatchState))
	mux.HandleFunc("DELETE /api/wizard/state", s.withAuth(s.handleResetState))
	mux.HandleFunc("GET /api/wizard/export", s.withAuth(s.handleExport))
	mux.HandleFunc("POST /api/wizard/import", s.withAuth(s.handleImport))

	// Generated deployment files
	mux.HandleFunc("GET /api/config/preview", s.handleConfigPreview)
	mux.HandleFunc("POST /api/config/preview", s.handleConfigPreview)
	mux.HandleFunc("POST /api/config/generate", s.withAuth(s.handleConfigGenerate))
	mux.HandleFunc("GET /api/config/files", s.handleConfigFiles)

	// Install pipeline
	mux.HandleFunc("POST /api/install/start", s.withAuth(s.handleInstallStart))
	mux.HandleFunc("GET /api/install/status", s.handleInstallStatus)
	mux.HandleFunc("GET /api/install/logs", s.handleInstallLogs)
	mux.HandleFunc("POST /api/install/cancel", s.withAuth(s.handleInstallCancel))
	mux.HandleFunc("GET /api/install/ws", s.handleInstallStream)

	// Update pipeline
	mux.HandleFunc("GET /api/update/check", s.handleUpdateCheck)
	mux.HandleFunc("POST /api/update/start", s.withAuth(s.handleUpdateStart))
	mux.HandleFunc("GET /api/update/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /api/update/cancel", s.withAuth(s.handleUpdateCancel))
	mux.HandleFunc("GET /api/update/ws", s.handleUpdateStream)

	// Web terminal
	mux.HandleFunc("GET /api/terminal", s.withAuth(s.handleTerminal))

	if cfg.Auth.Mode == config.AuthModePassword {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
		mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)
	}

	// SPA fallback for all non-API routes
	if s.spa != nil {
		mux.Handle("/", s.spaHandler())
	}

	var handler http.Handler = mux
	handler = maxBodyMiddleware(handler, 1<<20) // 1 MB limit for API requests
	handler = corsMiddleware(handler)
	handler = s.logMiddleware(handler)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Service.BindAddress, cfg.Service.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the full middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

func maxBodyMiddleware(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit API request bodies only, not WebSocket upgrades.
		if r.Body != nil && strings.HasPrefix(r.URL.Path, "/api/") && r.Method != "GET" &&
			!strings.Contains(r.Header.Get("Upgrade"), "websocket") {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start).Round(time.Millisecond))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			host := r.Host
			if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			// Dev frontends run on localhost against any host.
			if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Upgrade, Connection")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOriginPatterns returns WebSocket origin patterns matching the
// server's host.
func (s *Server) allowedOriginPatterns(r *http.Request) []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	if host := r.Host; host != "" {
		h := host
		if idx := strings.LastIndex(h, ":"); idx > 0 {
			h = h[:idx]
		}
		patterns = append(patterns, h+":*", host)
	}
	return patterns
}

// spaHandler serves static files, falling back to index.html for client-side
// routes.
func (s *Server) spaHandler() http.Handler {
	fileServer := http.FileServerFS(s.spa)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "index.html"
		}
		cleanPath := strings.TrimPrefix(path, "/")

		if f, err := s.spa.Open(cleanPath); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
