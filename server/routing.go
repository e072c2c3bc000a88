package server

import (
	"net/http"
	"strings"

	"github.com/oddsmith/arbiter/version"
)

// routes configures all HTTP handlers on a dedicated mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	authWrap := func(h http.HandlerFunc) http.HandlerFunc {
		return s.corsMiddleware(s.authHandler.Middleware(h))
	}
	adminWrap := func(h http.HandlerFunc) http.HandlerFunc {
		return s.corsMiddleware(s.authHandler.RequireAdmin(h))
	}

	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/ws/jobs", authWrap(s.handleJobSocket))
	mux.HandleFunc("/api/jobs", authWrap(s.handleJobs)) // List job records (GET)
	mux.HandleFunc("/api/jobs/", s.handleJobKindRoot(authWrap, adminWrap))
	mux.HandleFunc("/api/watchlist", s.handleWatchlistRoot(authWrap, adminWrap))
	s.authHandler.RegisterRoutes(mux)

	return mux
}

// handleJobKindRoot splits /api/jobs/{kind} by method: status reads
// need any authenticated user, the control verbs need admin.
func (s *Server) handleJobKindRoot(authWrap, adminWrap func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	read := authWrap(s.handleJobKind)
	mutate := adminWrap(s.handleJobKind)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mutate(w, r)
			return
		}
		read(w, r)
	}
}

// handleWatchlistRoot splits /api/watchlist by method: reads and adds
// need any authenticated user, the purge needs admin.
func (s *Server) handleWatchlistRoot(authWrap, adminWrap func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	read := authWrap(s.handleWatchlist)
	purge := adminWrap(s.handleWatchlistPurge)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			purge(w, r)
			return
		}
		read(w, r)
	}
}

// corsMiddleware adds CORS headers to HTTP responses using configured
// allowed origins.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// originAllowed checks an Origin header against the configured allow
// list. Prefix matching allows any port on an allowed host.
func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}
	for _, a := range allowed {
		if strings.HasPrefix(origin, a) {
			return true
		}
	}
	return false
}

// handleHealth serves the health check endpoint with version info.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
		"clients":    clientCount,
	})
}
