// Package auth provides bearer-token authentication for the HTTP
// control surface. Access tokens are minted from the CLI and exchanged
// for short-lived session cookies; until the first user is created the
// API runs open so a fresh install can be driven immediately.
package auth

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const sessionCookieName = "arbiter_session"

type contextKey struct{}

// Handler provides the auth endpoints and request middleware.
type Handler struct {
	users    *UserStore
	sessions *sessionStore
	logger   *zap.SugaredLogger
	corsWrap func(http.HandlerFunc) http.HandlerFunc
}

// New creates an auth handler. corsWrap is the server's CORS middleware.
// Auth routes need CORS headers but not auth checking.
func New(db *sql.DB, sessionExpiryHours int, logger *zap.SugaredLogger, corsWrap func(http.HandlerFunc) http.HandlerFunc) *Handler {
	return &Handler{
		users:    NewUserStore(db, logger),
		sessions: newSessionStore(sessionExpiryHours),
		logger:   logger,
		corsWrap: corsWrap,
	}
}

// Users exposes the underlying user store for CLI wiring.
func (h *Handler) Users() *UserStore {
	return h.users
}

// FromContext returns the authenticated user attached by Middleware,
// or nil for open-access requests.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

// Middleware enforces authentication on API and websocket requests.
// It accepts either a session cookie or a raw access token in the
// Authorization header. When no users are registered the check is
// skipped entirely.
func (h *Handler) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := h.users.Count()
		if err != nil {
			// Reads fall back to the unclaimed default so status polls
			// survive a user-store hiccup; mutations stay failed.
			if r.Method == http.MethodGet {
				h.logger.Warnw("User store unavailable, allowing read", "error", err)
				next(w, r)
				return
			}
			h.logger.Errorw("Failed to count users", "error", err)
			writeError(w, http.StatusInternalServerError, "auth store unavailable")
			return
		}
		if count == 0 {
			next(w, r)
			return
		}

		if user := h.resolve(r); user != nil {
			next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
			return
		}
		writeError(w, http.StatusUnauthorized, "authentication required")
	}
}

// RequireAdmin gates destructive endpoints behind the admin role. Open
// access (no users registered) passes, matching Middleware.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.Middleware(func(w http.ResponseWriter, r *http.Request) {
		user := FromContext(r.Context())
		if user != nil && user.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}

// resolve extracts and validates the caller's credentials, preferring
// the session cookie over a bearer token.
func (h *Handler) resolve(r *http.Request) *User {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if sess, ok := h.sessions.validate(cookie.Value); ok {
			return &User{Username: sess.username, Role: sess.role}
		}
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		user, err := h.users.Authenticate(token)
		if err != nil {
			return nil
		}
		return user
	}
	return nil
}

// RegisterRoutes registers the /auth/* routes on mux. These use CORS
// middleware but bypass auth middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.corsWrap(h.handleLogin))
	mux.HandleFunc("/auth/logout", h.corsWrap(h.handleLogout))
	mux.HandleFunc("/auth/status", h.corsWrap(h.handleStatus))
}

// StartSessionSweep starts a background goroutine that cleans expired
// sessions every 5 minutes. Call done() from your WaitGroup, listen on
// cancel for shutdown.
func (h *Handler) StartSessionSweep(done func(), cancel <-chan struct{}) {
	go func() {
		defer done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.sessions.sweep()
			case <-cancel:
				return
			}
		}
	}()
}
