package auth

import (
	"encoding/json"
	"net/http"
)

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	user, err := h.users.Authenticate(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid access token")
		return
	}

	sessionToken, err := h.sessions.create(user.Username, user.Role)
	if err != nil {
		h.logger.Errorw("Failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	setSessionCookie(w, sessionToken)

	h.logger.Infow("Session created", "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"username": user.Username,
		"role":     user.Role,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		h.sessions.invalidate(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A broken user store reads as unclaimed; the status check is
	// advisory and must not fail closed.
	count, err := h.users.Count()
	if err != nil {
		h.logger.Warnw("User store unavailable, reporting unclaimed", "error", err)
		count = 0
	}

	resp := map[string]any{"claimed": count > 0}
	if user := h.resolve(r); user != nil {
		resp["username"] = user.Username
		resp["role"] = user.Role
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Response helpers (package-local) ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
