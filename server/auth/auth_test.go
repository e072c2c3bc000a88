package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/errors"
	arbtest "github.com/oddsmith/arbiter/internal/testing"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func noCORS(next http.HandlerFunc) http.HandlerFunc { return next }

// --- Session store ---

func TestSessionCreateValidate(t *testing.T) {
	store := newSessionStore(1) // 1 hour
	token, err := store.create("alice", RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, token, 64) // 32 bytes hex

	sess, ok := store.validate(token)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.username)
	assert.Equal(t, RoleAdmin, sess.role)
}

func TestSessionInvalidate(t *testing.T) {
	store := newSessionStore(1)
	token, _ := store.create("alice", RoleViewer)
	store.invalidate(token)
	_, ok := store.validate(token)
	assert.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	store := &sessionStore{expiry: 1 * time.Millisecond}
	token, _ := store.create("alice", RoleViewer)
	time.Sleep(5 * time.Millisecond)
	_, ok := store.validate(token)
	assert.False(t, ok)
}

func TestSessionSweep(t *testing.T) {
	store := &sessionStore{expiry: 1 * time.Millisecond}
	token, _ := store.create("alice", RoleViewer)
	time.Sleep(5 * time.Millisecond)
	store.sweep()
	// After sweep, token should be gone from the map entirely
	_, loaded := store.sessions.Load(token)
	assert.False(t, loaded)
}

// --- User store ---

func TestUserCreateAuthenticate(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewUserStore(db, testLogger())

	user, token, err := store.Create("alice", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.ID, "usr_"))
	assert.Len(t, token, 64)

	got, err := store.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, RoleAdmin, got.Role)
}

func TestUserUnknownToken(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewUserStore(db, testLogger())
	_, _, err := store.Create("alice", RoleViewer)
	require.NoError(t, err)

	_, err = store.Authenticate("not-a-real-token")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestUserDuplicateUsername(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewUserStore(db, testLogger())
	_, _, err := store.Create("alice", RoleViewer)
	require.NoError(t, err)

	_, _, err = store.Create("alice", RoleAdmin)
	assert.True(t, errors.IsConflictError(err))
}

func TestUserInvalidRole(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewUserStore(db, testLogger())
	_, _, err := store.Create("alice", "superuser")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

// --- Middleware ---

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestMiddlewareOpenAccessWhenUnclaimed(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	handler := h.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, _, err := h.users.Create("alice", RoleViewer)
	require.NoError(t, err)

	handler := h.Middleware(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, token, err := h.users.Create("alice", RoleViewer)
	require.NoError(t, err)

	var seen *User
	handler := h.Middleware(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
}

func TestMiddlewareAcceptsSessionCookie(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, _, err := h.users.Create("alice", RoleAdmin)
	require.NoError(t, err)
	sessionToken, err := h.sessions.create("alice", RoleAdmin)
	require.NoError(t, err)

	handler := h.Middleware(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminRejectsViewer(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, token, err := h.users.Create("bob", RoleViewer)
	require.NoError(t, err)

	handler := h.RequireAdmin(okHandler)
	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, token, err := h.users.Create("alice", RoleAdmin)
	require.NoError(t, err)

	handler := h.RequireAdmin(okHandler)
	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Login handler ---

func TestLoginExchangesTokenForSession(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, token, err := h.users.Create("alice", RoleAdmin)
	require.NoError(t, err)

	body := strings.NewReader(`{"token":"` + token + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)

	sess, ok := h.sessions.validate(cookies[0].Value)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.username)
}

func TestLoginRejectsBadToken(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	h := New(db, 1, testLogger(), noCORS)
	_, _, err := h.users.Create("alice", RoleAdmin)
	require.NoError(t, err)

	body := strings.NewReader(`{"token":"bogus"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// brokenUserStore builds a handler whose user table cannot be queried,
// as after a dropped table or a locked database file.
func brokenUserStore(t *testing.T, queries int) *Handler {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	for i := 0; i < queries; i++ {
		mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table: users"))
	}
	return New(mockDB, 1, testLogger(), noCORS)
}

func TestStatusReportsUnclaimedWhenStoreDown(t *testing.T) {
	h := brokenUserStore(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rec := httptest.NewRecorder()
	h.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"claimed":false`)
}

func TestMiddlewareAllowsReadsWhenStoreDown(t *testing.T) {
	h := brokenUserStore(t, 2)
	handler := h.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Mutations still fail closed.
	req = httptest.NewRequest(http.MethodPost, "/api/jobs/scan/trigger", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
