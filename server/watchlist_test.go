package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistAddAndList(t *testing.T) {
	ts := newTestServer(t)

	add := ts.do(t, http.MethodPost, "/api/watchlist", `{"market":"nba/lakers-celtics/ml"}`)
	require.Equal(t, http.StatusCreated, add.Code)
	body := decode(t, add)
	assert.Equal(t, "nba/lakers-celtics/ml", body["market"])

	list := ts.do(t, http.MethodGet, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Equal(t, float64(1), decode(t, list)["count"])
}

func TestWatchlistRejectsEmptyMarket(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/watchlist", `{"market":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatchlistDuplicateConflicts(t *testing.T) {
	ts := newTestServer(t)
	first := ts.do(t, http.MethodPost, "/api/watchlist", `{"market":"epl/arsenal-spurs/ml"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := ts.do(t, http.MethodPost, "/api/watchlist", `{"market":"epl/arsenal-spurs/ml"}`)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestWatchlistPurge(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/watchlist", `{"market":"mlb/yankees-redsox/ml"}`).Code)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/watchlist", `{"market":"mlb/dodgers-giants/ml"}`).Code)

	// No users registered, so the admin gate runs open.
	purge := ts.do(t, http.MethodDelete, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, purge.Code)
	assert.Equal(t, float64(2), decode(t, purge)["removed"])

	list := ts.do(t, http.MethodGet, "/api/watchlist", "")
	assert.Equal(t, float64(0), decode(t, list)["count"])
}

func TestWatchlistPurgeNeedsAdmin(t *testing.T) {
	ts := newTestServer(t)
	_, token, err := ts.authHandler.Users().Create("bob", "viewer")
	require.NoError(t, err)

	req := ts.do(t, http.MethodDelete, "/api/watchlist", "")
	// Unauthenticated once a user exists.
	assert.Equal(t, http.StatusUnauthorized, req.Code)

	reqViewer := newAuthedRequest(t, ts, http.MethodDelete, "/api/watchlist", token)
	assert.Equal(t, http.StatusForbidden, reqViewer.Code)
}
