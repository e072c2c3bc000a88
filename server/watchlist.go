package server

import (
	"net/http"
)

// handleWatchlist handles GET (list) and POST (add) on /api/watchlist.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.watchStore.List()
		if err != nil {
			s.logger.Errorw("Failed to list watchlist", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list watchlist")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": items,
			"count": len(items),
		})

	case http.MethodPost:
		var req struct {
			Market string `json:"market"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		item, err := s.watchStore.Add(req.Market)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		s.logger.Infow("Market watched", "market", item.Market, "item_id", shortID(item.ID))
		writeJSON(w, http.StatusCreated, item)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleWatchlistPurge handles DELETE /api/watchlist. Admin-gated by
// routing; removes every watched market but never touches job records.
func (s *Server) handleWatchlistPurge(w http.ResponseWriter, r *http.Request) {
	removed, err := s.watchStore.DeleteAll()
	if err != nil {
		s.logger.Errorw("Failed to purge watchlist", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to purge watchlist")
		return
	}
	s.logger.Infow("Watchlist purged", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}
