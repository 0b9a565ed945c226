package server

import (
	"net/http"

	"github.com/ludikoapp/ludiko/internal/history"
)

func handleRecentHistory(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.RecentHistory(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if records == nil {
			records = []history.GameRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleLeaderboard(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := store.ComputeLeaderboard(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if entries == nil {
			entries = []history.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
