package server

import (
	"net/http"

	"github.com/ludikoapp/ludiko/internal/prefs"
)

func handleGetPrefs(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := prefs.Load(path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePutPrefs(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p prefs.Preferences
		if err := readJSON(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := prefs.Save(path, p); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
