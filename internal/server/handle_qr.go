package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ludikoapp/ludiko/internal/room"
)

// handleJoinQR renders a QR code PNG pointing at the join page for a
// room code, for projecting on the classroom screen.
func handleJoinQR(rooms *room.Manager, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := room.NormalizeCode(chi.URLParam(r, "code"))

		if _, err := rooms.FindByCode(r.Context(), code); err != nil {
			if errors.Is(err, room.ErrNotFound) {
				writeError(w, http.StatusNotFound, "room not found or already started")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		joinURL := fmt.Sprintf("%s/join?code=%s", baseURL, code)
		png, err := qrcode.Encode(joinURL, qrcode.Medium, 512)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	}
}
