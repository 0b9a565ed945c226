package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ludikoapp/ludiko/internal/room"
)

// handleEvents is the SSE stream. Attaching spins up (or joins) the
// player's runner and arms the on-disconnect cleanup; the stream pushes
// a merged room+session+local snapshot on every change.
func handleEvents(deps Deps, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sess, err := playerFromRequest(r, deps.Store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		rm, err := deps.Rooms.Get(r.Context(), sess.RoomID)
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		player := rm.PlayerByID(sess.PlayerID)
		if player == nil {
			writeError(w, http.StatusNotFound, "player no longer in room")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		runner, first := hub.Attach(rm.ID, player, rm.Settings)
		if runner == nil {
			return
		}
		// The cleanup is armed once per player, on their first live
		// stream, and fired only when their last stream ends; a player
		// holding both SSE and WebSocket survives closing one of them.
		if first {
			armDisconnect(deps, rm, sess)
		}
		defer func() {
			if hub.Detach(rm.ID, sess.PlayerID) {
				deps.Store.FireDisconnect(connID(rm.ID, sess.PlayerID))
			}
		}()

		ch, cancel := runner.Watch()
		defer cancel()

		// Initial snapshot so a reconnecting client renders immediately.
		writeSSE(w, flusher, runner.State())

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-runner.Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				writeSSE(w, flusher, snap)
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	flusher.Flush()
}

// connID keys the armed cleanup per player, not per stream, so SSE and
// WebSocket share one registration.
func connID(roomID, playerID string) string { return "conn:" + roomID + "/" + playerID }

// armDisconnect registers the advisory cleanup for this player: the
// host's drop deletes the room, a regular player's drop clears their
// roster slot. Fired when the player's last stream ends.
func armDisconnect(deps Deps, rm *room.Room, sess playerSession) {
	idx := -1
	for i, p := range rm.Players {
		if p != nil && p.ID == sess.PlayerID {
			idx = i
			break
		}
	}
	deps.Rooms.RegisterDisconnectCleanup(connID(rm.ID, sess.PlayerID), rm.ID, sess.IsHost, idx)
}
