package server

import (
	"errors"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ludikoapp/ludiko/internal/room"
)

// handleWS mirrors the SSE stream over a WebSocket for clients behind
// proxies that buffer event streams. Outbound only; actions still go
// through the REST endpoints.
func handleWS(deps Deps, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sess, err := playerFromRequest(r, deps.Store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
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

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			deps.Logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		runner, first := hub.Attach(rm.ID, player, rm.Settings)
		if runner == nil {
			return
		}
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

		ctx := r.Context()
		if err := wsjson.Write(ctx, conn, runner.State()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-runner.Done():
				conn.Close(websocket.StatusNormalClosure, "room closed")
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				if err := wsjson.Write(ctx, conn, snap); err != nil {
					return
				}
			}
		}
	}
}
