package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ludikoapp/ludiko/internal/docstore"
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/room"
)

type CreateRoomRequest struct {
	HostName string         `json:"hostName"`
	Settings *game.Settings `json:"settings"`
}

type RoomResponse struct {
	Room     *room.Room `json:"room"`
	PlayerID string     `json:"playerId"`
	Token    string     `json:"token"`
}

func handleCreateRoom(rooms *room.Manager, store docstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.HostName = strings.TrimSpace(req.HostName)
		if req.HostName == "" {
			writeError(w, http.StatusBadRequest, "hostName is required")
			return
		}

		settings := game.DefaultSettings()
		if req.Settings != nil {
			settings = *req.Settings
		}
		if err := settings.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rm, err := rooms.Create(r.Context(), req.HostName, settings)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		host := rm.Players[0]
		token, err := createPlayerSession(r.Context(), store, playerSession{
			PlayerID: host.ID,
			RoomID:   rm.ID,
			IsHost:   true,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, RoomResponse{Room: rm, PlayerID: host.ID, Token: token})
	}
}

type RoomLookupResponse struct {
	RoomID      string `json:"roomId"`
	Code        string `json:"code"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

func handleRoomLookup(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := room.NormalizeCode(chi.URLParam(r, "code"))

		rm, err := rooms.FindByCode(r.Context(), code)
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found or already started")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, RoomLookupResponse{
			RoomID:      rm.ID,
			Code:        rm.Code,
			PlayerCount: len(rm.ActivePlayers()),
			MaxPlayers:  room.MaxPlayers,
		})
	}
}

type JoinRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
	Avatar     string `json:"avatar"`
}

func handleJoinRoom(rooms *room.Manager, store docstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PlayerName = strings.TrimSpace(req.PlayerName)
		if req.PlayerName == "" || req.Code == "" {
			writeError(w, http.StatusBadRequest, "code and playerName are required")
			return
		}

		rm, player, err := rooms.Join(r.Context(), room.NormalizeCode(req.Code), req.PlayerName, req.Avatar)
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found or already started")
			return
		}
		if errors.Is(err, room.ErrRoomFull) {
			writeError(w, http.StatusConflict, "room is full")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		token, err := createPlayerSession(r.Context(), store, playerSession{
			PlayerID: player.ID,
			RoomID:   rm.ID,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, RoomResponse{Room: rm, PlayerID: player.ID, Token: token})
	}
}

// roomFromRequest loads the room named in the path and checks the
// caller's session belongs to it.
func roomFromRequest(r *http.Request, rooms *room.Manager) (*room.Room, playerInfo, int, string) {
	p := playerFrom(r)
	roomID := chi.URLParam(r, "roomID")
	if roomID != p.Session.RoomID {
		return nil, p, http.StatusForbidden, "session does not belong to this room"
	}
	rm, err := rooms.Get(r.Context(), roomID)
	if errors.Is(err, room.ErrNotFound) {
		return nil, p, http.StatusNotFound, "room not found"
	}
	if err != nil {
		return nil, p, http.StatusInternalServerError, "internal error"
	}
	return rm, p, 0, ""
}

func handleGetRoom(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, _, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, rm)
	}
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

func handleSetReady(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, p, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		var req ReadyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := rooms.SetReady(r.Context(), rm.ID, p.Session.PlayerID, req.Ready); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpdateSettings(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, p, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		if !p.Session.IsHost {
			writeError(w, http.StatusForbidden, "only the host can change settings")
			return
		}
		if rm.Status != room.StatusWaiting {
			writeError(w, http.StatusConflict, "settings are locked once the game starts")
			return
		}
		var settings game.Settings
		if err := readJSON(r, &settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := settings.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := rooms.UpdateSettings(r.Context(), rm.ID, settings); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleStartGame(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, p, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		if !p.Session.IsHost {
			writeError(w, http.StatusForbidden, "only the host can start the game")
			return
		}
		if rm.Status != room.StatusWaiting {
			writeError(w, http.StatusConflict, "game already started")
			return
		}
		for _, pl := range rm.ActivePlayers() {
			if !pl.IsReady {
				writeError(w, http.StatusConflict, "not all players are ready")
				return
			}
		}
		if err := rooms.UpdateStatus(r.Context(), rm.ID, room.StatusPlaying); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReplay(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, p, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		if !p.Session.IsHost {
			writeError(w, http.StatusForbidden, "only the host can restart")
			return
		}
		if err := rooms.Replay(r.Context(), rm.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleLeave removes the player from the roster and drops the session.
// A leaving host deletes the whole room, same as a host disconnect.
func handleLeave(rooms *room.Manager, store docstore.Store, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, p, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}

		var err error
		if p.Session.IsHost {
			err = rooms.Delete(r.Context(), rm.ID)
		} else {
			err = rooms.RemovePlayer(r.Context(), rm.ID, p.Session.PlayerID)
		}
		if err != nil && !errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		dropPlayerSession(r.Context(), store, p.Token)
		// The leave already did the cleanup explicitly; the armed
		// disconnect action must not fire again when the player's
		// streams unwind.
		store.DisarmOnDisconnect(connID(rm.ID, p.Session.PlayerID))
		hub.Drop(rm.ID, p.Session.PlayerID)
		w.WriteHeader(http.StatusNoContent)
	}
}
