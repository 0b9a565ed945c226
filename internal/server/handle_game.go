package server

import (
	"net/http"

	"github.com/ludikoapp/ludiko/internal/client"
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/ranking"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

type AnswerRequest struct {
	// Value is the numeric answer for math games.
	Value *int `json:"value,omitempty"`
	// OptionID selects a shape option.
	OptionID string `json:"optionId,omitempty"`
}

// runnerFromRequest resolves the caller's live runner. Actions require a
// connected event stream: without one there is no machine to act on.
func runnerFromRequest(r *http.Request, hub *Hub) (*client.Runner, int, string) {
	p := playerFrom(r)
	runner := hub.Runner(p.Session.RoomID, p.Session.PlayerID)
	if runner == nil {
		return nil, http.StatusConflict, "no active game connection; open the event stream first"
	}
	return runner, 0, ""
}

func handleAnswer(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runner, status, msg := runnerFromRequest(r, hub)
		if runner == nil {
			writeError(w, status, msg)
			return
		}
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Value == nil && req.OptionID == "" {
			writeError(w, http.StatusBadRequest, "value or optionId is required")
			return
		}
		value := 0
		if req.Value != nil {
			value = *req.Value
		}
		writeJSON(w, http.StatusOK, runner.Answer(value, req.OptionID))
	}
}

type FlipRequest struct {
	CardIndex int `json:"cardIndex"`
}

func handleFlip(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runner, status, msg := runnerFromRequest(r, hub)
		if runner == nil {
			writeError(w, status, msg)
			return
		}
		var req FlipRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		writeJSON(w, http.StatusOK, runner.Flip(req.CardIndex))
	}
}

func handleGameState(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runner, status, msg := runnerFromRequest(r, hub)
		if runner == nil {
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, runner.State())
	}
}

// handleResults recomputes the final ranking from the live documents.
func handleResults(rooms *room.Manager, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, _, status, msg := roomFromRequest(r, rooms)
		if rm == nil {
			writeError(w, status, msg)
			return
		}
		sess, err := sessions.Get(r.Context(), rm.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil {
			writeError(w, http.StatusNotFound, "no game session")
			return
		}
		total := rm.Settings.Rounds
		if sess.GameType == game.TypeMemory {
			total = sess.PairCount()
		}
		writeJSON(w, http.StatusOK, ranking.Compute(rm.Players, sess.Progress, sess.FinishTimes, total))
	}
}
