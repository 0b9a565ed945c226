// Package room owns the Room document lifecycle: creation, code-based
// join, roster and ready-state mutation, status transitions, replay, and
// disconnect-driven cleanup.
package room

import (
	"strings"

	"github.com/ludikoapp/ludiko/internal/game"
)

// Status is the top-level room state. It moves waiting -> playing ->
// finished within a game, and only an explicit replay resets it.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// MaxPlayers bounds the roster size of one room.
const MaxPlayers = 30

// Avatars assigned round-robin to joining players.
var Avatars = []string{"🦊", "🐸", "🐱", "🐶", "🐰", "🦁", "🐼", "🐨"}

// Player is one roster entry. Exactly one player per room has IsHost set.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Score   int    `json:"score"`
	IsHost  bool   `json:"isHost"`
	IsReady bool   `json:"isReady"`
}

// Room is the shared lobby/game document, one per game instance.
//
// The Players list can contain nil holes left behind by disconnect
// cleanup; use ActivePlayers before iterating.
type Room struct {
	ID        string        `json:"id"`
	Code      string        `json:"code"`
	HostID    string        `json:"hostId"`
	Players   []*Player     `json:"players"`
	Status    Status        `json:"status"`
	Settings  game.Settings `json:"settings"`
	CreatedAt int64         `json:"createdAt"`
}

// ActivePlayers returns the roster with nulled slots compacted away.
func (r *Room) ActivePlayers() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// PlayerByID finds a roster entry, skipping holes.
func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// Joinable reports whether new players may still enter.
func (r *Room) Joinable() bool {
	return r.Status == StatusWaiting && len(r.ActivePlayers()) < MaxPlayers
}

// NormalizeCode uppercases a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
