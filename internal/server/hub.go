package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ludikoapp/ludiko/internal/client"
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/history"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

// Hub keeps one client.Runner per connected player. A runner exists
// while at least one stream (SSE or WebSocket) or recent action holds a
// reference; the last detach tears it down.
type Hub struct {
	rooms    *room.Manager
	sessions *session.Manager
	history  *history.Store
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*hubEntry
	closed  bool
}

type hubEntry struct {
	runner *client.Runner
	refs   int
}

func NewHub(rooms *room.Manager, sessions *session.Manager, hist *history.Store, logger *slog.Logger) *Hub {
	return &Hub{
		rooms:    rooms,
		sessions: sessions,
		history:  hist,
		logger:   logger,
		entries:  make(map[string]*hubEntry),
	}
}

func hubKey(roomID, playerID string) string { return roomID + "/" + playerID }

// Attach returns the player's runner, starting one if none is live.
// first reports whether this is the player's only live stream, so the
// caller knows to arm the disconnect cleanup exactly once. Every
// Attach must be paired with a Detach.
func (h *Hub) Attach(roomID string, player *room.Player, settings game.Settings) (runner *client.Runner, first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}

	key := hubKey(roomID, player.ID)
	if e, ok := h.entries[key]; ok {
		e.refs++
		return e.runner, false
	}

	var saver client.HistorySaver
	if h.history != nil {
		saver = h.history
	}
	r := client.NewRunner(roomID, player, settings, h.rooms, h.sessions, saver, h.logger)
	r.Start(context.Background())
	h.entries[key] = &hubEntry{runner: r, refs: 1}
	return r, true
}

// Runner returns the live runner without taking a reference, or nil.
func (h *Hub) Runner(roomID, playerID string) *client.Runner {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.entries[hubKey(roomID, playerID)]; ok {
		return e.runner
	}
	return nil
}

// Detach releases one reference; the last one closes the runner and
// reports last=true so the caller can fire the disconnect cleanup. A
// detach after Drop already removed the entry reports last=false.
func (h *Hub) Detach(roomID, playerID string) (last bool) {
	h.mu.Lock()
	key := hubKey(roomID, playerID)
	e, ok := h.entries[key]
	if ok {
		e.refs--
		if e.refs <= 0 {
			delete(h.entries, key)
		}
	}
	h.mu.Unlock()
	if ok && e.refs <= 0 {
		e.runner.Close()
		return true
	}
	return false
}

// Drop force-closes a player's runner regardless of outstanding stream
// references; used when the player explicitly leaves. Live streams
// observe the runner's Done and their detaches become no-ops.
func (h *Hub) Drop(roomID, playerID string) {
	h.mu.Lock()
	key := hubKey(roomID, playerID)
	e, ok := h.entries[key]
	delete(h.entries, key)
	h.mu.Unlock()
	if ok {
		e.runner.Close()
	}
}

// CloseAll shuts every runner down; used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	entries := h.entries
	h.entries = make(map[string]*hubEntry)
	h.closed = true
	h.mu.Unlock()
	for _, e := range entries {
		e.runner.Close()
	}
}
