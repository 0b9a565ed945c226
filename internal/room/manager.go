package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ludikoapp/ludiko/internal/docstore"
	"github.com/ludikoapp/ludiko/internal/game"
)

// ErrNotFound is returned when a code or id resolves to no joinable room.
var ErrNotFound = errors.New("room not found")

// ErrRoomFull is returned when the roster is at MaxPlayers.
var ErrRoomFull = errors.New("room full")

// codeAlphabet excludes visually confusable characters (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of human-enterable room codes.
const CodeLength = 6

// Manager mutates Room documents in the shared store. It never retries a
// failed store call; callers surface the error and the room stays in its
// last-known-good remote state.
type Manager struct {
	store docstore.Store
}

// NewManager returns a Manager on the given store.
func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

func Path(roomID string) string {
	return "rooms/" + roomID
}

// GenerateCode builds a 6-character room code. Collisions against other
// live rooms are not checked at creation time; with classroom-scale room
// counts the probability is accepted.
func GenerateCode() string {
	var b strings.Builder
	for range CodeLength {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Create writes a new room with the creator as sole host, already ready.
func (m *Manager) Create(ctx context.Context, hostName string, settings game.Settings) (*Room, error) {
	hostID := newID()
	r := &Room{
		ID:     newID(),
		Code:   GenerateCode(),
		HostID: hostID,
		Players: []*Player{{
			ID:      hostID,
			Name:    hostName,
			Avatar:  Avatars[0],
			IsHost:  true,
			IsReady: true,
		}},
		Status:    StatusWaiting,
		Settings:  settings,
		CreatedAt: nowMillis(),
	}
	if err := m.store.Write(ctx, Path(r.ID), r); err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	return r, nil
}

// FindByCode resolves a code to a room in waiting status. Codes are
// matched case-insensitively.
func (m *Manager) FindByCode(ctx context.Context, code string) (*Room, error) {
	docs, err := m.store.QueryByField(ctx, "rooms", "code", NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("looking up room code: %w", err)
	}
	for _, raw := range docs {
		var r Room
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if r.Status == StatusWaiting {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Join appends a new non-host, non-ready player to the roster.
//
// The lookup-then-append is not atomic: two simultaneous joiners can
// each read the same roster and write their own appended copy back, and
// last-write-wins drops one of them. Accepted as a rare, low-consequence
// race; the dropped player retries.
func (m *Manager) Join(ctx context.Context, code, playerName, avatar string) (*Room, *Player, error) {
	r, err := m.FindByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !r.Joinable() {
		if r.Status == StatusWaiting {
			return nil, nil, ErrRoomFull
		}
		return nil, nil, ErrNotFound
	}

	if avatar == "" {
		avatar = Avatars[len(r.ActivePlayers())%len(Avatars)]
	}
	p := &Player{
		ID:     newID(),
		Name:   playerName,
		Avatar: avatar,
	}
	r.Players = append(r.Players, p)
	if err := m.store.Update(ctx, Path(r.ID), map[string]any{"players": r.Players}); err != nil {
		return nil, nil, fmt.Errorf("joining room: %w", err)
	}
	return r, p, nil
}

// Get reads a room once.
func (m *Manager) Get(ctx context.Context, roomID string) (*Room, error) {
	var r Room
	err := m.store.ReadOnce(ctx, Path(roomID), &r)
	if errors.Is(err, docstore.ErrAbsent) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetReady flips one player's ready flag, addressed by player id. The
// flag write rewrites the whole roster field, so it shares the roster's
// last-write-wins hazard under concurrent joins.
func (m *Manager) SetReady(ctx context.Context, roomID, playerID string, ready bool) error {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	p := r.PlayerByID(playerID)
	if p == nil {
		return ErrNotFound
	}
	p.IsReady = ready
	return m.store.Update(ctx, Path(roomID), map[string]any{"players": r.Players})
}

// UpdateStatus is the single-field waiting -> playing transition.
func (m *Manager) UpdateStatus(ctx context.Context, roomID string, status Status) error {
	return m.store.Update(ctx, Path(roomID), map[string]any{"status": string(status)})
}

// UpdateSettings replaces the room settings. Only meaningful while the
// room is waiting; the replay/new-config flow is the sole way to change
// settings afterwards.
func (m *Manager) UpdateSettings(ctx context.Context, roomID string, settings game.Settings) error {
	return m.store.Update(ctx, Path(roomID), map[string]any{"settings": settings})
}

// Replay resets a finished room back to the lobby: status waiting, all
// scores zeroed, only the host ready, and the session document cleared.
func (m *Manager) Replay(ctx context.Context, roomID string) error {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	for _, p := range r.ActivePlayers() {
		p.Score = 0
		p.IsReady = p.IsHost
	}
	if err := m.store.Update(ctx, Path(roomID), map[string]any{
		"status":  string(StatusWaiting),
		"players": r.Players,
	}); err != nil {
		return fmt.Errorf("resetting room: %w", err)
	}
	return m.store.Delete(ctx, Path(roomID)+"/game")
}

// Delete removes the whole room document.
func (m *Manager) Delete(ctx context.Context, roomID string) error {
	return m.store.Delete(ctx, Path(roomID))
}

// RemovePlayer filters a player out of the roster and rewrites it.
func (m *Manager) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	kept := make([]*Player, 0, len(r.Players))
	for _, p := range r.ActivePlayers() {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	return m.store.Update(ctx, Path(roomID), map[string]any{"players": kept})
}

// RegisterDisconnectCleanup arms the advisory on-disconnect action for a
// connection: hosts take the whole room down with them, other players
// just leave a null hole at their roster slot.
func (m *Manager) RegisterDisconnectCleanup(connID, roomID string, isHost bool, playerIndex int) {
	if isHost {
		m.store.ArmOnDisconnect(connID, Path(roomID))
		return
	}
	m.store.ArmOnDisconnect(connID, fmt.Sprintf("%s/players/%d", Path(roomID), playerIndex))
}

// Subscribe streams room snapshots; nil means the room was deleted.
func (m *Manager) Subscribe(roomID string, fn func(*Room)) (cancel func()) {
	return m.store.Subscribe(Path(roomID), func(data []byte) {
		if data == nil {
			fn(nil)
			return
		}
		var r Room
		if err := json.Unmarshal(data, &r); err != nil {
			return
		}
		fn(&r)
	})
}
