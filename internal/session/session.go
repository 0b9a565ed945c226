// Package session owns the per-room GameSession sub-document: the
// content pool, the shared progress map, and the countdown -> playing ->
// finished phase machine replicated to every client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ludikoapp/ludiko/internal/docstore"
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/room"
)

// Phase is the session state. Forward-only for the lifetime of one
// session instance; replay replaces the whole document.
type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseFinished  Phase = "finished"
)

// CountdownSeconds is the fixed pre-game 3-2-1-Go length.
const CountdownSeconds = 3

// SprintPoolSize is the up-front question pool for timed sprint, large
// enough that no player exhausts it before the clock runs out.
const SprintPoolSize = 100

// State is the replicated game session document. Exactly one of
// Questions, ShapeQuestions, MemoryCards is populated, fixed by GameType.
type State struct {
	GameType game.Type `json:"gameType"`

	Questions      []game.Question      `json:"questions,omitempty"`
	ShapeQuestions []game.ShapeQuestion `json:"shapeQuestions,omitempty"`
	MemoryCards    []game.MemoryCard    `json:"memoryCards,omitempty"`

	// CurrentIndex is the host-advanced shared cursor. Meaningful only
	// in shared-cursor modes; per-player-paced modes ignore it.
	CurrentIndex int `json:"currentIndex"`

	// Progress maps playerId -> score. Seeded with a zero entry for
	// every player present at init; monotonically non-decreasing.
	Progress map[string]int `json:"progress"`

	Phase Phase `json:"phase"`

	// Timestamps (ms) used for timer reconstruction on reconnect only.
	QuestionStartedAt int64 `json:"questionStartedAt"`
	StartedAt         int64 `json:"startedAt,omitempty"`

	// FinishTimes maps playerId -> completion timestamp (ms). Presence
	// of the key, not its value, is the completion signal.
	FinishTimes map[string]int64 `json:"finishTimes,omitempty"`
}

// Finished reports whether the player has a finish-time entry.
func (s *State) Finished(playerID string) bool {
	_, ok := s.FinishTimes[playerID]
	return ok
}

// PairCount returns the number of pairs on the memory board.
func (s *State) PairCount() int {
	return len(s.MemoryCards) / 2
}

// Manager writes GameSession documents into the shared store. Any client
// that satisfies a transition's guard may issue it; there is no central
// arbiter, and duplicate writes of the same terminal phase are harmless.
type Manager struct {
	store docstore.Store
}

func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

func Path(roomID string) string {
	return room.Path(roomID) + "/game"
}

func buildProgress(playerIDs []string) map[string]int {
	progress := make(map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		progress[id] = 0
	}
	return progress
}

// pool size: the configured round count in race mode, a large fixed pool
// in sprint mode where rounds is only the completion threshold.
func mathPoolSize(settings game.Settings) int {
	if settings.GameMode == game.ModeSprint {
		return SprintPoolSize
	}
	return settings.Rounds
}

// InitMath writes the initial math race / timed sprint session.
//
// Init is called by whichever client currently believes itself host.
// Host determination is local, so two clients can double-initialize;
// last write wins, an accepted risk of single-host-by-convention.
func (m *Manager) InitMath(ctx context.Context, roomID string, settings game.Settings, playerIDs []string) error {
	state := State{
		GameType:  game.TypeMathRace,
		Questions: game.GenerateQuestions(mathPoolSize(settings), settings.Difficulty, settings.Operations),
		Progress:  buildProgress(playerIDs),
		Phase:     PhaseCountdown,
	}
	return m.store.Write(ctx, Path(roomID), state)
}

// InitShape writes the initial shape match session.
func (m *Manager) InitShape(ctx context.Context, roomID string, settings game.Settings, playerIDs []string) error {
	state := State{
		GameType:       game.TypeShapeMatch,
		ShapeQuestions: game.GenerateShapeQuestions(settings.Rounds, settings.Difficulty, settings.ShapeMode),
		Progress:       buildProgress(playerIDs),
		Phase:          PhaseCountdown,
	}
	return m.store.Write(ctx, Path(roomID), state)
}

// InitMemory writes the initial memory session. The board is shared
// verbatim by all players; each flips locally and reports only their
// matched-pair count.
func (m *Manager) InitMemory(ctx context.Context, roomID string, settings game.Settings, playerIDs []string) error {
	state := State{
		GameType:    game.TypeMemory,
		MemoryCards: game.GenerateMemoryCards(settings.Rounds),
		Progress:    buildProgress(playerIDs),
		Phase:       PhaseCountdown,
	}
	return m.store.Write(ctx, Path(roomID), state)
}

// RecordCorrectAnswer overwrites a player's progress with the caller's
// precomputed count. This is deliberately not an atomic increment: the
// caller derives current+1 from its last-seen snapshot, so answers
// recorded against a stale snapshot can under-count. Preserved as-is;
// see the package tests documenting the race.
func (m *Manager) RecordCorrectAnswer(ctx context.Context, roomID, playerID string, newCount int) error {
	return m.store.Update(ctx, Path(roomID)+"/progress", map[string]any{playerID: newCount})
}

// AdvanceQuestion moves the shared cursor and restamps the question
// timer epoch. Host-gated by convention, not enforced by the store.
func (m *Manager) AdvanceQuestion(ctx context.Context, roomID string, nextIndex int) error {
	return m.store.Update(ctx, Path(roomID), map[string]any{
		"currentIndex":      nextIndex,
		"questionStartedAt": time.Now().UnixMilli(),
	})
}

// SetPhase writes a phase transition. Entering playing also stamps
// startedAt so reconnecting clients can rebuild their timers.
func (m *Manager) SetPhase(ctx context.Context, roomID string, phase Phase) error {
	fields := map[string]any{"phase": string(phase)}
	if phase == PhasePlaying {
		fields["startedAt"] = time.Now().UnixMilli()
	}
	return m.store.Update(ctx, Path(roomID), fields)
}

// RecordPlayerFinished stamps the player's finish time. Consumers check
// key presence only, so a duplicate write is harmless; callers still
// guard with a local latch.
func (m *Manager) RecordPlayerFinished(ctx context.Context, roomID, playerID string) error {
	return m.store.Update(ctx, Path(roomID)+"/finishTimes", map[string]any{
		playerID: time.Now().UnixMilli(),
	})
}

// Clear deletes the session document (replay).
func (m *Manager) Clear(ctx context.Context, roomID string) error {
	return m.store.Delete(ctx, Path(roomID))
}

// Get reads the session once; ErrAbsent maps to a nil state.
func (m *Manager) Get(ctx context.Context, roomID string) (*State, error) {
	var s State
	err := m.store.ReadOnce(ctx, Path(roomID), &s)
	if errors.Is(err, docstore.ErrAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Subscribe streams session snapshots; nil means no session exists.
func (m *Manager) Subscribe(roomID string, fn func(*State)) (cancel func()) {
	return m.store.Subscribe(Path(roomID), func(data []byte) {
		if data == nil {
			fn(nil)
			return
		}
		var s State
		if err := json.Unmarshal(data, &s); err != nil {
			return
		}
		fn(&s)
	})
}
