package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

// HistorySaver persists a finished game. The host's runner calls it at
// most once per session.
type HistorySaver interface {
	SaveFinishedGame(ctx context.Context, r *room.Room, s *session.State) error
}

// Snapshot is the merged view a runner pushes to its transports after
// every input: the shared documents plus this player's local state.
type Snapshot struct {
	Room    *room.Room     `json:"room"`
	Session *session.State `json:"session,omitempty"`
	Local   LocalState     `json:"local"`
}

// LocalState is the per-player ephemeral state the machine derives.
type LocalState struct {
	Stage      Stage `json:"stage"`
	Countdown  int   `json:"countdown"`
	TimeLeft   int   `json:"timeLeft"`
	LocalIndex int   `json:"localIndex"`
	Score      int   `json:"score"`
	Moves      int   `json:"moves,omitempty"`
	Matched    []int `json:"matched,omitempty"`
}

// Runner drives one player's FSM: it owns the document subscriptions,
// the one-second ticker, and the execution of the machine's effects
// against the managers. HTTP handlers call Answer/Flip on it; event
// transports fan snapshots out through Watch.
type Runner struct {
	roomID   string
	playerID string
	isHost   bool

	rooms    *room.Manager
	sessions *session.Manager
	history  HistorySaver
	logger   *slog.Logger

	mu       sync.Mutex
	fsm      *FSM
	lastRoom *room.Room
	initSent bool
	roomGone bool

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	cancels   []func()
}

// NewRunner builds a runner for one player in one room. Start must be
// called before it does anything.
func NewRunner(roomID string, player *room.Player, settings game.Settings, rooms *room.Manager, sessions *session.Manager, history HistorySaver, logger *slog.Logger) *Runner {
	return &Runner{
		roomID:   roomID,
		playerID: player.ID,
		isHost:   player.IsHost,
		rooms:    rooms,
		sessions: sessions,
		history:  history,
		logger:   logger.With("room", roomID, "player", player.ID),
		fsm:      NewFSM(player.ID, player.IsHost, settings),
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// Start subscribes to the room and session documents and starts the
// local clock. It returns immediately.
func (r *Runner) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	cancelRoom := r.rooms.Subscribe(r.roomID, r.onRoom)
	cancelSess := r.sessions.Subscribe(r.roomID, r.onSession)
	r.cancels = append(r.cancels, cancelRoom, cancelSess)

	go r.tickLoop()
}

// Close tears down subscriptions and the ticker. Safe to call twice.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		for _, c := range r.cancels {
			c()
		}
		r.subMu.Lock()
		for ch := range r.subs {
			close(ch)
		}
		r.subs = nil
		r.subMu.Unlock()
	})
}

// Done reports runner shutdown for transports blocking on it.
func (r *Runner) Done() <-chan struct{} { return r.ctx.Done() }

// PlayerID identifies the player this runner serves.
func (r *Runner) PlayerID() string { return r.playerID }

// Watch registers a snapshot channel. Delivery is latest-wins: a slow
// reader sees the newest state, never a backlog.
func (r *Runner) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	r.subMu.Lock()
	if r.subs != nil {
		r.subs[ch] = struct{}{}
	} else {
		close(ch)
	}
	r.subMu.Unlock()
	cancel := func() {
		r.subMu.Lock()
		if r.subs != nil {
			if _, ok := r.subs[ch]; ok {
				delete(r.subs, ch)
				close(ch)
			}
		}
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) publish(s Snapshot) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (r *Runner) tickLoop() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.mu.Lock()
			effs := r.fsm.Tick()
			r.finish(effs)
		}
	}
}

func (r *Runner) onRoom(rm *room.Room) {
	r.mu.Lock()
	if rm == nil {
		// Room deleted under us. Emit a tombstone so transports can end
		// their streams, then shut down.
		r.roomGone = true
		r.mu.Unlock()
		r.publish(Snapshot{})
		r.Close()
		return
	}
	r.lastRoom = rm
	effs := r.fsm.ApplyRoom(rm)
	if rm.Status == room.StatusWaiting {
		// Replay path: the next start needs a fresh init.
		r.initSent = false
	}
	effs = append(effs, r.maybeInit(rm)...)
	r.finish(effs)
}

func (r *Runner) onSession(s *session.State) {
	r.mu.Lock()
	effs := r.fsm.ApplySession(s)
	if s == nil && r.lastRoom != nil && r.lastRoom.Status == room.StatusWaiting {
		r.initSent = false
	}
	r.finish(effs)
}

// maybeInit creates the session document when the host's runner sees
// the room go to playing with no session yet. The read-then-write is
// not atomic; a racing double init is tolerated because the last write
// wins and both writers produce an equivalent countdown state.
func (r *Runner) maybeInit(rm *room.Room) []Effect {
	if !r.isHost || r.initSent || rm.Status != room.StatusPlaying {
		return nil
	}
	if existing, err := r.sessions.Get(r.ctx, r.roomID); err != nil || existing != nil {
		return nil
	}
	r.initSent = true

	ids := make([]string, 0, len(rm.ActivePlayers()))
	for _, p := range rm.ActivePlayers() {
		ids = append(ids, p.ID)
	}
	var err error
	switch rm.Settings.GameType {
	case game.TypeShapeMatch:
		err = r.sessions.InitShape(r.ctx, r.roomID, rm.Settings, ids)
	case game.TypeMemory:
		err = r.sessions.InitMemory(r.ctx, r.roomID, rm.Settings, ids)
	default:
		err = r.sessions.InitMath(r.ctx, r.roomID, rm.Settings, ids)
	}
	if err != nil {
		r.initSent = false
		r.logger.Error("session init failed", "error", err)
	}
	return nil
}

// finish executes effects, publishes a snapshot, and releases the lock.
// Callers hold r.mu.
func (r *Runner) finish(effs []Effect) {
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.execute(effs)
	if !snap.empty() {
		r.publish(snap)
	}
}

func (s Snapshot) empty() bool { return s.Room == nil && s.Session == nil }

func (r *Runner) snapshotLocked() Snapshot {
	if r.roomGone {
		return Snapshot{}
	}
	return Snapshot{
		Room:    r.lastRoom,
		Session: r.fsm.Session(),
		Local: LocalState{
			Stage:      r.fsm.Stage(),
			Countdown:  r.fsm.Countdown(),
			TimeLeft:   r.fsm.TimeLeft(),
			LocalIndex: r.fsm.LocalIndex(),
			Score:      r.fsm.Score(),
			Moves:      r.fsm.Moves(),
			Matched:    r.fsm.MatchedIndices(),
		},
	}
}

func (r *Runner) execute(effs []Effect) {
	for _, e := range effs {
		var err error
		switch e := e.(type) {
		case SetPhaseEffect:
			err = r.sessions.SetPhase(r.ctx, r.roomID, e.Phase)
			if err == nil && e.Phase == session.PhaseFinished {
				err = r.rooms.UpdateStatus(r.ctx, r.roomID, room.StatusFinished)
			}
		case RecordAnswerEffect:
			err = r.sessions.RecordCorrectAnswer(r.ctx, r.roomID, r.playerID, e.NewCount)
		case AdvanceEffect:
			err = r.sessions.AdvanceQuestion(r.ctx, r.roomID, e.NextIndex)
		case RecordFinishedEffect:
			err = r.sessions.RecordPlayerFinished(r.ctx, r.roomID, r.playerID)
		case SaveHistoryEffect:
			err = r.saveHistory()
		}
		if err != nil {
			r.logger.Error("effect failed", "effect", effectName(e), "error", err)
		}
	}
}

func (r *Runner) saveHistory() error {
	if r.history == nil {
		return nil
	}
	r.mu.Lock()
	rm, sess := r.lastRoom, r.fsm.Session()
	r.mu.Unlock()
	if rm == nil || sess == nil {
		return nil
	}
	return r.history.SaveFinishedGame(r.ctx, rm, sess)
}

func effectName(e Effect) string {
	switch e.(type) {
	case SetPhaseEffect:
		return "setPhase"
	case RecordAnswerEffect:
		return "recordAnswer"
	case AdvanceEffect:
		return "advance"
	case RecordFinishedEffect:
		return "recordFinished"
	case SaveHistoryEffect:
		return "saveHistory"
	}
	return "unknown"
}

// Answer submits a math or shape answer depending on the running game.
func (r *Runner) Answer(value int, optionID string) AnswerResult {
	r.mu.Lock()
	var (
		res  AnswerResult
		effs []Effect
	)
	if optionID != "" {
		res, effs = r.fsm.AnswerShape(optionID)
	} else {
		res, effs = r.fsm.AnswerMath(value)
	}
	r.finish(effs)
	return res
}

// Flip turns one memory card on this player's board.
func (r *Runner) Flip(index int) FlipResult {
	r.mu.Lock()
	res, effs := r.fsm.Flip(index)
	r.finish(effs)
	return res
}

// State returns the current merged snapshot without waiting for a push.
func (r *Runner) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}
