// Package client is the per-player reconciliation layer. One Runner per
// connected player subscribes to the Room and GameSession documents and
// derives local ephemeral state (countdown ticks, question timers, a
// local question index, done-but-waiting) through an explicit state
// machine. Every player's machine runs the same timers independently and
// races to write the same terminal transitions; correctness rests on
// host-only conventions, idempotent target values, and local latches,
// never on locks or server authority.
package client

import (
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

// Stage is the local machine state.
type Stage string

const (
	// StageIdle: no session document seen yet (or cleared by replay).
	StageIdle Stage = "idle"
	// StageCountdown: pre-game 3-2-1-Go running on the local clock.
	StageCountdown Stage = "countdown"
	// StagePlaying: answering questions / flipping cards.
	StagePlaying Stage = "playing"
	// StageDone: this player finished but the session has not.
	StageDone Stage = "done"
	// StageFinished: terminal, session phase is finished.
	StageFinished Stage = "finished"
)

// Effect is a store write the machine wants issued. Transitions return
// effects rather than performing I/O so they stay directly testable.
type Effect any

// SetPhaseEffect writes a session phase transition.
type SetPhaseEffect struct{ Phase session.Phase }

// RecordAnswerEffect overwrites this player's progress entry.
type RecordAnswerEffect struct{ NewCount int }

// AdvanceEffect moves the shared cursor (host, shape match).
type AdvanceEffect struct{ NextIndex int }

// RecordFinishedEffect stamps this player's finish time.
type RecordFinishedEffect struct{}

// SaveHistoryEffect persists the completed game exactly once.
type SaveHistoryEffect struct{}

// FSM is one player's reconciliation machine. Not safe for concurrent
// use; the Runner serializes all inputs.
type FSM struct {
	playerID string
	isHost   bool
	settings game.Settings

	stage      Stage
	countdown  int
	timeLeft   int
	localIndex int
	sharedSeen int

	// myCount mirrors this player's own score so consecutive answers
	// are not under-counted by snapshot lag. The store contract remains
	// an unconditional overwrite; see session.RecordCorrectAnswer.
	myCount int

	// Memory-board local state: every player flips the shared layout
	// independently.
	flipped []int
	matched map[int]bool
	moves   int

	// One-shot latches.
	playingWritten  bool
	finishRecorded  bool
	finishedWritten bool
	historySaved    bool

	sess   *session.State
	roster []*room.Player
}

// NewFSM builds an idle machine for one player.
func NewFSM(playerID string, isHost bool, settings game.Settings) *FSM {
	return &FSM{
		playerID: playerID,
		isHost:   isHost,
		settings: settings,
		stage:    StageIdle,
		matched:  make(map[int]bool),
	}
}

func (f *FSM) Stage() Stage            { return f.stage }
func (f *FSM) Countdown() int          { return f.countdown }
func (f *FSM) TimeLeft() int           { return f.timeLeft }
func (f *FSM) LocalIndex() int         { return f.localIndex }
func (f *FSM) Score() int              { return f.myCount }
func (f *FSM) Moves() int              { return f.moves }
func (f *FSM) Session() *session.State { return f.sess }

func (f *FSM) isSprint() bool {
	return f.settings.GameType == game.TypeMathRace && f.settings.GameMode == game.ModeSprint
}

func (f *FSM) isRace() bool {
	return f.settings.GameType == game.TypeMathRace && f.settings.GameMode != game.ModeSprint
}

func (f *FSM) isShape() bool  { return f.settings.GameType == game.TypeShapeMatch }
func (f *FSM) isMemory() bool { return f.settings.GameType == game.TypeMemory }

// ApplyRoom feeds a room snapshot: roster changes feed the sprint
// all-finished check, settings follow the replay/new-config flow.
func (f *FSM) ApplyRoom(r *room.Room) []Effect {
	if r == nil {
		return nil
	}
	f.roster = r.ActivePlayers()
	f.settings = r.Settings
	return f.hostChecks()
}

// ApplySession feeds a session snapshot. Snapshots fully replace the
// cached remote state; local ephemeral state persists across them.
func (f *FSM) ApplySession(s *session.State) []Effect {
	if s == nil {
		// Session cleared (replay): back to idle for the next attempt.
		f.reset()
		return nil
	}
	f.sess = s

	var effs []Effect
	switch s.Phase {
	case session.PhaseCountdown:
		if f.stage == StageIdle {
			f.stage = StageCountdown
			f.countdown = session.CountdownSeconds
		}

	case session.PhasePlaying:
		if f.stage == StageIdle || f.stage == StageCountdown {
			f.startPlaying(s)
		} else if f.stage == StagePlaying && f.isShape() && s.CurrentIndex != f.sharedSeen {
			// Host advanced the shared cursor: restart the question timer.
			f.sharedSeen = s.CurrentIndex
			f.timeLeft = f.settings.TimePerRound
		}
		effs = append(effs, f.hostChecks()...)

	case session.PhaseFinished:
		effs = append(effs, f.enterFinished()...)
	}
	return effs
}

func (f *FSM) reset() {
	f.stage = StageIdle
	f.countdown = 0
	f.timeLeft = 0
	f.localIndex = 0
	f.sharedSeen = 0
	f.myCount = 0
	f.flipped = nil
	f.matched = make(map[int]bool)
	f.moves = 0
	f.playingWritten = false
	f.finishRecorded = false
	f.finishedWritten = false
	f.historySaved = false
	f.sess = nil
}

func (f *FSM) startPlaying(s *session.State) {
	f.stage = StagePlaying
	f.sharedSeen = s.CurrentIndex
	if !f.isMemory() {
		// Sprint reuses timePerRound as the total game clock; the other
		// modes run it per question.
		f.timeLeft = f.settings.TimePerRound
	}
}

func (f *FSM) enterFinished() []Effect {
	if f.stage == StageFinished {
		return nil
	}
	f.stage = StageFinished
	f.timeLeft = 0
	f.countdown = 0
	if f.isHost && !f.historySaved {
		f.historySaved = true
		return []Effect{SaveHistoryEffect{}}
	}
	return nil
}

// hostChecks are the snapshot-driven game-end detections only the host's
// machine issues. Duplicate finished writes are idempotent.
func (f *FSM) hostChecks() []Effect {
	if !f.isHost || f.sess == nil || f.sess.Phase != session.PhasePlaying {
		return nil
	}
	if f.stage != StagePlaying && f.stage != StageDone {
		return nil
	}

	switch {
	case f.isMemory():
		target := f.sess.PairCount()
		for _, score := range f.sess.Progress {
			if target > 0 && score >= target {
				return f.writeFinished()
			}
		}
	case f.isShape():
		for _, score := range f.sess.Progress {
			if f.settings.Rounds > 0 && score >= f.settings.Rounds {
				return f.writeFinished()
			}
		}
	case f.isSprint():
		if len(f.roster) == 0 {
			return nil
		}
		for _, p := range f.roster {
			if !f.sess.Finished(p.ID) {
				return nil
			}
		}
		return f.writeFinished()
	}
	return nil
}

func (f *FSM) writeFinished() []Effect {
	if f.finishedWritten {
		return nil
	}
	f.finishedWritten = true
	return []Effect{SetPhaseEffect{Phase: session.PhaseFinished}}
}

// Tick advances the local one-second clock.
func (f *FSM) Tick() []Effect {
	switch f.stage {
	case StageCountdown:
		return f.tickCountdown()
	case StagePlaying:
		return f.tickPlaying()
	case StageDone:
		if f.isSprint() {
			return f.tickGlobalClock()
		}
	}
	return nil
}

func (f *FSM) tickCountdown() []Effect {
	if f.countdown > 0 {
		f.countdown--
	}
	if f.countdown > 0 {
		return nil
	}
	// Local countdown hit zero. Only the host writes the transition;
	// everyone else keeps rendering "Go!" until the phase change lands.
	if f.isHost && !f.playingWritten {
		f.playingWritten = true
		return []Effect{SetPhaseEffect{Phase: session.PhasePlaying}}
	}
	return nil
}

func (f *FSM) tickPlaying() []Effect {
	switch {
	case f.isMemory():
		return nil
	case f.isSprint():
		return f.tickGlobalClock()
	case f.isRace():
		return f.tickRaceQuestion()
	case f.isShape():
		return f.tickSharedQuestion()
	}
	return nil
}

// tickGlobalClock runs the sprint's single game-length countdown. Every
// client counts down independently; whichever reaches zero first ends
// the game for everyone.
func (f *FSM) tickGlobalClock() []Effect {
	if f.timeLeft > 0 {
		f.timeLeft--
	}
	if f.timeLeft > 0 {
		return nil
	}
	return f.writeFinished()
}

// tickRaceQuestion runs the per-question timer in race mode. Expiry
// skips the question: the local index advances with no score change.
func (f *FSM) tickRaceQuestion() []Effect {
	if f.timeLeft > 0 {
		f.timeLeft--
	}
	if f.timeLeft > 0 {
		return nil
	}
	f.localIndex++
	if f.localIndex >= f.settings.Rounds {
		return f.finishRace()
	}
	f.timeLeft = f.settings.TimePerRound
	return nil
}

// finishRace implements first-finisher-ends-for-everyone: the first
// player through their pool records a finish time and then
// unconditionally ends the session.
func (f *FSM) finishRace() []Effect {
	f.stage = StageDone
	var effs []Effect
	if !f.finishRecorded {
		f.finishRecorded = true
		effs = append(effs, RecordFinishedEffect{})
	}
	effs = append(effs, f.writeFinished()...)
	return effs
}

// tickSharedQuestion runs the shared-cursor timer in shape match. Only
// the host acts on expiry; other clients wait for the cursor to move.
func (f *FSM) tickSharedQuestion() []Effect {
	if f.timeLeft > 0 {
		f.timeLeft--
	}
	if f.timeLeft > 0 || !f.isHost {
		return nil
	}
	next := f.sharedSeen + 1
	if next >= f.settings.Rounds {
		return f.writeFinished()
	}
	return []Effect{AdvanceEffect{NextIndex: next}}
}

// AnswerResult reports what an answer submission did.
type AnswerResult struct {
	Correct  bool `json:"correct"`
	NewScore int  `json:"newScore"`
	Finished bool `json:"finished"`
}

// CurrentQuestion returns the math question this player should answer,
// or nil outside playing or past the pool.
func (f *FSM) CurrentQuestion() *game.Question {
	if f.sess == nil || f.settings.GameType != game.TypeMathRace {
		return nil
	}
	if f.localIndex >= len(f.sess.Questions) {
		return nil
	}
	q := f.sess.Questions[f.localIndex]
	return &q
}

// CurrentShapeQuestion returns the shared-cursor shape question.
func (f *FSM) CurrentShapeQuestion() *game.ShapeQuestion {
	if f.sess == nil || !f.isShape() {
		return nil
	}
	if f.sharedSeen >= len(f.sess.ShapeQuestions) {
		return nil
	}
	q := f.sess.ShapeQuestions[f.sharedSeen]
	return &q
}

// AnswerMath handles one math answer at this player's own index. Race:
// only correct answers advance, wrong ones wait out the question timer.
// Sprint: every answer advances the local index, score counts correct
// ones, and reaching the configured rounds records the finish time.
func (f *FSM) AnswerMath(value int) (AnswerResult, []Effect) {
	if f.stage != StagePlaying || f.settings.GameType != game.TypeMathRace {
		return AnswerResult{}, nil
	}
	q := f.CurrentQuestion()
	if q == nil {
		return AnswerResult{}, nil
	}
	correct := game.CheckAnswer(*q, value)

	var effs []Effect
	if f.isSprint() {
		if correct {
			f.myCount++
			effs = append(effs, RecordAnswerEffect{NewCount: f.myCount})
		}
		f.localIndex++
		if correct && f.myCount >= f.settings.Rounds && !f.finishRecorded {
			f.finishRecorded = true
			f.stage = StageDone
			effs = append(effs, RecordFinishedEffect{})
		}
		return AnswerResult{Correct: correct, NewScore: f.myCount, Finished: f.stage == StageDone}, effs
	}

	if correct {
		f.myCount++
		effs = append(effs, RecordAnswerEffect{NewCount: f.myCount})
		f.localIndex++
		f.timeLeft = f.settings.TimePerRound
		if f.localIndex >= f.settings.Rounds {
			effs = append(effs, f.finishRace()...)
		}
	}
	return AnswerResult{Correct: correct, NewScore: f.myCount, Finished: f.stage == StageDone}, effs
}

// AnswerShape handles one shape answer at the shared cursor.
func (f *FSM) AnswerShape(optionID string) (AnswerResult, []Effect) {
	if f.stage != StagePlaying || !f.isShape() {
		return AnswerResult{}, nil
	}
	q := f.CurrentShapeQuestion()
	if q == nil {
		return AnswerResult{}, nil
	}
	correct := game.CheckShapeAnswer(*q, optionID)

	var effs []Effect
	if correct {
		f.myCount++
		effs = append(effs, RecordAnswerEffect{NewCount: f.myCount})
		if f.myCount >= f.settings.Rounds {
			effs = append(effs, f.writeFinished()...)
		}
	}
	return AnswerResult{Correct: correct, NewScore: f.myCount}, effs
}

// FlipResult reports what a memory-board flip did.
type FlipResult struct {
	Flipped    []int `json:"flipped"`
	Resolved   bool  `json:"resolved"`
	Matched    bool  `json:"matched"`
	PairsFound int   `json:"pairsFound"`
	Moves      int   `json:"moves"`
}

// Flip turns one card face up on this player's private view of the
// shared board. The second flip of a turn resolves immediately: a match
// locks both cards and reports the new pair count, a miss turns both
// back over. Only the player's own discovered-pair count is shared.
func (f *FSM) Flip(index int) (FlipResult, []Effect) {
	if f.stage != StagePlaying || !f.isMemory() || f.sess == nil {
		return FlipResult{}, nil
	}
	if index < 0 || index >= len(f.sess.MemoryCards) {
		return FlipResult{}, nil
	}
	if f.matched[index] {
		return f.flipResult(false, false), nil
	}
	for _, i := range f.flipped {
		if i == index {
			return f.flipResult(false, false), nil
		}
	}

	f.flipped = append(f.flipped, index)
	if len(f.flipped) < 2 {
		return f.flipResult(false, false), nil
	}

	f.moves++
	first, second := f.flipped[0], f.flipped[1]
	f.flipped = nil
	isMatch := f.sess.MemoryCards[first].PairID == f.sess.MemoryCards[second].PairID
	if !isMatch {
		return f.flipResult(true, false), nil
	}

	f.matched[first] = true
	f.matched[second] = true
	f.myCount = len(f.matched) / 2

	effs := []Effect{RecordAnswerEffect{NewCount: f.myCount}}
	if f.isHost && f.myCount >= f.sess.PairCount() {
		effs = append(effs, f.writeFinished()...)
	}
	return f.flipResult(true, true), effs
}

func (f *FSM) flipResult(resolved, matched bool) FlipResult {
	return FlipResult{
		Flipped:    append([]int(nil), f.flipped...),
		Resolved:   resolved,
		Matched:    matched,
		PairsFound: f.myCount,
		Moves:      f.moves,
	}
}

// MatchedIndices returns this player's locked card indices in no
// particular order; callers treat it as a set.
func (f *FSM) MatchedIndices() []int {
	out := make([]int, 0, len(f.matched))
	for i := range f.matched {
		out = append(out, i)
	}
	return out
}
