package client

import (
	"testing"

	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

func raceSettings(rounds, timePerRound int) game.Settings {
	s := game.DefaultSettings()
	s.Rounds = rounds
	s.TimePerRound = timePerRound
	return s
}

func sprintSettings(rounds, total int) game.Settings {
	s := raceSettings(rounds, total)
	s.GameMode = game.ModeSprint
	return s
}

func mathState(settings game.Settings, poolSize int, players ...string) *session.State {
	progress := make(map[string]int, len(players))
	for _, p := range players {
		progress[p] = 0
	}
	return &session.State{
		GameType:  game.TypeMathRace,
		Questions: game.GenerateQuestions(poolSize, settings.Difficulty, settings.Operations),
		Progress:  progress,
		Phase:     session.PhaseCountdown,
	}
}

func roster(ids ...string) []*room.Player {
	players := make([]*room.Player, len(ids))
	for i, id := range ids {
		players[i] = &room.Player{ID: id, Name: id, IsHost: i == 0}
	}
	return players
}

func applyRoster(f *FSM, players []*room.Player) []Effect {
	return f.ApplyRoom(&room.Room{
		ID:       "r1",
		Status:   room.StatusPlaying,
		Players:  players,
		Settings: f.settings,
	})
}

func playing(s *session.State) *session.State {
	out := *s
	out.Phase = session.PhasePlaying
	return &out
}

// effectsOf filters effects by concrete type.
func phaseWrites(effs []Effect) []session.Phase {
	var out []session.Phase
	for _, e := range effs {
		if p, ok := e.(SetPhaseEffect); ok {
			out = append(out, p.Phase)
		}
	}
	return out
}

func TestCountdownOnlyHostWritesPlaying(t *testing.T) {
	settings := raceSettings(5, 10)
	host := NewFSM("p1", true, settings)
	guest := NewFSM("p2", false, settings)
	state := mathState(settings, 5, "p1", "p2")

	for _, f := range []*FSM{host, guest} {
		if effs := f.ApplySession(state); len(effs) != 0 {
			t.Fatalf("countdown snapshot produced effects: %v", effs)
		}
		if f.Stage() != StageCountdown {
			t.Fatalf("stage = %s, want countdown", f.Stage())
		}
	}

	var hostEffs, guestEffs []Effect
	for range session.CountdownSeconds {
		hostEffs = append(hostEffs, host.Tick()...)
		guestEffs = append(guestEffs, guest.Tick()...)
	}

	if got := phaseWrites(hostEffs); len(got) != 1 || got[0] != session.PhasePlaying {
		t.Fatalf("host phase writes = %v, want [playing]", got)
	}
	if len(guestEffs) != 0 {
		t.Fatalf("guest emitted effects during countdown: %v", guestEffs)
	}

	// Extra ticks must not re-write the phase.
	if effs := host.Tick(); len(effs) != 0 {
		t.Fatalf("host re-wrote playing: %v", effs)
	}

	// The write lands and comes back as a snapshot; both enter playing.
	for _, f := range []*FSM{host, guest} {
		f.ApplySession(playing(state))
		if f.Stage() != StagePlaying {
			t.Fatalf("stage = %s, want playing", f.Stage())
		}
		if f.TimeLeft() != settings.TimePerRound {
			t.Fatalf("timeLeft = %d, want %d", f.TimeLeft(), settings.TimePerRound)
		}
	}
}

func TestRaceCorrectAnswerAdvancesAndResetsTimer(t *testing.T) {
	settings := raceSettings(5, 10)
	f := NewFSM("p1", false, settings)
	state := mathState(settings, 5, "p1")
	f.ApplySession(state)
	for range session.CountdownSeconds {
		f.Tick()
	}
	f.ApplySession(playing(state))

	f.Tick()
	f.Tick()
	if f.TimeLeft() != 8 {
		t.Fatalf("timeLeft = %d, want 8", f.TimeLeft())
	}

	q := f.CurrentQuestion()
	res, effs := f.AnswerMath(q.CorrectAnswer)
	if !res.Correct {
		t.Fatal("correct answer reported wrong")
	}
	if f.LocalIndex() != 1 {
		t.Fatalf("localIndex = %d, want 1", f.LocalIndex())
	}
	if f.TimeLeft() != settings.TimePerRound {
		t.Fatalf("timer not reset: %d", f.TimeLeft())
	}
	if len(effs) != 1 {
		t.Fatalf("effects = %v, want one recordAnswer", effs)
	}
	if rec, ok := effs[0].(RecordAnswerEffect); !ok || rec.NewCount != 1 {
		t.Fatalf("effect = %v, want RecordAnswerEffect{1}", effs[0])
	}
}

func TestRaceWrongAnswerDoesNotAdvance(t *testing.T) {
	settings := raceSettings(5, 10)
	f := NewFSM("p1", false, settings)
	state := mathState(settings, 5, "p1")
	f.ApplySession(playing(state))

	q := f.CurrentQuestion()
	res, effs := f.AnswerMath(q.CorrectAnswer + 1)
	if res.Correct {
		t.Fatal("wrong answer reported correct")
	}
	if f.LocalIndex() != 0 || len(effs) != 0 {
		t.Fatalf("wrong answer advanced: index=%d effects=%v", f.LocalIndex(), effs)
	}
}

func TestRaceTimeoutSkipsQuestion(t *testing.T) {
	settings := raceSettings(3, 2)
	f := NewFSM("p1", false, settings)
	state := mathState(settings, 3, "p1")
	f.ApplySession(playing(state))

	f.Tick()
	f.Tick()
	if f.LocalIndex() != 1 {
		t.Fatalf("localIndex = %d, want 1 after timeout", f.LocalIndex())
	}
	if f.Score() != 0 {
		t.Fatalf("score changed on timeout: %d", f.Score())
	}
	if f.TimeLeft() != settings.TimePerRound {
		t.Fatalf("timer not reset after skip: %d", f.TimeLeft())
	}
}

func TestRaceFirstFinisherEndsSession(t *testing.T) {
	settings := raceSettings(3, 10)
	f := NewFSM("p1", false, settings)
	state := mathState(settings, 3, "p1", "p2")
	f.ApplySession(playing(state))

	var all []Effect
	for i := range 3 {
		q := f.CurrentQuestion()
		if q == nil {
			t.Fatalf("no question at index %d", i)
		}
		_, effs := f.AnswerMath(q.CorrectAnswer)
		all = append(all, effs...)
	}

	if f.Stage() != StageDone {
		t.Fatalf("stage = %s, want done", f.Stage())
	}
	if f.LocalIndex() != 3 {
		t.Fatalf("localIndex = %d, want exactly rounds", f.LocalIndex())
	}
	var finished, ended int
	for _, e := range all {
		switch e := e.(type) {
		case RecordFinishedEffect:
			finished++
		case SetPhaseEffect:
			if e.Phase == session.PhaseFinished {
				ended++
			}
		}
	}
	if finished != 1 || ended != 1 {
		t.Fatalf("finish effects = %d/%d, want 1/1", finished, ended)
	}

	// No further answering past the pool.
	if q := f.CurrentQuestion(); q != nil {
		t.Fatal("question available past the configured rounds")
	}
}

func TestSprintAllFinishedEndsBeforeClock(t *testing.T) {
	settings := sprintSettings(2, 60)
	host := NewFSM("p1", true, settings)
	state := mathState(settings, session.SprintPoolSize, "p1", "p2")
	applyRoster(host, roster("p1", "p2"))
	host.ApplySession(playing(state))

	// Host finishes its own threshold.
	var effs []Effect
	for host.Stage() == StagePlaying {
		q := host.CurrentQuestion()
		_, e := host.AnswerMath(q.CorrectAnswer)
		effs = append(effs, e...)
	}
	if host.Stage() != StageDone {
		t.Fatalf("stage = %s, want done", host.Stage())
	}
	hasFinishRecord := false
	for _, e := range effs {
		if _, ok := e.(RecordFinishedEffect); ok {
			hasFinishRecord = true
		}
	}
	if !hasFinishRecord {
		t.Fatal("threshold reached without a finish record")
	}

	// Snapshot with only the host finished: no phase write yet.
	st := playing(state)
	st.Progress = map[string]int{"p1": 2, "p2": 1}
	st.FinishTimes = map[string]int64{"p1": 1000}
	if got := phaseWrites(host.ApplySession(st)); len(got) != 0 {
		t.Fatalf("ended with a player still running: %v", got)
	}

	// Both finished: host ends the session without waiting for the clock.
	st2 := playing(state)
	st2.Progress = map[string]int{"p1": 2, "p2": 2}
	st2.FinishTimes = map[string]int64{"p1": 1000, "p2": 2000}
	if got := phaseWrites(host.ApplySession(st2)); len(got) != 1 || got[0] != session.PhaseFinished {
		t.Fatalf("phase writes = %v, want [finished]", got)
	}

	// Re-delivery of the same snapshot must not write again.
	if got := phaseWrites(host.ApplySession(st2)); len(got) != 0 {
		t.Fatalf("duplicate finished write: %v", got)
	}
}

func TestSprintClockExpiryEndsSession(t *testing.T) {
	settings := sprintSettings(50, 3)
	f := NewFSM("p2", false, settings)
	state := mathState(settings, session.SprintPoolSize, "p1", "p2")
	f.ApplySession(playing(state))

	var effs []Effect
	for range 3 {
		effs = append(effs, f.Tick()...)
	}
	if got := phaseWrites(effs); len(got) != 1 || got[0] != session.PhaseFinished {
		t.Fatalf("phase writes = %v, want [finished] at clock zero", got)
	}
	// Any client may end the game on expiry, host or not, but only once.
	if effs := f.Tick(); len(effs) != 0 {
		t.Fatalf("re-wrote finished after expiry: %v", effs)
	}
}

func TestSprintWrongAnswerAdvancesLocalIndex(t *testing.T) {
	settings := sprintSettings(10, 60)
	f := NewFSM("p1", false, settings)
	state := mathState(settings, session.SprintPoolSize, "p1")
	f.ApplySession(playing(state))

	q := f.CurrentQuestion()
	res, _ := f.AnswerMath(q.CorrectAnswer + 1)
	if res.Correct {
		t.Fatal("wrong answer reported correct")
	}
	if f.LocalIndex() != 1 {
		t.Fatalf("localIndex = %d, want 1: sprint advances on every answer", f.LocalIndex())
	}
	if f.Score() != 0 {
		t.Fatalf("score = %d, want 0", f.Score())
	}
}

func TestShapeHostAdvancesSharedCursorOnTimeout(t *testing.T) {
	settings := game.DefaultSettings()
	settings.GameType = game.TypeShapeMatch
	settings.Rounds = 2
	settings.TimePerRound = 2

	state := &session.State{
		GameType:       game.TypeShapeMatch,
		ShapeQuestions: game.GenerateShapeQuestions(2, settings.Difficulty, game.ShapeModeName),
		Progress:       map[string]int{"p1": 0, "p2": 0},
		Phase:          session.PhasePlaying,
	}

	host := NewFSM("p1", true, settings)
	guest := NewFSM("p2", false, settings)
	host.ApplySession(state)
	guest.ApplySession(state)

	guest.Tick()
	guest.Tick()
	if effs := guest.Tick(); len(effs) != 0 {
		t.Fatalf("guest advanced the shared cursor: %v", effs)
	}

	host.Tick()
	effs := host.Tick()
	if len(effs) != 1 {
		t.Fatalf("effects = %v, want one advance", effs)
	}
	if adv, ok := effs[0].(AdvanceEffect); !ok || adv.NextIndex != 1 {
		t.Fatalf("effect = %v, want AdvanceEffect{1}", effs[0])
	}

	// The advance lands; both timers restart.
	st := *state
	st.CurrentIndex = 1
	host.ApplySession(&st)
	guest.ApplySession(&st)
	if host.TimeLeft() != settings.TimePerRound || guest.TimeLeft() != settings.TimePerRound {
		t.Fatalf("timers not restarted: host=%d guest=%d", host.TimeLeft(), guest.TimeLeft())
	}

	// Timeout on the last question ends the session instead.
	host.Tick()
	effs = host.Tick()
	if got := phaseWrites(effs); len(got) != 1 || got[0] != session.PhaseFinished {
		t.Fatalf("phase writes = %v, want [finished] on last-question timeout", got)
	}
}

func TestShapeAnswerScoresAtSharedCursor(t *testing.T) {
	settings := game.DefaultSettings()
	settings.GameType = game.TypeShapeMatch
	settings.Rounds = 3
	settings.TimePerRound = 10

	state := &session.State{
		GameType:       game.TypeShapeMatch,
		ShapeQuestions: game.GenerateShapeQuestions(3, settings.Difficulty, game.ShapeModeName),
		Progress:       map[string]int{"p1": 0},
		Phase:          session.PhasePlaying,
	}
	f := NewFSM("p1", false, settings)
	f.ApplySession(state)

	q := f.CurrentShapeQuestion()
	res, effs := f.AnswerShape(q.CorrectID)
	if !res.Correct || res.NewScore != 1 {
		t.Fatalf("result = %+v, want correct score 1", res)
	}
	if len(effs) != 1 {
		t.Fatalf("effects = %v, want one recordAnswer", effs)
	}

	// The cursor has not moved; a second answer at the same question
	// still scores (the shared cursor is host-driven, answers are not).
	res, _ = f.AnswerShape(q.Options[0].ID)
	if res.Correct && q.Options[0].ID != q.CorrectID {
		t.Fatal("wrong option scored")
	}
}

func TestMemoryFlipResolvesPairsLocally(t *testing.T) {
	settings := game.DefaultSettings()
	settings.GameType = game.TypeMemory
	settings.Rounds = 3

	cards := game.GenerateMemoryCards(3)
	state := &session.State{
		GameType:    game.TypeMemory,
		MemoryCards: cards,
		Progress:    map[string]int{"p1": 0, "p2": 0},
		Phase:       session.PhasePlaying,
	}

	// Index pairs by pairId so the test can flip deliberately.
	byPair := make(map[int][]int)
	for i, c := range cards {
		byPair[c.PairID] = append(byPair[c.PairID], i)
	}

	host := NewFSM("p1", true, settings)
	applyRoster(host, roster("p1", "p2"))
	host.ApplySession(state)

	var pairs [][]int
	for _, idx := range byPair {
		pairs = append(pairs, idx)
	}

	// Mismatch first: flip one card from each of two pairs.
	res, effs := host.Flip(pairs[0][0])
	if res.Resolved || len(effs) != 0 {
		t.Fatalf("single flip resolved: %+v %v", res, effs)
	}
	res, effs = host.Flip(pairs[1][0])
	if !res.Resolved || res.Matched || len(effs) != 0 {
		t.Fatalf("mismatch = %+v %v, want resolved non-match, no effects", res, effs)
	}
	if res.Moves != 1 {
		t.Fatalf("moves = %d, want 1", res.Moves)
	}

	// Match every pair; the last one ends the game (host check).
	var all []Effect
	for _, idx := range pairs {
		_, e1 := host.Flip(idx[0])
		all = append(all, e1...)
		res, e2 := host.Flip(idx[1])
		all = append(all, e2...)
		if !res.Matched {
			t.Fatalf("pair %v did not match", idx)
		}
	}
	if host.Score() != 3 {
		t.Fatalf("pairs found = %d, want 3", host.Score())
	}

	var counts []int
	gotFinished := false
	for _, e := range all {
		switch e := e.(type) {
		case RecordAnswerEffect:
			counts = append(counts, e.NewCount)
		case SetPhaseEffect:
			if e.Phase == session.PhaseFinished {
				gotFinished = true
			}
		}
	}
	if len(counts) != 3 || counts[0] != 1 || counts[1] != 2 || counts[2] != 3 {
		t.Fatalf("pair counts = %v, want [1 2 3]", counts)
	}
	if !gotFinished {
		t.Fatal("completing the board did not end the session")
	}
}

func TestMemoryHostEndsWhenAnotherPlayerCompletes(t *testing.T) {
	settings := game.DefaultSettings()
	settings.GameType = game.TypeMemory

	state := &session.State{
		GameType:    game.TypeMemory,
		MemoryCards: game.GenerateMemoryCards(3),
		Progress:    map[string]int{"p1": 0, "p2": 0},
		Phase:       session.PhasePlaying,
	}
	host := NewFSM("p1", true, settings)
	applyRoster(host, roster("p1", "p2"))
	host.ApplySession(state)

	st := *state
	st.Progress = map[string]int{"p1": 1, "p2": 3}
	if got := phaseWrites(host.ApplySession(&st)); len(got) != 1 || got[0] != session.PhaseFinished {
		t.Fatalf("phase writes = %v, want [finished] when any player clears the board", got)
	}
}

func TestReplayResetsMachine(t *testing.T) {
	settings := raceSettings(2, 10)
	f := NewFSM("p1", true, settings)
	state := mathState(settings, 2, "p1")
	f.ApplySession(playing(state))
	q := f.CurrentQuestion()
	f.AnswerMath(q.CorrectAnswer)

	st := *state
	st.Phase = session.PhaseFinished
	effs := f.ApplySession(&st)
	if f.Stage() != StageFinished {
		t.Fatalf("stage = %s, want finished", f.Stage())
	}
	sawHistory := false
	for _, e := range effs {
		if _, ok := e.(SaveHistoryEffect); ok {
			sawHistory = true
		}
	}
	if !sawHistory {
		t.Fatal("host did not save history on finish")
	}
	// Finished snapshot again: latch holds.
	for _, e := range f.ApplySession(&st) {
		if _, ok := e.(SaveHistoryEffect); ok {
			t.Fatal("history saved twice")
		}
	}

	// Session cleared by replay.
	f.ApplySession(nil)
	if f.Stage() != StageIdle || f.Score() != 0 || f.LocalIndex() != 0 {
		t.Fatalf("machine not reset: stage=%s score=%d index=%d", f.Stage(), f.Score(), f.LocalIndex())
	}

	// A fresh session runs the countdown again.
	f.ApplySession(mathState(settings, 2, "p1"))
	if f.Stage() != StageCountdown || f.Countdown() != session.CountdownSeconds {
		t.Fatalf("replay did not restart countdown: stage=%s countdown=%d", f.Stage(), f.Countdown())
	}
}

func TestGuestNeverEndsSprintEarly(t *testing.T) {
	settings := sprintSettings(1, 60)
	guest := NewFSM("p2", false, settings)
	state := mathState(settings, session.SprintPoolSize, "p1", "p2")
	applyRoster(guest, roster("p1", "p2"))
	guest.ApplySession(playing(state))

	st := playing(state)
	st.FinishTimes = map[string]int64{"p1": 1, "p2": 2}
	if got := phaseWrites(guest.ApplySession(st)); len(got) != 0 {
		t.Fatalf("guest wrote the all-finished transition: %v", got)
	}
}
