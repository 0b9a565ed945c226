package history_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ludikoapp/ludiko/internal/database"
	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/history"
	"github.com/ludikoapp/ludiko/internal/migrations"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

func testStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return history.NewStore(db)
}

func record(code string, players ...history.PlayerResult) history.GameRecord {
	return history.GameRecord{
		RoomCode: code,
		GameType: game.TypeMathRace,
		GameMode: game.ModeRace,
		Rounds:   10,
		Players:  players,
	}
}

func TestSaveAndListHistory(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	rec := record("ABCDEF",
		history.PlayerResult{PlayerID: "p1", Name: "Ada", Score: 10, Accuracy: 100, Rank: 1},
		history.PlayerResult{PlayerID: "p2", Name: "Ben", Score: 7, Accuracy: 70, Rank: 2},
	)
	if err := s.SaveGameHistory(ctx, rec); err != nil {
		t.Fatalf("saving history: %v", err)
	}

	records, err := s.RecentHistory(ctx)
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.ID == "" || got.PlayedAt == "" {
		t.Fatalf("id/playedAt not filled in: %+v", got)
	}
	if got.RoomCode != "ABCDEF" || len(got.Players) != 2 {
		t.Fatalf("record = %+v", got)
	}
	if w := got.Winner(); w == nil || w.Name != "Ada" {
		t.Fatalf("winner = %+v, want Ada", w)
	}
}

func TestSaveFinishedGameBuildsRanking(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	settings := game.DefaultSettings()
	settings.Rounds = 10
	rm := &room.Room{
		ID:   "r1",
		Code: "ABCDEF",
		Players: []*room.Player{
			{ID: "p1", Name: "Ada", IsHost: true},
			nil, // left player: roster hole
			{ID: "p3", Name: "Cid"},
		},
		Settings: settings,
	}
	sess := &session.State{
		GameType:    game.TypeMathRace,
		Progress:    map[string]int{"p1": 6, "p3": 10},
		FinishTimes: map[string]int64{"p3": 5000},
		Phase:       session.PhaseFinished,
	}

	if err := s.SaveFinishedGame(ctx, rm, sess); err != nil {
		t.Fatalf("saving finished game: %v", err)
	}
	records, err := s.RecentHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if len(got.Players) != 2 {
		t.Fatalf("got %d players, want the hole dropped", len(got.Players))
	}
	if got.Players[0].Name != "Cid" || got.Players[0].Rank != 1 {
		t.Fatalf("first place = %+v, want Cid", got.Players[0])
	}
	if got.Players[0].FinishTime != 5000 {
		t.Fatalf("finishTime = %d, want 5000", got.Players[0].FinishTime)
	}
	if got.Players[1].Accuracy != 60 {
		t.Fatalf("accuracy = %d, want 60", got.Players[1].Accuracy)
	}
}

func TestLeaderboardOrdersByWinsThenAccuracy(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// Ada wins twice, Ben once with higher accuracy than Cid's one win.
	games := []history.GameRecord{
		record("AAAAAA",
			history.PlayerResult{Name: "Ada", Accuracy: 80, Rank: 1},
			history.PlayerResult{Name: "Ben", Accuracy: 90, Rank: 2},
		),
		record("BBBBBB",
			history.PlayerResult{Name: "Ada", Accuracy: 60, Rank: 1},
			history.PlayerResult{Name: "Cid", Accuracy: 40, Rank: 2},
		),
		record("CCCCCC",
			history.PlayerResult{Name: "Ben", Accuracy: 90, Rank: 1},
			history.PlayerResult{Name: "Cid", Accuracy: 60, Rank: 1},
		),
	}
	for _, g := range games {
		if err := s.SaveGameHistory(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ComputeLeaderboard(ctx)
	if err != nil {
		t.Fatalf("computing leaderboard: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"Ada", "Ben", "Cid"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
	if entries[0].Wins != 2 || entries[0].GamesPlayed != 2 || entries[0].AvgAccuracy != 70 {
		t.Fatalf("Ada = %+v", entries[0])
	}
}

func TestTeacherAuthFlow(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	teacher, err := s.CreateTeacher(ctx, "ada@school.example", "Ada", "correct-horse")
	if err != nil {
		t.Fatalf("creating teacher: %v", err)
	}
	if teacher.PasswordHash == "correct-horse" {
		t.Fatal("password stored in the clear")
	}

	if _, err := s.Login(ctx, "ada@school.example", "wrong"); !errors.Is(err, history.ErrBadCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrBadCredentials", err)
	}
	if _, err := s.Login(ctx, "nobody@school.example", "x"); !errors.Is(err, history.ErrBadCredentials) {
		t.Fatalf("unknown email: err = %v, want ErrBadCredentials", err)
	}

	sess, err := s.Login(ctx, "ada@school.example", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := s.SessionByID(ctx, sess.ID)
	if err != nil || got.TeacherID != teacher.ID {
		t.Fatalf("session lookup = %+v, %v", got, err)
	}

	if err := s.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s.SessionByID(ctx, sess.ID); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("session survived logout: %v", err)
	}
	// Logout of a gone session is not an error.
	if err := s.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("double logout: %v", err)
	}
}

func TestClassSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	cs, err := s.CreateClassSession(ctx, "t1", "Monday 3B", 25, game.DefaultSettings())
	if err != nil {
		t.Fatalf("creating class session: %v", err)
	}
	if len(cs.StudentCodes) != 25 {
		t.Fatalf("got %d codes, want 25", len(cs.StudentCodes))
	}
	seen := make(map[string]bool)
	for _, code := range cs.StudentCodes {
		if seen[code] {
			t.Fatalf("duplicate student code %q", code)
		}
		seen[code] = true
		dash := strings.IndexByte(code, '-')
		if dash <= 0 || len(code)-dash-1 != 2 {
			t.Fatalf("malformed code %q", code)
		}
	}

	listed, err := s.ClassSessionsByTeacher(ctx, "t1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("listing = %v, %v", listed, err)
	}

	rec := record("ABCDEF", history.PlayerResult{Name: "FOX-07", Score: 5, Accuracy: 50, Rank: 1})
	if _, err := s.SaveSessionResults(ctx, cs.ID, rec); err != nil {
		t.Fatalf("saving results: %v", err)
	}

	csv, err := s.ExportResultsCSV(ctx, cs.ID)
	if err != nil {
		t.Fatalf("exporting: %v", err)
	}
	out := string(csv)
	if !strings.Contains(out, "FOX-07") || !strings.HasPrefix(out, "recordedAt,") {
		t.Fatalf("csv = %q", out)
	}

	if err := s.DeleteClassSession(ctx, cs.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	results, err := s.ResultsForClassSession(ctx, cs.ID)
	if err != nil || len(results) != 0 {
		t.Fatalf("results survived deletion: %v, %v", results, err)
	}
}

func TestGenerateStudentCodesClampsToCodeSpace(t *testing.T) {
	codes := history.GenerateStudentCodes(history.MaxStudentCodes + 500)
	if len(codes) != history.MaxStudentCodes {
		t.Fatalf("got %d codes, want the full space of %d", len(codes), history.MaxStudentCodes)
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			t.Fatalf("duplicate student code %q", code)
		}
		seen[code] = true
	}
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	settings := game.DefaultSettings()
	settings.GameType = game.TypeShapeMatch
	tpl, err := s.CreateTemplate(ctx, "t1", "Friday shapes", settings)
	if err != nil {
		t.Fatalf("creating template: %v", err)
	}

	listed, err := s.TemplatesByTeacher(ctx, "t1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("listing = %v, %v", listed, err)
	}
	if listed[0].Settings.GameType != game.TypeShapeMatch {
		t.Fatalf("settings = %+v", listed[0].Settings)
	}

	if err := s.DeleteTemplate(ctx, tpl.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if err := s.DeleteTemplate(ctx, tpl.ID); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}
