// Package history persists finished games and teacher-facing records in
// SQLite, using per-model tables with JSONB data columns.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/ranking"
	"github.com/ludikoapp/ludiko/internal/room"
	"github.com/ludikoapp/ludiko/internal/session"
)

var ErrNotFound = errors.New("not found")

// RecentLimit caps how many past games feed the history list and the
// leaderboard aggregation.
const RecentLimit = 50

// PlayerResult is one player's final line in a saved game.
type PlayerResult struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Score      int    `json:"score"`
	Accuracy   int    `json:"accuracy"`
	Rank       int    `json:"rank"`
	FinishTime int64  `json:"finishTime,omitempty"`
}

// GameRecord is one finished game.
type GameRecord struct {
	ID         string         `json:"id"`
	RoomCode   string         `json:"roomCode"`
	GameType   game.Type      `json:"gameType"`
	GameMode   game.Mode      `json:"gameMode"`
	Difficulty string         `json:"difficulty"`
	Rounds     int            `json:"rounds"`
	PlayedAt   string         `json:"playedAt"`
	Players    []PlayerResult `json:"players"`
}

// Winner returns the rank-1 result.
func (g GameRecord) Winner() *PlayerResult {
	for i := range g.Players {
		if g.Players[i].Rank == 1 {
			return &g.Players[i]
		}
	}
	return nil
}

// LeaderboardEntry aggregates one player name's record across recent
// games. Aggregation is by display name: the anonymous player IDs change
// every join, the name is what a class recognizes.
type LeaderboardEntry struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Wins        int    `json:"wins"`
	GamesPlayed int    `json:"gamesPlayed"`
	AvgAccuracy int    `json:"avgAccuracy"`
}

// Store keeps all persistent records. The schema is owned by
// internal/migrations; callers run migrations before constructing one.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (s *Store) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (s *Store) del(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveGameHistory stores one finished game record. The caller supplies
// the record; SaveFinishedGame builds one from the live documents.
func (s *Store) SaveGameHistory(ctx context.Context, rec GameRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.PlayedAt == "" {
		rec.PlayedAt = nowUTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_history (id, played_at, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET played_at = excluded.played_at, data = excluded.data`,
		rec.ID, rec.PlayedAt, string(data),
	)
	return err
}

// BuildRecord converts the live room and session documents into a
// record, recomputing the ranking from the shared maps.
func BuildRecord(r *room.Room, sess *session.State) GameRecord {
	total := r.Settings.Rounds
	if sess.GameType == game.TypeMemory {
		total = sess.PairCount()
	}
	entries := ranking.Compute(r.Players, sess.Progress, sess.FinishTimes, total)

	rec := GameRecord{
		RoomCode:   r.Code,
		GameType:   r.Settings.GameType,
		GameMode:   r.Settings.GameMode,
		Difficulty: string(r.Settings.Difficulty),
		Rounds:     r.Settings.Rounds,
	}
	for _, e := range entries {
		pr := PlayerResult{
			PlayerID: e.Player.ID,
			Name:     e.Player.Name,
			Avatar:   e.Player.Avatar,
			Score:    e.Score,
			Accuracy: e.Accuracy,
			Rank:     e.Rank,
		}
		if e.Finished {
			pr.FinishTime = e.FinishTime
		}
		rec.Players = append(rec.Players, pr)
	}
	return rec
}

// SaveFinishedGame stores the record for a finished game. Implements the
// host runner's save hook.
func (s *Store) SaveFinishedGame(ctx context.Context, r *room.Room, sess *session.State) error {
	return s.SaveGameHistory(ctx, BuildRecord(r, sess))
}

// RecentHistory returns the newest games first, capped at RecentLimit.
func (s *Store) RecentHistory(ctx context.Context) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM game_history ORDER BY played_at DESC, id DESC LIMIT ?`,
		RecentLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec GameRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ComputeLeaderboard aggregates recent games per player name: wins
// first, then average accuracy as the tie-break.
func (s *Store) ComputeLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	records, err := s.RecentHistory(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		entry    LeaderboardEntry
		accuracy int
	}
	byName := make(map[string]*acc)
	var order []string
	for _, rec := range records {
		for _, p := range rec.Players {
			a, ok := byName[p.Name]
			if !ok {
				a = &acc{entry: LeaderboardEntry{Name: p.Name, Avatar: p.Avatar}}
				byName[p.Name] = a
				order = append(order, p.Name)
			}
			a.entry.GamesPlayed++
			a.accuracy += p.Accuracy
			if p.Rank == 1 {
				a.entry.Wins++
			}
		}
	}

	entries := make([]LeaderboardEntry, 0, len(order))
	for _, name := range order {
		a := byName[name]
		a.entry.AvgAccuracy = a.accuracy / a.entry.GamesPlayed
		entries = append(entries, a.entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		if entries[i].AvgAccuracy != entries[j].AvgAccuracy {
			return entries[i].AvgAccuracy > entries[j].AvgAccuracy
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
