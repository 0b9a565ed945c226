package history

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/ludikoapp/ludiko/internal/game"
)

var ErrBadCredentials = errors.New("bad credentials")

// Teacher is a registered teacher account.
type Teacher struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    string `json:"createdAt"`
}

// TeacherSession is one logged-in cookie session.
type TeacherSession struct {
	ID        string `json:"id"`
	TeacherID string `json:"teacherId"`
	Email     string `json:"email"`
}

// ClassSession is a teacher-managed session a class joins with
// pre-assigned student codes instead of free-typed names.
type ClassSession struct {
	ID           string        `json:"id"`
	TeacherID    string        `json:"teacherId"`
	Name         string        `json:"name"`
	StudentCodes []string      `json:"studentCodes"`
	Settings     game.Settings `json:"settings"`
	CreatedAt    string        `json:"createdAt"`
}

// SessionResults are the per-game results recorded under one class
// session for later review and export.
type SessionResults struct {
	ID             string     `json:"id"`
	ClassSessionID string     `json:"classSessionId"`
	Game           GameRecord `json:"game"`
	RecordedAt     string     `json:"recordedAt"`
}

// Template is a saved, reusable game configuration.
type Template struct {
	ID        string        `json:"id"`
	TeacherID string        `json:"teacherId"`
	Name      string        `json:"name"`
	Settings  game.Settings `json:"settings"`
	CreatedAt string        `json:"createdAt"`
}

// CreateTeacher registers an account. The email must be unused.
func (s *Store) CreateTeacher(ctx context.Context, email, name, password string) (Teacher, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Teacher{}, err
	}
	t := Teacher{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    nowUTC(),
	}
	data, err := json.Marshal(t)
	if err != nil {
		return Teacher{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO teachers (id, email, data) VALUES (?, ?, jsonb(?))`,
		t.ID, t.Email, string(data),
	)
	if err != nil {
		return Teacher{}, fmt.Errorf("creating teacher: %w", err)
	}
	return t, nil
}

func (s *Store) teacherByEmail(ctx context.Context, email string) (Teacher, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM teachers WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	if err != nil {
		return Teacher{}, err
	}
	var t Teacher
	err = json.Unmarshal([]byte(data), &t)
	return t, err
}

// Login checks credentials and opens a session. The same error covers
// unknown email and wrong password.
func (s *Store) Login(ctx context.Context, email, password string) (TeacherSession, error) {
	t, err := s.teacherByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return TeacherSession{}, ErrBadCredentials
	}
	if err != nil {
		return TeacherSession{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return TeacherSession{}, ErrBadCredentials
	}

	sess := TeacherSession{ID: newID(), TeacherID: t.ID, Email: t.Email}
	data, err := json.Marshal(sess)
	if err != nil {
		return TeacherSession{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO teacher_sessions (id, data) VALUES (?, jsonb(?))`,
		sess.ID, string(data),
	)
	return sess, err
}

// SessionByID resolves a session cookie.
func (s *Store) SessionByID(ctx context.Context, id string) (TeacherSession, error) {
	var sess TeacherSession
	err := s.get(ctx, "teacher_sessions", id, &sess)
	return sess, err
}

// Logout drops the session; an already-gone session is not an error.
func (s *Store) Logout(ctx context.Context, id string) error {
	err := s.del(ctx, "teacher_sessions", id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Student codes: short memorable ANIMAL-NN identifiers handed out on
// paper so young students never type free text.

var codeAnimals = []string{
	"FOX", "OWL", "BEAR", "WOLF", "DEER", "HARE", "LYNX", "MOLE",
	"SWAN", "CRAB", "TOAD", "NEWT", "DOVE", "WREN", "SEAL", "ORCA",
}

// MaxStudentCodes is the size of the ANIMAL-NN code space; asking for
// more distinct codes than exist can never be satisfied.
var MaxStudentCodes = len(codeAnimals) * 100

// GenerateStudentCodes produces n distinct codes; n is clamped to the
// code space so the uniqueness loop always terminates.
func GenerateStudentCodes(n int) []string {
	if n > MaxStudentCodes {
		n = MaxStudentCodes
	}
	codes := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(codes) < n {
		code := codeAnimals[rand.Intn(len(codeAnimals))] + "-" + fmt.Sprintf("%02d", rand.Intn(100))
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}

// CreateClassSession creates a named session with pre-generated codes.
func (s *Store) CreateClassSession(ctx context.Context, teacherID, name string, students int, settings game.Settings) (ClassSession, error) {
	cs := ClassSession{
		ID:           newID(),
		TeacherID:    teacherID,
		Name:         name,
		StudentCodes: GenerateStudentCodes(students),
		Settings:     settings,
		CreatedAt:    nowUTC(),
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return ClassSession{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO class_sessions (id, teacher_id, data) VALUES (?, ?, jsonb(?))`,
		cs.ID, cs.TeacherID, string(data),
	)
	return cs, err
}

// ClassSessionByID loads one class session.
func (s *Store) ClassSessionByID(ctx context.Context, id string) (ClassSession, error) {
	var cs ClassSession
	err := s.get(ctx, "class_sessions", id, &cs)
	return cs, err
}

// ClassSessionsByTeacher lists a teacher's sessions, newest first.
func (s *Store) ClassSessionsByTeacher(ctx context.Context, teacherID string) ([]ClassSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM class_sessions WHERE teacher_id = ? ORDER BY id DESC`,
		teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ClassSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var cs ClassSession
		if err := json.Unmarshal([]byte(data), &cs); err != nil {
			return nil, err
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

// DeleteClassSession removes the session and its recorded results.
func (s *Store) DeleteClassSession(ctx context.Context, id string) error {
	if err := s.del(ctx, "class_sessions", id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_results WHERE class_session_id = ?`, id,
	)
	return err
}

// SaveSessionResults records one game's results under a class session.
func (s *Store) SaveSessionResults(ctx context.Context, classSessionID string, rec GameRecord) (SessionResults, error) {
	res := SessionResults{
		ID:             newID(),
		ClassSessionID: classSessionID,
		Game:           rec,
		RecordedAt:     nowUTC(),
	}
	data, err := json.Marshal(res)
	if err != nil {
		return SessionResults{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_results (id, class_session_id, data) VALUES (?, ?, jsonb(?))`,
		res.ID, res.ClassSessionID, string(data),
	)
	return res, err
}

// ResultsForClassSession lists recorded results, oldest first.
func (s *Store) ResultsForClassSession(ctx context.Context, classSessionID string) ([]SessionResults, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM session_results WHERE class_session_id = ? ORDER BY id`,
		classSessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionResults
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var res SessionResults
		if err := json.Unmarshal([]byte(data), &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ExportResultsCSV renders a class session's results as CSV, one row per
// player per game.
func (s *Store) ExportResultsCSV(ctx context.Context, classSessionID string) ([]byte, error) {
	results, err := s.ResultsForClassSession(ctx, classSessionID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"recordedAt", "gameType", "gameMode", "player", "score", "accuracy", "rank"})
	for _, res := range results {
		for _, p := range res.Game.Players {
			w.Write([]string{
				res.RecordedAt,
				string(res.Game.GameType),
				string(res.Game.GameMode),
				p.Name,
				strconv.Itoa(p.Score),
				strconv.Itoa(p.Accuracy),
				strconv.Itoa(p.Rank),
			})
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Templates: saved game configurations a teacher can relaunch.

func (s *Store) CreateTemplate(ctx context.Context, teacherID, name string, settings game.Settings) (Template, error) {
	t := Template{
		ID:        newID(),
		TeacherID: teacherID,
		Name:      name,
		Settings:  settings,
		CreatedAt: nowUTC(),
	}
	data, err := json.Marshal(t)
	if err != nil {
		return Template{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, teacher_id, data) VALUES (?, ?, jsonb(?))`,
		t.ID, t.TeacherID, string(data),
	)
	return t, err
}

func (s *Store) TemplatesByTeacher(ctx context.Context, teacherID string) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM templates WHERE teacher_id = ? ORDER BY id`,
		teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t Template
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.del(ctx, "templates", id)
}
