// Package game holds the shared content types and generators for the three
// Ludiko mini-games: math race, shape match, and memory.
package game

import (
	"errors"
	"fmt"
)

// Difficulty controls operand ranges for arithmetic and the distractor
// pool for shapes.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Operation is one of the four arithmetic operations.
type Operation string

const (
	OpAdd Operation = "+"
	OpSub Operation = "-"
	OpMul Operation = "×"
	OpDiv Operation = "÷"
)

// Type selects which mini-game a session plays.
type Type string

const (
	TypeMathRace   Type = "mathRace"
	TypeShapeMatch Type = "shapeMatch"
	TypeMemory     Type = "memoryGame"
)

// Mode selects the pacing variant for question-based games.
type Mode string

const (
	// ModeRace ends when the first player works through the whole pool.
	ModeRace Mode = "raceToFinish"
	// ModeSprint runs a single global clock; score is answers in time.
	ModeSprint Mode = "timedSprint"
)

// ShapeMode selects the question style for shape match.
type ShapeMode string

const (
	ShapeModeName  ShapeMode = "name"
	ShapeModeCount ShapeMode = "count"
)

// Settings is the per-room game configuration. Immutable once the room
// enters playing, except via the replay flow.
type Settings struct {
	GameType     Type        `json:"gameType"`
	GameMode     Mode        `json:"gameMode"`
	Difficulty   Difficulty  `json:"difficulty"`
	Operations   []Operation `json:"operations"`
	Rounds       int         `json:"rounds"`
	TimePerRound int         `json:"timePerRound"`
	ShapeMode    ShapeMode   `json:"shapeMode,omitempty"`
}

// DefaultSettings mirrors the values a new room starts with.
func DefaultSettings() Settings {
	return Settings{
		GameType:     TypeMathRace,
		GameMode:     ModeRace,
		Difficulty:   DifficultyEasy,
		Operations:   []Operation{OpAdd, OpSub},
		Rounds:       10,
		TimePerRound: 15,
	}
}

// Bounds for client-supplied settings. The generators assume these
// hold; unvalidated input would reach rand.Intn and make with
// impossible arguments.
const (
	MinRounds       = 1
	MaxRounds       = 50
	MinTimePerRound = 3
	MaxTimePerRound = 120
)

// Validate reports whether the settings describe a playable game.
// Operations are required only for math; the other game types ignore
// them.
func (s Settings) Validate() error {
	switch s.GameType {
	case TypeMathRace, TypeShapeMatch, TypeMemory:
	default:
		return fmt.Errorf("unknown game type %q", s.GameType)
	}
	switch s.GameMode {
	case ModeRace, ModeSprint:
	default:
		return fmt.Errorf("unknown game mode %q", s.GameMode)
	}
	switch s.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
	switch s.ShapeMode {
	case "", ShapeModeName, ShapeModeCount:
	default:
		return fmt.Errorf("unknown shape mode %q", s.ShapeMode)
	}
	if s.Rounds < MinRounds || s.Rounds > MaxRounds {
		return fmt.Errorf("rounds must be between %d and %d", MinRounds, MaxRounds)
	}
	if s.TimePerRound < MinTimePerRound || s.TimePerRound > MaxTimePerRound {
		return fmt.Errorf("timePerRound must be between %d and %d", MinTimePerRound, MaxTimePerRound)
	}
	if s.GameType == TypeMathRace {
		if len(s.Operations) == 0 {
			return errors.New("at least one operation is required")
		}
		for _, op := range s.Operations {
			switch op {
			case OpAdd, OpSub, OpMul, OpDiv:
			default:
				return fmt.Errorf("unknown operation %q", op)
			}
		}
	}
	return nil
}

// Question is one arithmetic item. Options always contains the correct
// answer plus three distinct distractors.
type Question struct {
	ID            string    `json:"id"`
	A             int       `json:"a"`
	B             int       `json:"b"`
	Operation     Operation `json:"operation"`
	CorrectAnswer int       `json:"correctAnswer"`
	Options       []int     `json:"options"`
}

// ShapeOption is one clickable shape in a shape-match question.
type ShapeOption struct {
	ID    string `json:"id"`
	Shape string `json:"shape"`
	Color string `json:"color"`
	Sides int    `json:"sides"`
}

// ShapeQuestion asks the player to pick the shape matching the prompt.
type ShapeQuestion struct {
	ID        string        `json:"id"`
	Mode      ShapeMode     `json:"mode"`
	Prompt    string        `json:"prompt"`
	Options   []ShapeOption `json:"options"`
	CorrectID string        `json:"correctId"`
}

// MemoryCard is one card on the shared memory board. All players see the
// same layout; flips and matches are tracked per player locally.
type MemoryCard struct {
	ID      string `json:"id"`
	PairID  int    `json:"pairId"`
	Content string `json:"content"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}
