package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

type shapeDef struct {
	name  string
	sides int
}

// The shape catalog, easiest first. Harder difficulties unlock the tail.
var shapeCatalog = []shapeDef{
	{"circle", 0},
	{"square", 4},
	{"triangle", 3},
	{"rectangle", 4},
	{"star", 10},
	{"heart", 0},
	{"pentagon", 5},
	{"hexagon", 6},
	{"rhombus", 4},
	{"oval", 0},
	{"octagon", 8},
	{"trapezoid", 4},
}

var shapeColors = []string{"red", "blue", "green", "yellow", "purple", "orange"}

func shapePool(difficulty Difficulty) []shapeDef {
	switch difficulty {
	case DifficultyEasy:
		return shapeCatalog[:6]
	case DifficultyMedium:
		return shapeCatalog[:9]
	}
	return shapeCatalog
}

// GenerateShapeQuestion builds one shape question with four options. In
// name mode the prompt names the target shape; in count mode the prompt
// asks for the shape with a given number of sides, so all distractors
// have a different side count.
func GenerateShapeQuestion(difficulty Difficulty, mode ShapeMode) ShapeQuestion {
	if mode == "" {
		mode = ShapeModeName
	}
	pool := shapePool(difficulty)
	target := pool[rand.Intn(len(pool))]
	if mode == ShapeModeCount {
		// Side counts of 0 (circle, heart, oval) make a poor counting
		// prompt; redraw until the target has sides.
		for target.sides == 0 {
			target = pool[rand.Intn(len(pool))]
		}
	}

	options := []ShapeOption{newShapeOption(target)}
	for len(options) < 4 {
		d := pool[rand.Intn(len(pool))]
		if d.name == target.name {
			continue
		}
		if mode == ShapeModeCount && d.sides == target.sides {
			continue
		}
		dup := false
		for _, o := range options {
			if o.Shape == d.name {
				dup = true
				break
			}
		}
		if !dup {
			options = append(options, newShapeOption(d))
		}
	}

	correctID := options[0].ID
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	prompt := target.name
	if mode == ShapeModeCount {
		prompt = fmt.Sprintf("%d sides", target.sides)
	}

	return ShapeQuestion{
		ID:        uuid.NewString()[:8],
		Mode:      mode,
		Prompt:    prompt,
		Options:   options,
		CorrectID: correctID,
	}
}

// GenerateShapeQuestions builds a pool of n shape questions.
func GenerateShapeQuestions(n int, difficulty Difficulty, mode ShapeMode) []ShapeQuestion {
	questions := make([]ShapeQuestion, n)
	for i := range questions {
		questions[i] = GenerateShapeQuestion(difficulty, mode)
	}
	return questions
}

func newShapeOption(d shapeDef) ShapeOption {
	return ShapeOption{
		ID:    uuid.NewString()[:8],
		Shape: d.name,
		Color: shapeColors[rand.Intn(len(shapeColors))],
		Sides: d.sides,
	}
}

// CheckShapeAnswer reports whether the chosen option is the correct one.
func CheckShapeAnswer(q ShapeQuestion, optionID string) bool {
	return optionID == q.CorrectID
}
