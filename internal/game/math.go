package game

import (
	"math/rand"

	"github.com/google/uuid"
)

type difficultyRange struct {
	min, max int
}

var difficultyRanges = map[Difficulty]difficultyRange{
	DifficultyEasy:   {1, 10},
	DifficultyMedium: {1, 50},
	DifficultyHard:   {1, 100},
}

func randInt(min, max int) int {
	return rand.Intn(max-min+1) + min
}

func computeAnswer(a, b int, op Operation) int {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	}
	return 0
}

// generateOperands picks operands so the answer is always a non-negative
// integer: division builds a from an exact multiple, subtraction keeps
// b <= a, multiplication caps factors on easier difficulties.
func generateOperands(difficulty Difficulty, op Operation) (int, int) {
	r := difficultyRanges[difficulty]

	switch op {
	case OpDiv:
		b := randInt(max(r.min, 1), min(r.max, 12))
		quotient := randInt(r.min, r.max)
		return b * quotient, b
	case OpSub:
		a := randInt(r.min, r.max)
		return a, randInt(r.min, a)
	case OpMul:
		limit := r.max
		switch difficulty {
		case DifficultyEasy:
			limit = 10
		case DifficultyMedium:
			limit = 12
		}
		return randInt(r.min, limit), randInt(r.min, limit)
	}
	return randInt(r.min, r.max), randInt(r.min, r.max)
}

func generateWrongAnswers(correct, count int) []int {
	wrongs := make(map[int]struct{}, count)
	spread := max(5, abs(correct))

	for len(wrongs) < count {
		offset := randInt(1, spread)
		wrong := correct + offset
		if rand.Intn(2) == 0 {
			wrong = correct - offset
		}
		if wrong != correct && wrong >= 0 {
			wrongs[wrong] = struct{}{}
		}
	}

	out := make([]int, 0, count)
	for w := range wrongs {
		out = append(out, w)
	}
	return out
}

// GenerateQuestion builds one arithmetic question with four distinct
// options, one of which is the correct answer.
func GenerateQuestion(difficulty Difficulty, operations []Operation) Question {
	op := operations[rand.Intn(len(operations))]
	a, b := generateOperands(difficulty, op)
	correct := computeAnswer(a, b, op)

	options := append([]int{correct}, generateWrongAnswers(correct, 3)...)
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		ID:            uuid.NewString()[:8],
		A:             a,
		B:             b,
		Operation:     op,
		CorrectAnswer: correct,
		Options:       options,
	}
}

// GenerateQuestions builds a pool of n questions.
func GenerateQuestions(n int, difficulty Difficulty, operations []Operation) []Question {
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = GenerateQuestion(difficulty, operations)
	}
	return questions
}

// CheckAnswer reports whether the given answer is correct.
func CheckAnswer(q Question, answer int) bool {
	return answer == q.CorrectAnswer
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
