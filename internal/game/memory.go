package game

import (
	"math/rand"

	"github.com/google/uuid"
)

// MinMemoryPairs is the smallest playable board.
const MinMemoryPairs = 3

// The picture catalog for memory pairs. The board size is clamped to it.
var memoryCatalog = []string{
	"🦊", "🐸", "🐱", "🐶", "🐰", "🦁", "🐼", "🐨",
	"🐷", "🐮", "🐵", "🐔", "🦉", "🐢", "🐙", "🦋",
}

// GenerateMemoryCards builds a shuffled board of 2*pairs cards, two per
// pair with identical content, all face down. The pair count is clamped
// to [MinMemoryPairs, len(catalog)].
func GenerateMemoryCards(pairs int) []MemoryCard {
	if pairs < MinMemoryPairs {
		pairs = MinMemoryPairs
	}
	if pairs > len(memoryCatalog) {
		pairs = len(memoryCatalog)
	}

	contents := make([]string, len(memoryCatalog))
	copy(contents, memoryCatalog)
	rand.Shuffle(len(contents), func(i, j int) {
		contents[i], contents[j] = contents[j], contents[i]
	})

	cards := make([]MemoryCard, 0, 2*pairs)
	for pairID := 0; pairID < pairs; pairID++ {
		for range 2 {
			cards = append(cards, MemoryCard{
				ID:      uuid.NewString()[:8],
				PairID:  pairID,
				Content: contents[pairID],
			})
		}
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}
