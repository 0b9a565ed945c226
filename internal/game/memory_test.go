package game

import "testing"

func TestGenerateMemoryCardsPairsUp(t *testing.T) {
	cards := GenerateMemoryCards(8)
	if len(cards) != 16 {
		t.Fatalf("got %d cards, want 16", len(cards))
	}

	byPair := map[int][]MemoryCard{}
	for _, c := range cards {
		if c.Flipped || c.Matched {
			t.Fatalf("card %q not face down", c.ID)
		}
		byPair[c.PairID] = append(byPair[c.PairID], c)
	}
	if len(byPair) != 8 {
		t.Fatalf("got %d pairs, want 8", len(byPair))
	}
	contents := map[string]bool{}
	for pairID, pair := range byPair {
		if len(pair) != 2 {
			t.Fatalf("pair %d has %d cards", pairID, len(pair))
		}
		if pair[0].Content != pair[1].Content {
			t.Fatalf("pair %d mismatched: %q vs %q", pairID, pair[0].Content, pair[1].Content)
		}
		if contents[pair[0].Content] {
			t.Fatalf("content %q used by two pairs", pair[0].Content)
		}
		contents[pair[0].Content] = true
	}
}

func TestGenerateMemoryCardsClampsPairCount(t *testing.T) {
	if got := len(GenerateMemoryCards(0)); got != 2*MinMemoryPairs {
		t.Errorf("pairs=0: got %d cards, want %d", got, 2*MinMemoryPairs)
	}
	if got := len(GenerateMemoryCards(100)); got != 2*len(memoryCatalog) {
		t.Errorf("pairs=100: got %d cards, want %d", got, 2*len(memoryCatalog))
	}
}
