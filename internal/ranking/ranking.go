// Package ranking derives the final player order from the session's
// progress and finish-time maps. Rankings are recomputed fresh wherever
// results are shown or exported; they are never stored.
package ranking

import (
	"sort"

	"github.com/ludikoapp/ludiko/internal/room"
)

// Entry is one ranked player.
type Entry struct {
	Player     *room.Player `json:"player"`
	Rank       int          `json:"rank"`
	Score      int          `json:"score"`
	Accuracy   int          `json:"accuracy"`
	FinishTime int64        `json:"finishTime,omitempty"`
	Finished   bool         `json:"finished"`
}

// Compute orders players by score descending, tie-broken by finish time
// ascending with absent finish times sorting last, and finally by player
// id so the order is independent of the input permutation. The podium
// display and the CSV export both call this with the same inputs and
// must produce the same order.
func Compute(players []*room.Player, progress map[string]int, finishTimes map[string]int64, totalQuestions int) []Entry {
	entries := make([]Entry, 0, len(players))
	for _, p := range players {
		if p == nil {
			continue
		}
		score := progress[p.ID]
		ft, finished := finishTimes[p.ID]
		accuracy := 0
		if totalQuestions > 0 {
			accuracy = (score*100 + totalQuestions/2) / totalQuestions
		}
		entries = append(entries, Entry{
			Player:     p,
			Score:      score,
			Accuracy:   accuracy,
			FinishTime: ft,
			Finished:   finished,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Finished && a.FinishTime != b.FinishTime {
			return a.FinishTime < b.FinishTime
		}
		return a.Player.ID < b.Player.ID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
