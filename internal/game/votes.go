package game

import "github.com/aaronzipp/scavenger-hunt/internal/models"

// ConsensusAnswer returns the modal answer among votes, which must be in
// receive order. Ties go to the answer whose first vote arrived earliest.
func ConsensusAnswer(votes []models.Vote) (models.AnswerValue, bool) {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, v := range votes {
		if v.Answer.IsZero() {
			continue
		}
		key := v.Answer.Key()
		if _, seen := first[key]; !seen {
			first[key] = i
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return models.AnswerValue{}, false
	}

	best := -1
	for key, n := range counts {
		idx := first[key]
		if best == -1 {
			best = idx
			continue
		}
		bestN := counts[votes[best].Answer.Key()]
		if n > bestN || (n == bestN && idx < best) {
			best = idx
		}
	}
	return votes[best].Answer, true
}
