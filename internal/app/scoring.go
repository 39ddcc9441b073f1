package app

import "quizdeck-service/internal/domain"

// Score counts exact matches between submitted answers and canonical answers,
// correlated by question idx. Comparison is case-sensitive with no trimming.
// Answers whose idx has no matching question are ignored; questions with no
// submitted answer count as incorrect.
func Score(questions []domain.Question, answers []domain.Answer) int {
	canonical := make(map[int]string, len(questions))
	for _, question := range questions {
		canonical[question.Idx] = question.Answer
	}

	score := 0
	for _, answer := range answers {
		if want, ok := canonical[answer.Idx]; ok && answer.Value == want {
			score++
		}
	}
	return score
}

// TierFor buckets a score into qualitative feedback. Boundaries are inclusive
// at the lower bound of each tier.
func TierFor(score, total int) domain.Tier {
	if total <= 0 {
		return domain.TierPoor
	}
	ratio := float64(score) / float64(total)
	switch {
	case ratio >= 0.90:
		return domain.TierExcellent
	case ratio >= 0.70:
		return domain.TierGood
	case ratio >= 0.50:
		return domain.TierFair
	default:
		return domain.TierPoor
	}
}
