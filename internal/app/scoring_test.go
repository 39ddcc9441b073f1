package app_test

import (
	"testing"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/domain"
)

func fourQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Idx: 1, Kind: domain.KindMCQ, Prompt: "one", Options: []string{"A", "B"}, Answer: "A"},
		{ID: "q2", Idx: 2, Kind: domain.KindMCQ, Prompt: "two", Options: []string{"A", "B"}, Answer: "B"},
		{ID: "q3", Idx: 3, Kind: domain.KindFreeText, Prompt: "three", Answer: "C"},
		{ID: "q4", Idx: 4, Kind: domain.KindFreeText, Prompt: "four", Answer: "D"},
	}
}

func TestScoreCountsExactMatches(t *testing.T) {
	answers := []domain.Answer{
		{Idx: 1, Value: "A"},
		{Idx: 2, Value: "B"},
		{Idx: 3, Value: "X"},
		{Idx: 4, Value: "D"},
	}
	if got := app.Score(fourQuestions(), answers); got != 3 {
		t.Fatalf("expected score 3, got %d", got)
	}
	if tier := app.TierFor(3, 4); tier != domain.TierGood {
		t.Fatalf("expected good tier for 0.75, got %s", tier)
	}
}

func TestScoreMissingTrailingAnswers(t *testing.T) {
	answers := []domain.Answer{
		{Idx: 1, Value: "A"},
		{Idx: 2, Value: "B"},
	}
	if got := app.Score(fourQuestions(), answers); got != 2 {
		t.Fatalf("expected score 2 with missing answers counted incorrect, got %d", got)
	}
}

func TestScoreIgnoresUnknownIdxAndIsCaseSensitive(t *testing.T) {
	answers := []domain.Answer{
		{Idx: 99, Value: "A"},  // no such question
		{Idx: 1, Value: "a"},   // wrong case
		{Idx: 4, Value: " D"},  // no trimming
		{Idx: 3, Value: "C"},
	}
	if got := app.Score(fourQuestions(), answers); got != 1 {
		t.Fatalf("expected score 1, got %d", got)
	}
}

func TestTierBoundariesInclusiveAtLowerBound(t *testing.T) {
	cases := []struct {
		score, total int
		want         domain.Tier
	}{
		{9, 10, domain.TierExcellent},
		{10, 10, domain.TierExcellent},
		{7, 10, domain.TierGood},
		{8, 10, domain.TierGood},
		{5, 10, domain.TierFair},
		{4, 10, domain.TierPoor},
		{0, 10, domain.TierPoor},
		{0, 0, domain.TierPoor},
	}
	for _, tc := range cases {
		if got := app.TierFor(tc.score, tc.total); got != tc.want {
			t.Fatalf("TierFor(%d, %d) = %s, want %s", tc.score, tc.total, got, tc.want)
		}
	}
}
