package domain

import (
	"sort"
	"time"
)

// QuestionKind tags the two supported question shapes.
type QuestionKind string

const (
	KindMCQ      QuestionKind = "MCQ"
	KindFreeText QuestionKind = "FREE_TEXT"
)

// Question is a single quiz question. Idx defines presentation order and is
// unique per quiz but not necessarily contiguous; scoring correlates answers
// by Idx, navigation by list position.
type Question struct {
	ID      string       `json:"id"`
	Idx     int          `json:"idx"`
	Kind    QuestionKind `json:"kind"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"` // up to four, MCQ only
	Answer  string       `json:"answer"`            // canonical answer, exact string match
}

// Quiz is the read-only aggregate a session runs against. A nil AccessCode
// means the quiz is not currently joinable. TimerSeconds of zero disables
// the countdown.
type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	TimerSeconds int        `json:"timer"`
	AccessCode   *string    `json:"accessCode,omitempty"`
	Questions    []Question `json:"questions"`
}

// Answer pairs a question Idx with the submitted value.
type Answer struct {
	Idx   int    `json:"idx"`
	Value string `json:"answer"`
}

// Attempt is a user's finalized set of answers plus the computed score.
// At most one exists per (quiz, user).
type Attempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	QuizID    string    `json:"quizId"`
	Answers   []Answer  `json:"answers"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tier is the qualitative feedback bucket derived from score percentage.
type Tier string

const (
	TierExcellent Tier = "excellent" // >= 90%
	TierGood      Tier = "good"      // >= 70%
	TierFair      Tier = "fair"      // >= 50%
	TierPoor      Tier = "poor"
)

// SortQuestions orders questions by Idx ascending. Backing stores do not
// guarantee order, so loaders call this before handing a quiz to a session.
func (q *Quiz) SortQuestions() {
	sort.SliceStable(q.Questions, func(i, j int) bool {
		return q.Questions[i].Idx < q.Questions[j].Idx
	})
}

// Validate rejects malformed quiz records at the fetch boundary so sessions
// never see undefined shapes: every question needs a known kind and a unique
// idx, and MCQ questions carry at most four options.
func (q *Quiz) Validate() error {
	if q.ID == "" {
		return ErrMalformedQuiz
	}
	seen := make(map[int]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.Kind != KindMCQ && question.Kind != KindFreeText {
			return ErrMalformedQuiz
		}
		if _, dup := seen[question.Idx]; dup {
			return ErrMalformedQuiz
		}
		seen[question.Idx] = struct{}{}
		if question.Kind == KindMCQ && len(question.Options) > 4 {
			return ErrMalformedQuiz
		}
		if question.Kind == KindFreeText && len(question.Options) > 0 {
			return ErrMalformedQuiz
		}
	}
	return nil
}

// Joinable reports whether the quiz currently accepts new sessions.
func (q *Quiz) Joinable() bool {
	return q.AccessCode != nil
}
