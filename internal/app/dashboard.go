package app

import (
	"context"
	"sort"
	"time"

	"quizdeck-service/internal/domain"
)

// DashboardService aggregates a user's quiz activity: joinable quizzes not
// yet attempted, and finished attempts with their scores.
type DashboardService struct {
	quizzes  QuizRepository
	attempts AttemptGateway
}

func NewDashboardService(quizzes QuizRepository, attempts AttemptGateway) *DashboardService {
	return &DashboardService{quizzes: quizzes, attempts: attempts}
}

// QuizSummary is a dashboard view of a joinable quiz.
type QuizSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Questions    int    `json:"questions"`
	TimerSeconds int    `json:"timer"`
}

// AttemptSummary is a dashboard view of a finished attempt.
type AttemptSummary struct {
	QuizID    string      `json:"quizId"`
	Title     string      `json:"title"`
	Score     int         `json:"score"`
	Total     int         `json:"total"`
	Tier      domain.Tier `json:"tier"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Dashboard groups the two lists the dashboard page renders.
type Dashboard struct {
	Active    []QuizSummary    `json:"activeQuizzes"`
	Attempted []AttemptSummary `json:"attemptedQuizzes"`
}

// Overview builds the dashboard for a user.
func (s *DashboardService) Overview(ctx context.Context, userID string) (Dashboard, error) {
	if userID == "" {
		return Dashboard{}, domain.ErrUnauthorized
	}

	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	byQuiz := make(map[string]domain.Quiz, len(quizzes))
	for _, quiz := range quizzes {
		byQuiz[quiz.ID] = quiz
	}
	attempted := make(map[string]struct{}, len(attempts))

	dashboard := Dashboard{
		Active:    []QuizSummary{},
		Attempted: []AttemptSummary{},
	}
	for _, attempt := range attempts {
		attempted[attempt.QuizID] = struct{}{}
		total := len(attempt.Answers)
		title := ""
		if quiz, ok := byQuiz[attempt.QuizID]; ok {
			total = len(quiz.Questions)
			title = quiz.Title
		}
		dashboard.Attempted = append(dashboard.Attempted, AttemptSummary{
			QuizID:    attempt.QuizID,
			Title:     title,
			Score:     attempt.Score,
			Total:     total,
			Tier:      TierFor(attempt.Score, total),
			CreatedAt: attempt.CreatedAt,
		})
	}

	for _, quiz := range quizzes {
		if !quiz.Joinable() {
			continue
		}
		if _, done := attempted[quiz.ID]; done {
			continue
		}
		dashboard.Active = append(dashboard.Active, QuizSummary{
			ID:           quiz.ID,
			Title:        quiz.Title,
			Questions:    len(quiz.Questions),
			TimerSeconds: quiz.TimerSeconds,
		})
	}

	sort.Slice(dashboard.Active, func(i, j int) bool {
		return dashboard.Active[i].Title < dashboard.Active[j].Title
	})
	sort.Slice(dashboard.Attempted, func(i, j int) bool {
		return dashboard.Attempted[i].CreatedAt.After(dashboard.Attempted[j].CreatedAt)
	})
	return dashboard, nil
}
