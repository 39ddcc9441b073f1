package memory

import (
	"context"
	"sync"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore is an in-memory implementation of app.AttemptGateway. The
// first submission per (quiz, user) wins; later ones get the stored record
// back with domain.ErrAttemptExists. The score is recomputed here from
// canonical answers, so the stored record is authoritative regardless of
// what the session computed locally.
type AttemptStore struct {
	loader QuizLoader
	clock  func() time.Time

	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore(loader QuizLoader) *AttemptStore {
	return NewAttemptStoreWithClock(loader, time.Now)
}

// NewAttemptStoreWithClock is test-only for deterministic timestamps.
func NewAttemptStoreWithClock(loader QuizLoader, clock func() time.Time) *AttemptStore {
	return &AttemptStore{
		loader:   loader,
		clock:    clock,
		attempts: make(map[string]domain.Attempt),
	}
}

func (s *AttemptStore) Submit(ctx context.Context, quizID, userID string, answers []domain.Answer) (domain.Attempt, error) {
	quiz, err := s.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(quizID, userID)
	if existing, ok := s.attempts[key]; ok {
		return existing, domain.ErrAttemptExists
	}

	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizID:    quizID,
		Answers:   append([]domain.Answer(nil), answers...),
		Score:     app.Score(quiz.Questions, answers),
		CreatedAt: s.clock(),
	}
	s.attempts[key] = attempt
	return attempt, nil
}

func (s *AttemptStore) Get(_ context.Context, quizID, userID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[s.key(quizID, userID)]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts {
		if attempt.UserID == userID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (s *AttemptStore) key(quizID, userID string) string {
	return quizID + "/" + userID
}
