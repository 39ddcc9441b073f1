package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"quizdeck-service/internal/domain"
	"quizdeck-service/internal/infra/memory"
)

type countingLoader struct {
	inner *memory.StaticQuizLoader
	loads int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	atomic.AddInt32(&l.loads, 1)
	return l.inner.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return l.inner.LoadQuizzes(ctx)
}

func validQuiz() domain.Quiz {
	code := "654321"
	return domain.Quiz{
		ID: "quiz-1", Title: "Cached", TimerSeconds: 60, AccessCode: &code,
		Questions: []domain.Question{
			{ID: "q2", Idx: 7, Kind: domain.KindFreeText, Prompt: "b", Answer: "B"},
			{ID: "q1", Idx: 3, Kind: domain.KindMCQ, Prompt: "a", Options: []string{"A", "B"}, Answer: "A"},
		},
	}
}

func TestQuizRepositoryCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": validQuiz()})}
	repo := memory.NewQuizRepository(loader, time.Minute)

	for i := 0; i < 5; i++ {
		quiz, err := repo.GetQuiz(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if quiz.Questions[0].Idx != 3 {
			t.Fatalf("expected questions sorted by idx, got %+v", quiz.Questions)
		}
	}
	if got := atomic.LoadInt32(&loader.loads); got != 1 {
		t.Fatalf("expected single loader hit, got %d", got)
	}
}

func TestQuizRepositoryPropagatesNotFound(t *testing.T) {
	loader := &countingLoader{inner: memory.NewStaticQuizLoader(map[string]domain.Quiz{})}
	repo := memory.NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// misses are not cached
	repo.GetQuiz(context.Background(), "nope")
	if got := atomic.LoadInt32(&loader.loads); got != 2 {
		t.Fatalf("expected loader hit per miss, got %d", got)
	}
}

func TestStaticLoaderRejectsMalformedQuiz(t *testing.T) {
	broken := validQuiz()
	broken.Questions[1].Options = []string{"A", "B", "C", "D", "E"} // MCQ over the option cap
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": broken})

	if _, err := loader.LoadQuiz(context.Background(), "quiz-1"); !errors.Is(err, domain.ErrMalformedQuiz) {
		t.Fatalf("expected malformed quiz, got %v", err)
	}
}
