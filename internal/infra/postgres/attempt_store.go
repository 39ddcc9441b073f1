package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore persists finalized attempts in Postgres. A unique constraint
// on (quiz_id, user_id) makes the first submission win; a conflicting insert
// returns the stored row with domain.ErrAttemptExists. Scores are recomputed
// from canonical answers here rather than trusted from the session.
type AttemptStore struct {
	pool   *pgxpool.Pool
	loader *QuizLoader
	clock  func() time.Time
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{
		pool:   pool,
		loader: NewQuizLoader(pool),
		clock:  time.Now,
	}
}

func (s *AttemptStore) Submit(ctx context.Context, quizID, userID string, answers []domain.Answer) (domain.Attempt, error) {
	quiz, err := s.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizID:    quizID,
		Answers:   append([]domain.Answer(nil), answers...),
		Score:     app.Score(quiz.Questions, answers),
		CreatedAt: s.clock(),
	}

	rawAnswers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, user_id, answers, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quiz_id, user_id) DO NOTHING`,
		attempt.ID, attempt.QuizID, attempt.UserID, rawAnswers, attempt.Score, attempt.CreatedAt,
	)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.Get(ctx, quizID, userID)
		if err != nil {
			return domain.Attempt{}, err
		}
		return existing, domain.ErrAttemptExists
	}
	return attempt, nil
}

func (s *AttemptStore) Get(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, user_id, answers, score, created_at
		FROM quiz_attempts WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID,
	)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, answers, score, created_at
		FROM quiz_attempts WHERE user_id=$1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.Attempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var attempt domain.Attempt
	var rawAnswers []byte
	if err := row.Scan(&attempt.ID, &attempt.QuizID, &attempt.UserID, &rawAnswers, &attempt.Score, &attempt.CreatedAt); err != nil {
		return domain.Attempt{}, err
	}
	if err := json.Unmarshal(rawAnswers, &attempt.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return attempt, nil
}
