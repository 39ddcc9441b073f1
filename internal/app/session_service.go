package app

import (
	"context"
	"errors"
	"time"

	"quizdeck-service/internal/domain"
)

// SessionRepository abstracts how live attempt sessions are tracked
// (in-memory per instance; each session has a single owner).
type SessionRepository interface {
	Get(quizID, userID string) (*Session, bool)
	Put(quizID, userID string, session *Session)
	Delete(quizID, userID string)
}

// QuizRepository loads quiz content (from cache/backing store). Quizzes come
// back validated with questions sorted by idx ascending.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// AttemptGateway is the boundary to durable attempt records. Submit creates
// the attempt exactly once per (quiz, user); when one already exists it
// returns the stored record together with domain.ErrAttemptExists so callers
// can treat the conflict as success. The gateway recomputes the score from
// canonical answers, so the stored score is authoritative.
type AttemptGateway interface {
	Submit(ctx context.Context, quizID, userID string, answers []domain.Answer) (domain.Attempt, error)
	Get(ctx context.Context, quizID, userID string) (domain.Attempt, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// SessionService owns the attempt-session use cases: entering a quiz through
// the access-code gate, reattaching to a live session, and tearing sessions
// down without losing resumable state.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	attempts AttemptGateway
	state    StateStore
	now      func() time.Time
	tick     time.Duration
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, attempts AttemptGateway, state StateStore) *SessionService {
	return NewSessionServiceWithClock(sessions, quizzes, attempts, state, time.Now, time.Second)
}

// NewSessionServiceWithClock is test-only for deterministic countdowns.
func NewSessionServiceWithClock(sessions SessionRepository, quizzes QuizRepository, attempts AttemptGateway, state StateStore, now func() time.Time, tick time.Duration) *SessionService {
	return &SessionService{
		sessions: sessions,
		quizzes:  quizzes,
		attempts: attempts,
		state:    state,
		now:      now,
		tick:     tick,
	}
}

// Enter opens (or reattaches to) the attempt session for a quiz and user.
// A stored attempt short-circuits into review mode regardless of access code
// or timer configuration. A fresh entry requires a joinable quiz and the
// matching access code; in-progress state left behind by an earlier
// connection (mirrored answers, persisted deadline) is restored, so elapsed
// absence still counts against the countdown.
func (s *SessionService) Enter(ctx context.Context, quizID, userID, accessCode string) (*Session, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if existing, ok := s.sessions.Get(quizID, userID); ok {
		return existing, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	timer := NewTimerWithClock(s.state, quizID, userID, time.Duration(quiz.TimerSeconds)*time.Second, s.now, s.tick)
	session := newSession(quiz, userID, s.state, s.attempts, timer)

	attempt, err := s.attempts.Get(ctx, quizID, userID)
	switch {
	case err == nil:
		session.seedFromAttempt(attempt)
	case errors.Is(err, domain.ErrAttemptNotFound):
		if !quiz.Joinable() {
			return nil, domain.ErrQuizNotJoinable
		}
		if accessCode != *quiz.AccessCode {
			return nil, domain.ErrAccessCodeMismatch
		}
		if err := session.begin(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.sessions.Put(quizID, userID, session)
	return session, nil
}

// Get returns the live session for a quiz and user, if one exists.
func (s *SessionService) Get(quizID, userID string) (*Session, bool) {
	return s.sessions.Get(quizID, userID)
}

// Leave tears down a live session. Unfinalized state-store entries are kept
// so a later Enter resumes the countdown and answers where they stood.
func (s *SessionService) Leave(quizID, userID string) {
	session, ok := s.sessions.Get(quizID, userID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(quizID, userID)
}
