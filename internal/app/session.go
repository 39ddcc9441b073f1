package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"quizdeck-service/internal/domain"
)

// State identifies where an attempt session is in its lifecycle.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateConfirming State = "confirming_submit"
	StateSubmitted  State = "submitted"
)

// EventType labels events pushed to the session's subscriber.
type EventType string

const (
	EventTick      EventType = "tick"
	EventExpired   EventType = "expired"
	EventSubmitted EventType = "submitted"
)

// Event is delivered on the session's event channel; the transport layer
// turns these into outbound messages.
type Event struct {
	Type        EventType
	RemainingMS int64
	Result      *Result
}

// Result is the outcome of a finalized attempt. The score and tier are
// computed locally and stand even when the gateway call failed; Confirmed
// reports whether the authoritative attempt record was durably stored.
type Result struct {
	Score     int
	Total     int
	Tier      domain.Tier
	Confirmed bool
	Attempt   *domain.Attempt
}

// QuestionReview exposes per-question correctness once a session is submitted.
type QuestionReview struct {
	Idx       int    `json:"idx"`
	Prompt    string `json:"prompt"`
	Submitted string `json:"submitted"`
	Answered  bool   `json:"answered"`
	Correct   bool   `json:"correct"`
}

// Session is the per-(quiz, user) attempt state machine:
// Loading -> InProgress -> ConfirmingSubmit -> Submitted. Entering a quiz
// that already has a stored attempt seeds the session and lands directly in
// Submitted (review); timer expiry forces finalization from InProgress or
// ConfirmingSubmit, bypassing confirmation. Finalize is latched so a race
// between a manual confirm and an expiry tick produces exactly one gateway
// call and one terminal transition.
type Session struct {
	quiz    domain.Quiz
	userID  string
	store   StateStore
	gateway AttemptGateway
	timer   *Timer

	mu        sync.Mutex
	state     State
	position  int
	answers   *AnswerStore
	finalized bool
	result    *Result
	done      chan struct{}
	events    chan Event
	closed    bool
}

func newSession(quiz domain.Quiz, userID string, store StateStore, gateway AttemptGateway, timer *Timer) *Session {
	return &Session{
		quiz:    quiz,
		userID:  userID,
		store:   store,
		gateway: gateway,
		timer:   timer,
		state:   StateLoading,
		answers: NewAnswerStore(),
		done:    make(chan struct{}),
		events:  make(chan Event, 16),
	}
}

// begin starts a fresh or resumed in-progress session: restore any mirrored
// answers, activate the timer against the persisted deadline, and start the
// tick cadence. If the deadline already passed, expiry (and the forced
// finalization it triggers) fires synchronously from here.
func (s *Session) begin(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, answersKey(s.quiz.ID, s.userID))
	if err != nil {
		return err
	}
	if ok {
		restored, derr := DecodeAnswerStore(raw)
		if derr != nil {
			log.Printf("discarding corrupt answers mirror for quiz %s: %v", s.quiz.ID, derr)
		} else {
			s.answers = restored
		}
	}

	if _, err := s.timer.Activate(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateInProgress
	s.mu.Unlock()

	s.timer.Run(s.onTick, s.onExpire)
	return nil
}

// seedFromAttempt puts the session straight into review mode from a stored
// attempt. A quiz already attempted is never re-enterable for editing.
func (s *Session) seedFromAttempt(attempt domain.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byIdx := make(map[int]string, len(attempt.Answers))
	for _, answer := range attempt.Answers {
		byIdx[answer.Idx] = answer.Value
	}
	for position, question := range s.quiz.Questions {
		if value, ok := byIdx[question.Idx]; ok {
			s.answers.Set(position, value)
		}
	}

	stored := attempt
	s.result = &Result{
		Score:     attempt.Score,
		Total:     len(s.quiz.Questions),
		Tier:      TierFor(attempt.Score, len(s.quiz.Questions)),
		Confirmed: true,
		Attempt:   &stored,
	}
	s.finalized = true
	s.state = StateSubmitted
	close(s.done)
}

// Quiz returns the quiz this session runs against.
func (s *Session) Quiz() domain.Quiz {
	return s.quiz
}

// UserID returns the owning user.
func (s *Session) UserID() string {
	return s.userID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current question position.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Remaining reports the time left on the countdown.
func (s *Session) Remaining() time.Duration {
	return s.timer.Remaining()
}

// Events exposes the session's event stream. The channel is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Navigate moves the current position, clamped to the question range. There
// is no requirement that the previous question was answered. Navigation is
// also allowed in review mode since it mutates nothing but the cursor.
func (s *Session) Navigate(position int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress && s.state != StateSubmitted {
		return s.position, domain.ErrInvalidTransition
	}
	if position < 0 {
		position = 0
	}
	if max := len(s.quiz.Questions) - 1; position > max {
		position = max
	}
	if position < 0 {
		position = 0
	}
	s.position = position
	return s.position, nil
}

// Answer records a value at the current position and synchronously mirrors
// the full store to the state store, so a reconnect restores the prior state.
func (s *Session) Answer(ctx context.Context, value string) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		state := s.state
		s.mu.Unlock()
		if state == StateSubmitted {
			return domain.ErrSessionFinalized
		}
		return domain.ErrInvalidTransition
	}
	s.answers.Set(s.position, value)
	encoded, err := s.answers.Encode()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, answersKey(s.quiz.ID, s.userID), encoded); err != nil {
		// The in-memory store keeps working; a reload would just lose the mirror.
		log.Printf("mirror answers for quiz %s: %v", s.quiz.ID, err)
	}
	return nil
}

// AnswerAt returns the stored answer for a position.
func (s *Session) AnswerAt(position int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Get(position)
}

// RequestSubmit moves from InProgress to ConfirmingSubmit.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		if s.state == StateSubmitted {
			return domain.ErrSessionFinalized
		}
		return domain.ErrInvalidTransition
	}
	s.state = StateConfirming
	return nil
}

// CancelSubmit returns to InProgress with no state change.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirming {
		return domain.ErrInvalidTransition
	}
	s.state = StateInProgress
	return nil
}

// ConfirmSubmit finalizes a pending submission. If the timer expired while
// the confirmation was pending, the forced finalization already won and its
// result is returned.
func (s *Session) ConfirmSubmit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return s.waitResult(), nil
	}
	if s.state != StateConfirming {
		s.mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	s.mu.Unlock()
	return s.finalize(ctx, false), nil
}

// Result returns the finalized outcome, if any.
func (s *Session) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitted {
		return nil, false
	}
	return s.result, true
}

// Review exposes per-question correctness for the review state.
func (s *Session) Review() ([]QuestionReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitted {
		return nil, domain.ErrInvalidTransition
	}
	out := make([]QuestionReview, 0, len(s.quiz.Questions))
	for position, question := range s.quiz.Questions {
		submitted, answered := s.answers.Get(position)
		out = append(out, QuestionReview{
			Idx:       question.Idx,
			Prompt:    question.Prompt,
			Submitted: submitted,
			Answered:  answered,
			Correct:   answered && submitted == question.Answer,
		})
	}
	return out, nil
}

// Close stops the tick cadence and closes the event stream. It must be called
// on every exit path so expiry cannot fire against a torn-down session.
func (s *Session) Close() {
	s.timer.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *Session) onTick(remaining time.Duration) {
	s.notify(Event{Type: EventTick, RemainingMS: remaining.Milliseconds()})
}

func (s *Session) onExpire() {
	s.notify(Event{Type: EventExpired})
	s.finalize(context.Background(), true)
}

// finalize is the single submission path shared by manual confirm and timer
// expiry. The first caller wins; later callers wait for and return the same
// result, so exactly one gateway call and one terminal transition happen.
func (s *Session) finalize(ctx context.Context, forced bool) *Result {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return s.waitResult()
	}
	s.finalized = true
	if forced {
		// Expiry submits whatever exists, including an empty value for the
		// question currently on screen.
		if _, ok := s.answers.Get(s.position); !ok && len(s.quiz.Questions) > 0 {
			s.answers.Set(s.position, "")
		}
	}
	idxKeyed := s.answers.ToIdxKeyed(s.quiz.Questions)
	s.mu.Unlock()

	s.timer.Stop()

	result := &Result{
		Score: Score(s.quiz.Questions, idxKeyed),
		Total: len(s.quiz.Questions),
	}
	result.Tier = TierFor(result.Score, result.Total)

	attempt, err := s.gateway.Submit(ctx, s.quiz.ID, s.userID, idxKeyed)
	switch {
	case err == nil:
		result.Confirmed = true
		result.Attempt = &attempt
	case errors.Is(err, domain.ErrAttemptExists):
		// A stored attempt is equivalent in effect to a successful submission.
		result.Confirmed = true
		result.Attempt = &attempt
	default:
		// Non-fatal: the locally computed score stands, the attempt just
		// isn't durably recorded yet.
		log.Printf("submit attempt for quiz %s user %s: %v", s.quiz.ID, s.userID, err)
	}

	if err := s.store.Delete(ctx,
		answersKey(s.quiz.ID, s.userID),
		startKey(s.quiz.ID, s.userID),
		deadlineKey(s.quiz.ID, s.userID),
	); err != nil {
		log.Printf("purge session state for quiz %s: %v", s.quiz.ID, err)
	}

	s.mu.Lock()
	s.state = StateSubmitted
	s.result = result
	close(s.done)
	s.mu.Unlock()

	s.notify(Event{Type: EventSubmitted, Result: result})
	return result
}

// waitResult blocks until the winning finalize call has published its result.
func (s *Session) waitResult() *Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// notify delivers an event without ever blocking the timer or finalize path:
// when the subscriber is slow the oldest pending event is dropped.
func (s *Session) notify(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}
