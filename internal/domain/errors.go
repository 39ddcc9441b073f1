package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrMalformedQuiz is returned when a fetched quiz record fails validation.
	ErrMalformedQuiz = errors.New("malformed quiz record")
	// ErrQuizNotJoinable is returned when a quiz has no access code set.
	ErrQuizNotJoinable = errors.New("quiz is not joinable")
	// ErrAccessCodeMismatch is returned when the entered access code is wrong.
	ErrAccessCodeMismatch = errors.New("access code mismatch")
	// ErrAttemptNotFound is returned when no attempt exists for a quiz and user.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptExists signals a durable attempt already exists; callers treat
	// it as equivalent in effect to a successful submission.
	ErrAttemptExists = errors.New("attempt already exists")
	// ErrUnauthorized is returned when no user identity is attached.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidAnswers is returned for a malformed answers payload.
	ErrInvalidAnswers = errors.New("invalid answers payload")
	// ErrSessionFinalized is returned when mutating a session past submission.
	ErrSessionFinalized = errors.New("attempt session already finalized")
	// ErrInvalidTransition is returned for operations not valid in the
	// session's current state.
	ErrInvalidTransition = errors.New("operation not valid in current session state")
)
