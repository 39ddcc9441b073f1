package app

import "context"

// StateStore is the scoped persistence capability a session mirrors its
// transient state into (answers in progress, timer start, timer deadline),
// so a dropped connection or reload can resume exactly where it left off.
// Implementations live in infra (in-memory, Redis).
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys are scoped per quiz and per user; all three are purged together when
// an attempt is finalized.

func answersKey(quizID, userID string) string {
	return "attempt:" + quizID + ":" + userID + ":answers"
}

func startKey(quizID, userID string) string {
	return "attempt:" + quizID + ":" + userID + ":start"
}

func deadlineKey(quizID, userID string) string {
	return "attempt:" + quizID + ":" + userID + ":deadline"
}
