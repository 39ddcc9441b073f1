package app

import (
	"encoding/json"

	"quizdeck-service/internal/domain"
)

// AnswerStore holds in-progress answers keyed by list position (the order
// questions are presented in), not by question idx. It tolerates out-of-order
// writes and distinguishes an unanswered position from an empty answer.
// Not safe for concurrent use; the owning session serializes access.
type AnswerStore struct {
	entries []answerEntry
}

type answerEntry struct {
	value string
	set   bool
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{}
}

// Set overwrites or extends the store at position. Positions are normally
// visited contiguously from zero, but a write past the current end just grows
// the store with unset gaps.
func (s *AnswerStore) Set(position int, value string) {
	if position < 0 {
		return
	}
	for len(s.entries) <= position {
		s.entries = append(s.entries, answerEntry{})
	}
	s.entries[position] = answerEntry{value: value, set: true}
}

// Get returns the answer at position and whether one was ever set.
func (s *AnswerStore) Get(position int) (string, bool) {
	if position < 0 || position >= len(s.entries) {
		return "", false
	}
	entry := s.entries[position]
	return entry.value, entry.set
}

// Answered counts positions that hold a submitted value.
func (s *AnswerStore) Answered() int {
	n := 0
	for _, entry := range s.entries {
		if entry.set {
			n++
		}
	}
	return n
}

// ToIdxKeyed converts positional answers into idx-keyed pairs for scoring and
// submission, correlating each position with the question at that position in
// the sorted list. Positions beyond the question list and unset positions are
// skipped.
func (s *AnswerStore) ToIdxKeyed(questions []domain.Question) []domain.Answer {
	out := make([]domain.Answer, 0, len(questions))
	for position, question := range questions {
		if position >= len(s.entries) {
			break
		}
		if entry := s.entries[position]; entry.set {
			out = append(out, domain.Answer{Idx: question.Idx, Value: entry.value})
		}
	}
	return out
}

// Encode serializes the store for the state-store mirror. Unset positions are
// encoded as null so a restore reproduces the exact sparse shape.
func (s *AnswerStore) Encode() (string, error) {
	values := make([]*string, len(s.entries))
	for i, entry := range s.entries {
		if entry.set {
			v := entry.value
			values[i] = &v
		}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeAnswerStore rebuilds a store from its encoded mirror.
func DecodeAnswerStore(raw string) (*AnswerStore, error) {
	var values []*string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	store := NewAnswerStore()
	store.entries = make([]answerEntry, len(values))
	for i, v := range values {
		if v != nil {
			store.entries[i] = answerEntry{value: *v, set: true}
		}
	}
	return store, nil
}
