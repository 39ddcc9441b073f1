package memory

import (
	"sync"

	"quizdeck-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// tracking live attempt sessions keyed by quiz and user.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(quizID, userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[s.key(quizID, userID)]
	return session, ok
}

func (s *SessionStore) Put(quizID, userID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[s.key(quizID, userID)] = session
}

func (s *SessionStore) Delete(quizID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, s.key(quizID, userID))
}

func (s *SessionStore) key(quizID, userID string) string {
	return quizID + "/" + userID
}
