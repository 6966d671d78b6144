package session

import (
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Store holds at most one session per user. All accessors copy the session so
// a caller can never alias state held by another goroutine; serialization of
// read-modify-write cycles is the engine's responsibility.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns a copy of the user's session, or ErrNotFound.
func (s *Store) Get(userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.clone(), nil
}

// Put stores a copy of sess under its UserID, replacing any prior session.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess.clone()
}

// Remove deletes the user's session. Removing an absent session is a no-op.
func (s *Store) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// ListExpired returns the user ids of sessions whose last activity is strictly
// before cutoff.
func (s *Store) ListExpired(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for userID, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			out = append(out, userID)
		}
	}
	return out
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
