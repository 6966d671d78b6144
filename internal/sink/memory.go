package sink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process submission store for local/dev use.
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[string][]Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[string][]Submission)}
}

func (s *MemoryStore) SaveSubmission(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.submissions[sub.UserID] = append(s.submissions[sub.UserID], sub)
	return nil
}

func (s *MemoryStore) ListSubmissions(_ context.Context, userID string, limit int) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.submissions[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Submission, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
