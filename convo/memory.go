package convo

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

// Upsert creates or replaces the record for chatID.
func (s *MemoryStore) Upsert(_ context.Context, chatID int64, transcript Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[chatID] = Record{
		ChatID:     chatID,
		Transcript: transcript.Clone(),
		UpdatedAt:  time.Now().UTC(),
	}
	return nil
}

// Find returns the stored transcript for chatID, reporting presence.
func (s *MemoryStore) Find(_ context.Context, chatID int64) (Transcript, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[chatID]
	if !ok {
		return nil, false, nil
	}
	return rec.Transcript.Clone(), true, nil
}

// Len reports how many records the store currently holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
