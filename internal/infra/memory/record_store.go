package memory

import (
	"context"
	"sync"

	"quiz-proctor/internal/throttle"
)

// RecordStore is an in-memory implementation of throttle.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]throttle.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]throttle.Record),
	}
}

func (s *RecordStore) Load(_ context.Context, fingerprint string) (throttle.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[fingerprint]
	return rec, ok, nil
}

func (s *RecordStore) Save(_ context.Context, fingerprint string, rec throttle.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fingerprint] = rec
	return nil
}
