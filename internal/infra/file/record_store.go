package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"quiz-proctor/internal/throttle"
)

// RecordStore persists throttle records as a single JSON document on disk,
// the local-storage analog for a device-bound installation. A missing or
// unparsable file is treated as empty history, never as a hard failure.
type RecordStore struct {
	path string
	mu   sync.Mutex
}

func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

func (s *RecordStore) Load(_ context.Context, fingerprint string) (throttle.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.read()
	rec, ok := records[fingerprint]
	return rec, ok, nil
}

func (s *RecordStore) Save(_ context.Context, fingerprint string, rec throttle.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.read()
	records[fingerprint] = rec

	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// read returns the stored record map, empty on any read or parse failure.
func (s *RecordStore) read() map[string]throttle.Record {
	records := make(map[string]throttle.Record)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return make(map[string]throttle.Record)
	}
	return records
}
