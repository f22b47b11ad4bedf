package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-proctor/internal/throttle"
)

// RecordStore keeps throttle records in Redis, for installations that share
// one throttle history across engine restarts or hosts. Records are stored as
// JSON under quiz:throttle:{fingerprint}; an unparsable value is treated as
// absent, matching the local stores.
type RecordStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecordStore(client *redis.Client, ttl time.Duration) *RecordStore {
	return &RecordStore{client: client, ttl: ttl}
}

func (s *RecordStore) Load(ctx context.Context, fingerprint string) (throttle.Record, bool, error) {
	raw, err := s.client.Get(ctx, s.key(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return throttle.Record{}, false, nil
	}
	if err != nil {
		return throttle.Record{}, false, err
	}
	var rec throttle.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return throttle.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RecordStore) Save(ctx context.Context, fingerprint string, rec throttle.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(fingerprint), data, s.ttl).Err()
}

func (s *RecordStore) key(fingerprint string) string {
	return "quiz:throttle:" + fingerprint
}
