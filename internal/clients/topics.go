package clients

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-proctor/internal/domain"
)

// TopicLister fetches the topic catalog from a backing service.
type TopicLister interface {
	Topics(ctx context.Context) ([]domain.Topic, error)
}

// TopicCatalog caches the topic list with a TTL so the browse screen does not
// hammer the quiz-data service. Concurrent refreshes are collapsed with
// singleflight; the TTL carries up to 10% jitter to spread expirations.
type TopicCatalog struct {
	lister TopicLister
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	topics    []domain.Topic
	expiresAt time.Time
}

func NewTopicCatalog(lister TopicLister, ttl time.Duration) *TopicCatalog {
	return &TopicCatalog{
		lister: lister,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *TopicCatalog) Topics(ctx context.Context) ([]domain.Topic, error) {
	now := t.clock()

	t.mu.RLock()
	if t.topics != nil && t.expiresAt.After(now) {
		cached := t.topics
		t.mu.RUnlock()
		return cached, nil
	}
	t.mu.RUnlock()

	result, err, _ := t.sf.Do("topics", func() (interface{}, error) {
		now := t.clock()
		t.mu.RLock()
		if t.topics != nil && t.expiresAt.After(now) {
			cached := t.topics
			t.mu.RUnlock()
			return cached, nil
		}
		t.mu.RUnlock()

		topics, err := t.lister.Topics(ctx)
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		t.topics = topics
		t.expiresAt = now.Add(t.ttlWithJitter())
		t.mu.Unlock()
		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Topic), nil
}

func (t *TopicCatalog) ttlWithJitter() time.Duration {
	if t.ttl <= 0 {
		return 0
	}
	jitterMax := int64(t.ttl) / 10
	return t.ttl + time.Duration(t.rnd.Int63n(jitterMax+1))
}
