package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Record is the persisted throttle state for one fingerprint. The JSON shape
// matches what the stores write verbatim.
type Record struct {
	Count     int   `json:"count"`
	ResetTime int64 `json:"resetTime"` // cooldown expiry, epoch millis; 0 when no cooldown armed
}

// RecordStore persists throttle records keyed by fingerprint. Implementations
// must report a missing or unreadable record as absent rather than failing;
// corrupt storage is always recovered as "no history".
type RecordStore interface {
	Load(ctx context.Context, fingerprint string) (Record, bool, error)
	Save(ctx context.Context, fingerprint string, rec Record) error
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed           bool
	AttemptsRemaining int
	RetryAfter        time.Duration // non-zero while a cooldown is active
}

const (
	// DefaultPlayLimit is the number of attempts granted before a cooldown.
	DefaultPlayLimit = 3
	// DefaultCooldown is how long a fingerprint is denied once the limit is hit.
	DefaultCooldown = 2 * time.Hour
)

// Limiter gates quiz generation per device fingerprint with a time-windowed
// attempt count. Cooldowns self-expire lazily on the next check; there is no
// background sweep. Store write failures are logged and otherwise ignored:
// throttling is advisory and must never fail the gated action outright.
type Limiter struct {
	store    RecordStore
	clock    clockwork.Clock
	limit    int
	cooldown time.Duration
	logger   zerolog.Logger

	mu sync.Mutex
}

func NewLimiter(store RecordStore, clock clockwork.Clock, limit int, cooldown time.Duration, logger zerolog.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultPlayLimit
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{
		store:    store,
		clock:    clock,
		limit:    limit,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "throttle").Logger(),
	}
}

// Check evaluates whether the fingerprint may start a new attempt. It does not
// consume one: the caller records the attempt only after the gated action
// actually succeeds.
func (l *Limiter) Check(ctx context.Context, fingerprint string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.freshen(ctx, fingerprint)
	return l.evaluate(rec)
}

// RecordAttempt spends one attempt. Reaching the limit arms the cooldown.
func (l *Limiter) RecordAttempt(ctx context.Context, fingerprint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consume(ctx, fingerprint)
}

// TryConsume combines Check and RecordAttempt into one atomic call for callers
// that want the stronger guarantee. AttemptsRemaining reflects the state after
// the consumed attempt.
func (l *Limiter) TryConsume(ctx context.Context, fingerprint string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.freshen(ctx, fingerprint)
	d := l.evaluate(rec)
	if !d.Allowed {
		return d
	}
	rec = l.consume(ctx, fingerprint)
	d.AttemptsRemaining = l.limit - rec.Count
	return d
}

// freshen loads the record and applies lazy cooldown expiry.
func (l *Limiter) freshen(ctx context.Context, fingerprint string) Record {
	rec, ok, err := l.store.Load(ctx, fingerprint)
	if err != nil || !ok {
		if err != nil {
			l.logger.Warn().Err(err).Msg("throttle record unreadable, treating as fresh")
		}
		return Record{}
	}
	if rec.ResetTime > 0 && l.clock.Now().After(time.UnixMilli(rec.ResetTime)) {
		rec = Record{}
		if err := l.store.Save(ctx, fingerprint, rec); err != nil {
			l.logger.Warn().Err(err).Msg("failed to persist throttle reset")
		}
	}
	return rec
}

func (l *Limiter) evaluate(rec Record) Decision {
	if rec.ResetTime > 0 {
		until := time.UnixMilli(rec.ResetTime)
		if now := l.clock.Now(); !now.After(until) {
			return Decision{RetryAfter: until.Sub(now)}
		}
	}
	if rec.Count >= l.limit {
		return Decision{}
	}
	return Decision{Allowed: true, AttemptsRemaining: l.limit - rec.Count}
}

func (l *Limiter) consume(ctx context.Context, fingerprint string) Record {
	rec := l.loadCurrent(ctx, fingerprint)
	rec.Count++
	if rec.Count >= l.limit {
		rec.ResetTime = l.clock.Now().Add(l.cooldown).UnixMilli()
	}
	if err := l.store.Save(ctx, fingerprint, rec); err != nil {
		l.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("failed to persist throttle record")
	}
	return rec
}

func (l *Limiter) loadCurrent(ctx context.Context, fingerprint string) Record {
	rec, ok, err := l.store.Load(ctx, fingerprint)
	if err != nil || !ok {
		return Record{}
	}
	if rec.ResetTime > 0 && l.clock.Now().After(time.UnixMilli(rec.ResetTime)) {
		return Record{}
	}
	return rec
}
