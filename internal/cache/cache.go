// Package cache provides the TTL-bounded signal cache. Values are stored as
// JSON envelopes stamped with their write time and evicted lazily when a
// read finds them older than the TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// DefaultTTL applies uniformly to every signal type.
const DefaultTTL = 5 * time.Minute

// KeyPrefix starts every key produced by Key.
const KeyPrefix = "cache_"

// ErrNotFound is returned by a Backend when a key is absent.
var ErrNotFound = errors.New("cache: key not found")

// Backend is a durable byte-oriented key/value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	// Clear removes every key carrying KeyPrefix.
	Clear(ctx context.Context) error
	Close() error
}

// Maintainer is implemented by backends that need periodic housekeeping,
// e.g. value-log compaction. It never evicts live entries.
type Maintainer interface {
	Maintain() error
}

// entry is the on-disk envelope.
type entry struct {
	Data     json.RawMessage `json:"data"`
	StoredAt int64           `json:"storedAt"` // epoch millis
}

// Store wraps a Backend with TTL semantics.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over backend. A non-positive ttl selects DefaultTTL.
func New(backend Backend, ttl time.Duration, log zerolog.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		log:     log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Get decodes the value stored under key into dest and reports whether it
// was a fresh hit. Missing, undecodable and expired entries are misses;
// expired entries are deleted.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}

	age := s.now().UnixMilli() - e.StoredAt
	if age > s.ttl.Milliseconds() {
		if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache eviction failed")
		}
		return false
	}

	if err := json.Unmarshal(e.Data, dest); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("cache payload does not match destination")
		return false
	}
	return true
}

// Put stores value under key stamped with the current time. Concurrent
// writers to the same key overwrite each other.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{Data: data, StoredAt: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return err
	}
	return nil
}

// Has reports whether key exists in the backend, regardless of age.
func (s *Store) Has(ctx context.Context, key string) bool {
	ok, err := s.backend.Has(ctx, key)
	return err == nil && ok
}

// Clear removes every cache entry.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

// Key builds the cache key for an identifier within a signal namespace.
// The identifier is hashed in full with 64-bit xxhash.
func Key(signalType, identifier string) string {
	return KeyPrefix + sanitize(signalType) + "_" + strconv.FormatUint(xxhash.Sum64String(identifier), 10)
}

// sanitize keeps ASCII letters and digits and maps everything else to '_'.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
