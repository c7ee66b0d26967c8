// Package tokenstore holds short-lived streaming access tokens keyed by
// external user id and provider. Records live only in memory and expire
// after their TTL; expired records are purged lazily on access.
package tokenstore

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is applied when a put does not carry its own TTL.
const DefaultTTL = 86400 * time.Second

var ErrNotFound = errors.New("token not found")

// Record is a stored access token with its expiry window.
// The token value itself must never be logged.
type Record struct {
	UserID    string
	Provider  string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the remaining lifetime of the record relative to now.
func (r Record) TTL(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type key struct {
	userID   string
	provider string
}

// Store is a concurrency-safe in-memory token store. Writes to the same
// (user, provider) key are serialized so the last put wins; readers never
// observe a partially written record.
type Store struct {
	mu         sync.RWMutex
	records    map[key]Record
	defaultTTL time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// New creates a store with the given default TTL. A non-positive TTL
// falls back to DefaultTTL.
func New(defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Store{
		records:    make(map[key]Record),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Put stores a token for (userID, provider), overwriting any existing
// record for the same key. A non-positive ttl uses the store default.
func (s *Store) Put(userID, provider, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issued := s.now()
	s.records[key{userID, provider}] = Record{
		UserID:    userID,
		Provider:  provider,
		Token:     token,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	}
}

// Get returns the live record for (userID, provider). Expired records are
// treated as absent and removed.
func (s *Store) Get(userID, provider string) (Record, error) {
	k := key{userID, provider}

	s.mu.RLock()
	rec, ok := s.records[k]
	now := s.now()
	s.mu.RUnlock()

	if !ok {
		return Record{}, ErrNotFound
	}
	if now.After(rec.ExpiresAt) {
		// Purge under the write lock, re-checking that the record was not
		// replaced by a concurrent put in the meantime.
		s.mu.Lock()
		if cur, ok := s.records[k]; ok && cur.ExpiresAt.Equal(rec.ExpiresAt) {
			delete(s.records, k)
		}
		s.mu.Unlock()
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record for (userID, provider). Idempotent.
func (s *Store) Delete(userID, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key{userID, provider})
}

// Len reports the number of stored records, including not-yet-purged
// expired ones. Used for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
