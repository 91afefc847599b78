// Package memory provides an in-process db.Store for device-local
// deployments where no Redis instance is reachable.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sightline-ai/percept/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// entry holds a value with an optional expiration deadline.
type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store implements db.Store over a mutex-guarded map. Expired entries
// are dropped lazily on access.
type Store struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time // переопределяется в тестах
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Ping always succeeds for an in-process store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close releases the backing map.
func (s *Store) Close() {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil, db.ErrKeyNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{value: clone(value)}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{value: clone(value), expiresAt: s.now().Add(ttl)}
	return nil
}

// Del deletes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return false, nil
	}
	return true, nil
}

// IncrBy atomically increments a key by the given amount. A missing key
// starts at zero, matching Redis INCRBY.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	e, ok := s.data[key]
	if ok && !e.expired(s.now()) {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value at %q is not an integer", key)}
		}
		current = n
	}

	// Expiry установленный ранее сохраняется, как у Redis
	e.value = []byte(strconv.FormatInt(current+val, 10))
	if !ok || e.expired(s.now()) {
		e.expiresAt = time.Time{}
	}
	s.data[key] = e
	return nil
}

// Expire sets TTL on a key. When nx=true, sets TTL only if the key has
// no expiry yet. Missing keys are a no-op, matching Redis EXPIRE.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expired(s.now()) {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}

	e.expiresAt = s.now().Add(ttl)
	s.data[key] = e
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
