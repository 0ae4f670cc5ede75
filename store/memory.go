package store

import (
	"context"
	"sync"
	"time"

	"github.com/tokenforge/authd/token"
)

// MemorySecretKeys is an in-process SecretKeys implementation guarded by
// a single mutex. Used by tests and by deployments without Redis.
type MemorySecretKeys struct {
	mu      sync.Mutex
	entries map[string]memorySecretKey
	maxAge  time.Duration
	now     func() time.Time
}

type memorySecretKey struct {
	key       token.SecretKey
	createdAt time.Time
}

// NewMemorySecretKeys returns an empty in-memory store with the given
// key lifetime.
func NewMemorySecretKeys(maxAge time.Duration) *MemorySecretKeys {
	return &MemorySecretKeys{
		entries: make(map[string]memorySecretKey),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Get implements SecretKeys. Aged-out entries are deleted on read.
func (s *MemorySecretKeys) Get(_ context.Context, tokenID string) (token.SecretKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tokenID]
	if !ok {
		return "", ErrSecretKeyNotFound
	}
	if s.now().Sub(entry.createdAt) > s.maxAge {
		delete(s.entries, tokenID)
		return "", ErrSecretKeyNotFound
	}

	return entry.key, nil
}

// Add implements SecretKeys.
func (s *MemorySecretKeys) Add(_ context.Context, tokenID string, key token.SecretKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[tokenID] = memorySecretKey{key: key, createdAt: s.now()}
	return nil
}

// Remove implements SecretKeys.
func (s *MemorySecretKeys) Remove(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, tokenID)
	return nil
}

// MemoryAuthcodes is an in-process Authcodes implementation. One mutex
// covers all buckets; the contention that matters here is same-email
// adds racing the capacity check, and those serialize either way.
type MemoryAuthcodes struct {
	mu        sync.Mutex
	buckets   map[string][]Authcode
	bucketCap int
	maxAge    time.Duration
	now       func() time.Time
}

// NewMemoryAuthcodes returns an empty in-memory store with the given
// per-email capacity and entry lifetime.
func NewMemoryAuthcodes(bucketCap int, maxAge time.Duration) *MemoryAuthcodes {
	return &MemoryAuthcodes{
		buckets:   make(map[string][]Authcode),
		bucketCap: bucketCap,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

func (s *MemoryAuthcodes) expired(a Authcode) bool {
	return s.now().Sub(a.CreatedAt) > s.maxAge
}

// Add implements Authcodes: append-only, evict-from-front, and only an
// expired front entry may be displaced.
func (s *MemoryAuthcodes) Add(_ context.Context, authcode Authcode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if authcode.CreatedAt.IsZero() {
		authcode.CreatedAt = s.now()
	}

	bucket := s.buckets[authcode.UserEmail]
	if len(bucket) >= s.bucketCap {
		if !s.expired(bucket[0]) {
			return ErrAuthcodeBucketFull
		}
		bucket = bucket[1:]
	}

	s.buckets[authcode.UserEmail] = append(bucket, authcode)
	return nil
}

// Pop implements Authcodes. The matched entry is removed before the
// expiry verdict, so an expired code cannot be retried.
func (s *MemoryAuthcodes) Pop(_ context.Context, email, code string) (Authcode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[email]
	for i, entry := range bucket {
		if entry.Code != code {
			continue
		}

		s.buckets[email] = append(bucket[:i:i], bucket[i+1:]...)
		if len(s.buckets[email]) == 0 {
			delete(s.buckets, email)
		}

		if s.expired(entry) {
			return Authcode{}, ErrAuthcodeNotFound
		}
		return entry, nil
	}

	return Authcode{}, ErrAuthcodeNotFound
}
