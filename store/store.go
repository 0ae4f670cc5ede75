// Package store defines the two storage contracts of the token service,
// per-session secret keys and pending one-time authcodes, together with
// a Redis-backed implementation for production and a mutex-guarded
// in-memory one for tests and single-process deployments. The backend is
// chosen at composition time; callers only ever see the interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tokenforge/authd/token"
)

var (
	// ErrSecretKeyNotFound is returned by Get when a key was never
	// stored, was removed, or aged past the secret-key lifetime.
	ErrSecretKeyNotFound = errors.New("secret key not found")
	// ErrAuthcodeNotFound is returned by Pop when no live entry matches.
	ErrAuthcodeNotFound = errors.New("authcode not found")
	// ErrAuthcodeBucketFull is returned by Add when the per-email bucket
	// holds its maximum of unexpired codes.
	ErrAuthcodeBucketFull = errors.New("authcode bucket full")
	// ErrUnavailable wraps every backing-store communication failure.
	// It is never swallowed: an unreadable store must fail the calling
	// operation rather than let a verification silently pass.
	ErrUnavailable = errors.New("store unavailable")
)

// Authcode is a pending one-time sign-in code for one email address.
type Authcode struct {
	UserEmail string
	Code      string
	CreatedAt time.Time
}

// SecretKeys stores one signing secret per session id.
//
// A key must become unreadable once it is older than the configured
// maximum age, even if the backing store's physical TTL has not fired;
// implementations enforce that at read time.
type SecretKeys interface {
	// Get returns the key for tokenID, or ErrSecretKeyNotFound.
	Get(ctx context.Context, tokenID string) (token.SecretKey, error)
	// Add stores key under tokenID with the store's configured lifetime.
	Add(ctx context.Context, tokenID string, key token.SecretKey) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, tokenID string) error
}

// Authcodes stores pending codes in per-email buckets of bounded size.
//
// Within a bucket, insertion order defines "oldest"; eviction is always
// from the front and only when the front entry has expired. The
// cap-check-then-insert step of Add is atomic with respect to other
// Adds for the same email.
type Authcodes interface {
	// Pop removes and returns the entry matching (email, code) exactly.
	// A matched-but-expired entry is still removed and reported as
	// ErrAuthcodeNotFound; a code is never readable twice.
	Pop(ctx context.Context, email, code string) (Authcode, error)
	// Add appends a code to the email's bucket, evicting an expired
	// front entry if the bucket is at capacity, or refusing with
	// ErrAuthcodeBucketFull if the front entry is still live.
	Add(ctx context.Context, authcode Authcode) error
}
