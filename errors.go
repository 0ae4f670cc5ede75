package authd

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorizedAccessToken is returned when an access token fails
	// the two-phase decode: unreadable payload, missing session key, bad
	// signature, wrong kind, or expired.
	ErrUnauthorizedAccessToken = errors.New("unauthorized access token")
	// ErrUnauthorizedRefreshToken is the refresh-token counterpart.
	ErrUnauthorizedRefreshToken = errors.New("unauthorized refresh token")
	// ErrTokenPairMismatch is returned when both tokens verify but were
	// not issued together.
	ErrTokenPairMismatch = errors.New("invalid token pair")
	// ErrPermissionDenied is returned when the verified user's role is
	// below the requested minimum.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUserNotFound is returned when the user directory has no match
	// for the given id or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAuthcode is returned when an authcode is absent, already
	// consumed, or expired.
	ErrInvalidAuthcode = errors.New("invalid authcode")
	// ErrTooManyAuthcodes is returned when an email already has its
	// maximum of live authcodes.
	ErrTooManyAuthcodes = errors.New("too many authcodes created")
	// ErrTokenUnreadable is returned by DeleteTokenPair when no session
	// id can be extracted, or the two tokens disagree about it.
	ErrTokenUnreadable = errors.New("token unreadable")
	// ErrSecretKeyNotSaved is returned when the secret-key store refuses
	// to persist a new session key.
	ErrSecretKeyNotSaved = errors.New("secret key not saved")
	// ErrSecretKeyNotRemoved is returned when rotation cannot revoke the
	// old session. No replacement pair is minted in that case.
	ErrSecretKeyNotRemoved = errors.New("secret key not removed")
)

// PermissionDeniedError is the rotate-then-reject outcome of
// CheckAndRefreshTokenPair: the role check failed against a pair that
// was already rotated. The carried pair is the caller's only copy of the
// live session credentials. Rotation cannot be undone, so the caller
// must still deliver them to the client alongside the refusal.
type PermissionDeniedError struct {
	Pair TokenPair
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%v (token pair already rotated)", ErrPermissionDenied)
}

// Is makes errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
