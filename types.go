package authd

import "context"

// User is the identity record returned by the directory service. Role
// is an ordered privilege level; checks are "at least N".
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  uint8  `json:"role"`
}

// UserDirectory resolves a user by id or by email. Implementations must
// return [ErrUserNotFound] (possibly wrapped) when nothing matches, and
// any other error for transport or backend failure.
type UserDirectory interface {
	GetUser(ctx context.Context, idOrEmail string) (User, error)
}

// Mailer delivers a one-time code to an address. Delivery is
// fire-and-forget from the engine's perspective: the engine never
// retries, and a stored authcode stays consumable whether or not
// delivery succeeded.
type Mailer interface {
	Send(ctx context.Context, email, code string) error
}

// CodeGenerator produces one-time codes. The default generator emits
// 12-character URL-safe strings from crypto/rand.
type CodeGenerator func() string

// TokenPair carries the serialized JWTs of one session. It is a
// transient value: produced by creation and rotation, sent to the
// client, never stored.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenCheck is the verified identity of a presented token.
type TokenCheck struct {
	TokenID string `json:"-"`
	UserID  string `json:"user_id"`
}

// CheckAndRefreshResult is returned by CheckAndRefreshTokenPair. When
// Refreshed is true the session was silently rotated and Pair holds the
// replacement credentials the caller must pass on.
type CheckAndRefreshResult struct {
	TokenCheck
	Refreshed bool
	Pair      TokenPair
}

// NoMinimumRole disables the role gate on access-token checks.
const NoMinimumRole = -1
