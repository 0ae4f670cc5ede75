// Package token implements the per-session JWT codec: claim construction
// for access/refresh pairs, HS256 signing with a session-scoped secret
// key, and the unsigned payload peek used to locate that key.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two claim sets minted from one Token. The kind
// claim is only trusted after signature verification succeeds.
type Kind string

const (
	// KindAccess marks access-token claims.
	KindAccess Kind = "access"
	// KindRefresh marks refresh-token claims.
	KindRefresh Kind = "refresh"
)

// ErrVerification is returned for every verification failure: bad
// signature, malformed token, wrong kind, or expired when expiry is
// checked. Callers never learn which; distinguishing them would leak
// oracle detail for no caller benefit.
var ErrVerification = errors.New("token verification failed")

// ErrUnreadablePayload is returned when the middle JWT segment cannot be
// decoded at all.
var ErrUnreadablePayload = errors.New("token payload unreadable")

// Token identifies one login session. A fresh ID is generated on login
// and on every rotation; a Token is never mutated after creation.
type Token struct {
	ID     string
	UserID string
}

// New creates a session token for userID with a random session id.
func New(userID string) Token {
	return Token{
		ID:     uuid.NewString(),
		UserID: userID,
	}
}

// Claims is the signed claim set carried by both access and refresh
// tokens. Kind tells them apart; everything else is shared.
type Claims struct {
	TokenID string `json:"id"`
	UserID  string `json:"user_id"`
	Kind    Kind   `json:"tk"`
	jwt.RegisteredClaims
}

// Payload is the unverified view of a token, decoded without checking
// the signature. Only TokenID may be acted on before verification, and
// only to select the session's secret key.
type Payload struct {
	TokenID string `json:"id"`
	UserID  string `json:"user_id"`
	Kind    Kind   `json:"tk"`
}

// Codec mints and verifies token pairs. Instances are immutable after
// construction and safe for concurrent use.
type Codec struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec returns a Codec issuing access tokens valid for accessTTL and
// refresh tokens valid for refreshTTL.
func NewCodec(issuer string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (c *Codec) claims(t Token, kind Kind, ttl time.Duration, now time.Time) Claims {
	return Claims{
		TokenID: t.ID,
		UserID:  t.UserID,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectFor(kind),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func subjectFor(kind Kind) string {
	return "authd " + string(kind) + " token"
}

// Issue signs both claim sets of t with the session's secret key and
// returns the serialized (access, refresh) pair. Signing can only fail
// for local reasons (empty key, unmarshalable claims), so failure is a
// programming error and panics rather than surfacing as a business
// error.
func (c *Codec) Issue(t Token, key SecretKey) (string, string) {
	now := time.Now()

	access, err := sign(c.claims(t, KindAccess, c.accessTTL, now), key)
	if err != nil {
		panic(fmt.Sprintf("token: sign access claims: %v", err))
	}

	refresh, err := sign(c.claims(t, KindRefresh, c.refreshTTL, now), key)
	if err != nil {
		panic(fmt.Sprintf("token: sign refresh claims: %v", err))
	}

	return access, refresh
}

func sign(claims Claims, key SecretKey) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// ParseAccess verifies tokenStr as an access token under key. The
// signature is always checked; the expiry only when validateExp is true.
// Every failure collapses into [ErrVerification].
func (c *Codec) ParseAccess(tokenStr string, key SecretKey, validateExp bool) (*Claims, error) {
	return c.parse(tokenStr, key, KindAccess, validateExp)
}

// ParseRefresh verifies tokenStr as a refresh token under key. Refresh
// tokens are always checked for expiry.
func (c *Codec) ParseRefresh(tokenStr string, key SecretKey) (*Claims, error) {
	return c.parse(tokenStr, key, KindRefresh, true)
}

func (c *Codec) parse(tokenStr string, key SecretKey, kind Kind, validateExp bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if !validateExp {
		// Pair-consistency checks need the signature of a technically
		// expired access token; signature verification is unaffected.
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	})
	if err != nil {
		return nil, ErrVerification
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrVerification
	}
	if claims.Kind != kind {
		return nil, ErrVerification
	}

	return claims, nil
}

// ExtractPayload decodes the middle JWT segment without verifying the
// signature. This is the first half of the two-phase decode: the token
// id inside determines which per-session secret key verifies the rest.
// Nothing returned here is trustworthy until a Parse call succeeds.
func ExtractPayload(tokenStr string) (*Payload, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, ErrUnreadablePayload
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrUnreadablePayload
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrUnreadablePayload
	}
	if payload.TokenID == "" {
		return nil, ErrUnreadablePayload
	}

	return &payload, nil
}
