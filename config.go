package authd

import (
	"errors"
	"time"
)

// Config defines the tunable behavior of an [Engine]. Start from
// [DefaultConfig]; instances are immutable once the engine is built.
type Config struct {
	Token    TokenConfig
	Authcode AuthcodeConfig
}

// TokenConfig controls token-pair issuance.
//
// SecretKeyMaxAge bounds how long a session's signing key stays
// readable. It always equals RefreshTTL: a secret key that outlives its
// refresh token would keep a dead session verifiable, and one that dies
// earlier would break live refresh tokens.
type TokenConfig struct {
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SecretKeyMaxAge time.Duration
}

// AuthcodeConfig controls one-time sign-in codes.
type AuthcodeConfig struct {
	// MaxAge is how long a code stays consumable after creation.
	MaxAge time.Duration
	// BucketCap is the maximum number of live codes per email.
	BucketCap int
	// CodeLength is the length of generated codes.
	CodeLength int
}

// DefaultConfig returns the production defaults: 4 hour access tokens,
// 7 day refresh tokens, 2 minute authcodes capped at 5 per email.
func DefaultConfig() Config {
	refreshTTL := 7 * 24 * time.Hour

	return Config{
		Token: TokenConfig{
			Issuer:          "authd",
			AccessTTL:       4 * time.Hour,
			RefreshTTL:      refreshTTL,
			SecretKeyMaxAge: refreshTTL,
		},
		Authcode: AuthcodeConfig{
			MaxAge:     2 * time.Minute,
			BucketCap:  5,
			CodeLength: 12,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.Token.AccessTTL >= cfg.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Token.SecretKeyMaxAge != cfg.Token.RefreshTTL {
		return errors.New("secret key max age must equal refresh TTL")
	}
	if cfg.Token.Issuer == "" {
		return errors.New("issuer must be set")
	}
	if cfg.Authcode.MaxAge <= 0 {
		return errors.New("authcode max age must be positive")
	}
	if cfg.Authcode.BucketCap <= 0 {
		return errors.New("authcode bucket cap must be positive")
	}
	if cfg.Authcode.CodeLength < 8 {
		return errors.New("authcode length must be at least 8")
	}
	return nil
}
