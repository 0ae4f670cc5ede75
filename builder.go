package authd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tokenforge/authd/internal/randx"
	"github.com/tokenforge/authd/store"
	"github.com/tokenforge/authd/token"
)

// Builder assembles an Engine. Zero value is not usable; start from
// [New]. A Redis client turns on the Redis-backed stores; without one
// the in-memory stores are used, which is fine for tests and a single
// process but loses all sessions on restart.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	secretKeys store.SecretKeys
	authcodes  store.Authcodes
	directory  UserDirectory
	mailer     Mailer
	generate   CodeGenerator
	logger     *slog.Logger
}

func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSecretKeys overrides the secret key store chosen by Build.
func (b *Builder) WithSecretKeys(s store.SecretKeys) *Builder {
	b.secretKeys = s
	return b
}

// WithAuthcodes overrides the authcode store chosen by Build.
func (b *Builder) WithAuthcodes(s store.Authcodes) *Builder {
	b.authcodes = s
	return b
}

func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithCodeGenerator overrides authcode generation, mainly for tests
// that need predictable codes.
func (b *Builder) WithCodeGenerator(g CodeGenerator) *Builder {
	b.generate = g
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if err := validateConfig(b.config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if b.directory == nil {
		return nil, errors.New("user directory is required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	secretKeys := b.secretKeys
	authcodes := b.authcodes
	if b.redis != nil {
		if secretKeys == nil {
			secretKeys = store.NewRedisSecretKeys(b.redis, b.config.Token.SecretKeyMaxAge)
		}
		if authcodes == nil {
			authcodes = store.NewRedisAuthcodes(b.redis, b.config.Authcode.BucketCap, b.config.Authcode.MaxAge)
		}
	} else {
		if secretKeys == nil {
			secretKeys = store.NewMemorySecretKeys(b.config.Token.SecretKeyMaxAge)
		}
		if authcodes == nil {
			authcodes = store.NewMemoryAuthcodes(b.config.Authcode.BucketCap, b.config.Authcode.MaxAge)
		}
	}

	generate := b.generate
	if generate == nil {
		length := b.config.Authcode.CodeLength
		generate = func() string { return randx.Code(length) }
	}

	if b.mailer == nil {
		logger.Warn("building engine without a mailer, authcodes will not be delivered")
	}

	return &Engine{
		config:     b.config,
		secretKeys: secretKeys,
		authcodes:  authcodes,
		directory:  b.directory,
		mailer:     b.mailer,
		codec:      token.NewCodec(b.config.Token.Issuer, b.config.Token.AccessTTL, b.config.Token.RefreshTTL),
		generate:   generate,
		metrics:    NewMetrics(),
		logger:     logger,
	}, nil
}
