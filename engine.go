// Package authd implements the token/session lifecycle engine of the
// authentication service: per-session secret-key management, issuance
// and verification of independently keyed access/refresh JWT pairs, the
// pair-consistency check, atomic rotation, and the single-use email
// authcode flow.
//
// An [Engine] is assembled once at startup through the [Builder] with
// its storage backend, user directory, and mail delivery collaborators,
// then shared across request handlers. All operations take a
// context.Context and are safe for concurrent use.
package authd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tokenforge/authd/store"
	"github.com/tokenforge/authd/token"
)

// Engine orchestrates every token and authcode operation. Construct it
// with [New]; the zero value is not usable.
type Engine struct {
	config     Config
	secretKeys store.SecretKeys
	authcodes  store.Authcodes
	directory  UserDirectory
	mailer     Mailer
	codec      *token.Codec
	generate   CodeGenerator
	metrics    *Metrics
	logger     *slog.Logger
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// MetricsSnapshot returns current counter values.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// storeErr records a backing-store failure and returns it unchanged.
// Store failures are never softened into business errors: an unreadable
// secret-key store must fail the operation, not let it pass.
func (e *Engine) storeErr(ctx context.Context, op string, err error) error {
	e.metricInc(MetricStoreFailure)
	e.logger.ErrorContext(ctx, "store failure", "op", op, "err", err)
	return err
}

// lookupRole fetches the verified user and applies the role gate.
func (e *Engine) lookupRole(ctx context.Context, userID string, minimumRole int) error {
	if minimumRole < 0 {
		return nil
	}

	user, err := e.directory.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if int(user.Role) < minimumRole {
		e.metricInc(MetricPermissionDenied)
		return ErrPermissionDenied
	}
	return nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}
