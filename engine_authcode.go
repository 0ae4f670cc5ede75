package authd

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokenforge/authd/store"
)

// CreateAuthcode issues a one-time login code for email and hands it to
// the mailer when deliver is true. The email must resolve to a known
// user before any code is generated. At most five codes may be pending
// per email; the sixth request is refused with [ErrTooManyAuthcodes]
// until the oldest pending code expires.
//
// Delivery failure does not invalidate the stored code. The error is
// returned so the caller can tell the user, but a code that was minted
// stays consumable.
func (e *Engine) CreateAuthcode(ctx context.Context, email string, deliver bool) error {
	user, err := e.directory.GetUser(ctx, email)
	if err != nil {
		return err
	}

	code := e.generate()

	err = e.authcodes.Add(ctx, store.Authcode{UserEmail: user.Email, Code: code})
	if err != nil {
		if errors.Is(err, store.ErrAuthcodeBucketFull) {
			e.metricInc(MetricAuthcodeRateLimited)
			return ErrTooManyAuthcodes
		}
		return e.storeErr(ctx, "authcodes.add", err)
	}

	e.metricInc(MetricAuthcodeIssued)
	e.logger.InfoContext(ctx, "authcode issued", "email", user.Email)

	if !deliver {
		return nil
	}
	if e.mailer == nil {
		e.logger.WarnContext(ctx, "no mailer configured, authcode not delivered", "email", user.Email)
		return nil
	}
	if err := e.mailer.Send(ctx, user.Email, code); err != nil {
		e.logger.ErrorContext(ctx, "authcode delivery failed", "email", user.Email, "err", err)
		return fmt.Errorf("send authcode: %w", err)
	}

	return nil
}

// CheckAuthcode consumes the pending code for (email, code). The code
// is removed on sight whether or not it turns out to be expired; a
// second presentation of the same code always fails. Returns the email
// the code was issued for.
func (e *Engine) CheckAuthcode(ctx context.Context, email, code string) (string, error) {
	authcode, err := e.authcodes.Pop(ctx, email, code)
	if err != nil {
		if errors.Is(err, store.ErrAuthcodeNotFound) {
			e.metricInc(MetricAuthcodeRejected)
			return "", ErrInvalidAuthcode
		}
		return "", e.storeErr(ctx, "authcodes.pop", err)
	}

	e.metricInc(MetricAuthcodeConsumed)
	return authcode.UserEmail, nil
}

// ExchangeAuthcode is the login flow: consume the code, then mint a
// fresh token pair for the user it was issued to. The code is spent
// even if minting fails afterwards.
func (e *Engine) ExchangeAuthcode(ctx context.Context, email, code string) (TokenPair, error) {
	userEmail, err := e.CheckAuthcode(ctx, email, code)
	if err != nil {
		return TokenPair{}, err
	}
	return e.CreateTokenPairByEmail(ctx, userEmail)
}
