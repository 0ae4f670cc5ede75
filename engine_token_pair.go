package authd

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokenforge/authd/store"
	"github.com/tokenforge/authd/token"
)

// errNotVerified is the internal collapse of every verification
// failure. Public methods translate it to the token-specific
// unauthorized error; callers never learn which step failed.
var errNotVerified = errors.New("token not verified")

// CreateTokenPair mints a brand-new session for userID: fresh session
// id, fresh secret key stored under it, and both JWTs signed with that
// key. This is the terminal step of both the authcode login flow and
// rotation.
func (e *Engine) CreateTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	pair, _, err := e.createTokenPair(ctx, userID)
	return pair, err
}

// CreateTokenPairByEmail resolves email through the user directory and
// mints a session for the resolved user id.
func (e *Engine) CreateTokenPairByEmail(ctx context.Context, email string) (TokenPair, error) {
	user, err := e.directory.GetUser(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	return e.CreateTokenPair(ctx, user.ID)
}

func (e *Engine) createTokenPair(ctx context.Context, userID string) (TokenPair, token.Token, error) {
	t := token.New(userID)
	key := token.NewSecretKey()

	if err := e.secretKeys.Add(ctx, t.ID, key); err != nil {
		if isUnavailable(err) {
			return TokenPair{}, token.Token{}, e.storeErr(ctx, "secret_keys.add", err)
		}
		return TokenPair{}, token.Token{}, fmt.Errorf("%w: %v", ErrSecretKeyNotSaved, err)
	}

	access, refresh := e.codec.Issue(t, key)

	e.metricInc(MetricPairCreated)
	e.logger.DebugContext(ctx, "token pair created", "token_id", t.ID, "user_id", userID)

	return TokenPair{AccessToken: access, RefreshToken: refresh}, t, nil
}

// verify runs the two-phase decode: peek the unverified payload for the
// session id, fetch that session's secret key, then verify signature
// (and expiry when asked). Only the session id is acted on before the
// signature check succeeds.
func (e *Engine) verify(ctx context.Context, tokenStr string, kind token.Kind, validateExp bool) (*token.Claims, error) {
	payload, err := token.ExtractPayload(tokenStr)
	if err != nil {
		return nil, errNotVerified
	}

	key, err := e.secretKeys.Get(ctx, payload.TokenID)
	if err != nil {
		if errors.Is(err, store.ErrSecretKeyNotFound) {
			return nil, errNotVerified
		}
		return nil, e.storeErr(ctx, "secret_keys.get", err)
	}

	var claims *token.Claims
	if kind == token.KindAccess {
		claims, err = e.codec.ParseAccess(tokenStr, key, validateExp)
	} else {
		claims, err = e.codec.ParseRefresh(tokenStr, key)
	}
	if err != nil {
		return nil, errNotVerified
	}

	return claims, nil
}

// CheckAccessToken verifies an access token and optionally enforces a
// minimum role (pass [NoMinimumRole] to skip the gate). validateExp is
// false only for the pair-consistency check, where a technically
// expired access token must still prove its pairing.
func (e *Engine) CheckAccessToken(ctx context.Context, accessToken string, minimumRole int, validateExp bool) (TokenCheck, error) {
	claims, err := e.verify(ctx, accessToken, token.KindAccess, validateExp)
	if err != nil {
		if errors.Is(err, errNotVerified) {
			e.metricInc(MetricAccessRejected)
			return TokenCheck{}, ErrUnauthorizedAccessToken
		}
		return TokenCheck{}, err
	}

	if err := e.lookupRole(ctx, claims.UserID, minimumRole); err != nil {
		return TokenCheck{}, err
	}

	e.metricInc(MetricAccessAccepted)
	return TokenCheck{TokenID: claims.TokenID, UserID: claims.UserID}, nil
}

// CheckRefreshToken verifies a refresh token. Expiry is always checked.
func (e *Engine) CheckRefreshToken(ctx context.Context, refreshToken string) (TokenCheck, error) {
	claims, err := e.verify(ctx, refreshToken, token.KindRefresh, true)
	if err != nil {
		if errors.Is(err, errNotVerified) {
			return TokenCheck{}, ErrUnauthorizedRefreshToken
		}
		return TokenCheck{}, err
	}

	return TokenCheck{TokenID: claims.TokenID, UserID: claims.UserID}, nil
}

// CheckTokenPair verifies that the two tokens were issued together.
// Both must verify cryptographically, and they must agree on session id
// and user id; two tokens from different sessions are rejected even
// when each verifies on its own. The access token is checked without
// expiry validation so an expired one can still prove its pairing.
func (e *Engine) CheckTokenPair(ctx context.Context, accessToken, refreshToken string) (TokenCheck, error) {
	access, err := e.CheckAccessToken(ctx, accessToken, NoMinimumRole, false)
	if err != nil {
		return TokenCheck{}, err
	}

	refresh, err := e.CheckRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenCheck{}, err
	}

	if access.TokenID != refresh.TokenID || access.UserID != refresh.UserID {
		e.metricInc(MetricPairRejected)
		return TokenCheck{}, ErrTokenPairMismatch
	}

	return access, nil
}

// RefreshTokenPair rotates a session: verify the pair, revoke the old
// session's secret key, then mint a replacement with a disjoint id and
// key. Revocation must succeed before anything new is created, so the
// window in which both sessions verify is zero; a failed removal aborts
// with [ErrSecretKeyNotRemoved] and no new pair.
func (e *Engine) RefreshTokenPair(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	pair, _, err := e.refreshTokenPair(ctx, accessToken, refreshToken)
	return pair, err
}

func (e *Engine) refreshTokenPair(ctx context.Context, accessToken, refreshToken string) (TokenPair, token.Token, error) {
	check, err := e.CheckTokenPair(ctx, accessToken, refreshToken)
	if err != nil {
		return TokenPair{}, token.Token{}, err
	}

	if err := e.secretKeys.Remove(ctx, check.TokenID); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "rotation aborted, old key not removed", "token_id", check.TokenID, "err", err)
		return TokenPair{}, token.Token{}, fmt.Errorf("%w: %v", ErrSecretKeyNotRemoved, err)
	}

	pair, t, err := e.createTokenPair(ctx, check.UserID)
	if err != nil {
		return TokenPair{}, token.Token{}, err
	}

	e.metricInc(MetricPairRefreshed)
	e.logger.InfoContext(ctx, "token pair rotated", "old_token_id", check.TokenID, "new_token_id", t.ID)

	return pair, t, nil
}

// CheckAndRefreshTokenPair is the "verify or silently refresh"
// composite. The access token is checked first; only a verification
// failure falls through to rotation, after which the role requirement
// is re-checked against the new access token. A role refusal at that
// point returns [*PermissionDeniedError] carrying the already-rotated
// pair: the caller must still deliver those credentials, because
// rotation cannot be undone. Any other error short-circuits without
// rotating anything.
func (e *Engine) CheckAndRefreshTokenPair(ctx context.Context, accessToken, refreshToken string, minimumRole int) (CheckAndRefreshResult, error) {
	check, err := e.CheckAccessToken(ctx, accessToken, minimumRole, true)
	if err == nil {
		return CheckAndRefreshResult{TokenCheck: check}, nil
	}
	if !errors.Is(err, ErrUnauthorizedAccessToken) {
		return CheckAndRefreshResult{}, err
	}

	pair, t, err := e.refreshTokenPair(ctx, accessToken, refreshToken)
	if err != nil {
		return CheckAndRefreshResult{}, err
	}

	if minimumRole >= 0 {
		if _, err := e.CheckAccessToken(ctx, pair.AccessToken, minimumRole, true); err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return CheckAndRefreshResult{}, &PermissionDeniedError{Pair: pair}
			}
			return CheckAndRefreshResult{}, err
		}
	}

	return CheckAndRefreshResult{
		TokenCheck: TokenCheck{TokenID: t.ID, UserID: t.UserID},
		Refreshed:  true,
		Pair:       pair,
	}, nil
}

// DeleteTokenPair forgets a session on logout. The tokens are not
// verified cryptographically: the goal is "forget this session", not
// "prove who's asking", and logout must work with a stale or garbled
// access token. The session id is taken from whichever token still
// parses, preferring the access token; when both parse they must agree
// on id and user id.
func (e *Engine) DeleteTokenPair(ctx context.Context, accessToken, refreshToken string) error {
	access, accessErr := token.ExtractPayload(accessToken)
	refresh, refreshErr := token.ExtractPayload(refreshToken)

	var tokenID string
	switch {
	case accessErr == nil && refreshErr == nil:
		if access.TokenID != refresh.TokenID || access.UserID != refresh.UserID {
			return ErrTokenUnreadable
		}
		tokenID = access.TokenID
	case accessErr == nil:
		tokenID = access.TokenID
	case refreshErr == nil:
		tokenID = refresh.TokenID
	default:
		return ErrTokenUnreadable
	}

	if err := e.secretKeys.Remove(ctx, tokenID); err != nil {
		return e.storeErr(ctx, "secret_keys.remove", err)
	}

	e.metricInc(MetricPairDeleted)
	e.logger.InfoContext(ctx, "session deleted", "token_id", tokenID)

	return nil
}
