package grantcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/railstack/grantcore/grant"
	"github.com/railstack/grantcore/internal"
	"github.com/railstack/grantcore/internal/flows"
)

const (
	detailLogout  = "logout"
	detailRotated = "rotated"
)

const createAttempts = 3

// Issue creates a session-renewal grant for a user whose credentials an
// external collaborator has already verified, and returns the opaque
// refresh token bound to it (plus a signed access token when JWT issuance
// is enabled).
func (e *Engine) Issue(ctx context.Context, userID, role string, extraClaims map[string]string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if userID == "" {
		return TokenPair{}, errors.New("user id is required")
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		gid, err := internal.NewGrantID()
		if err != nil {
			return TokenPair{}, err
		}
		secret, err := internal.NewGrantSecret()
		if err != nil {
			return TokenPair{}, err
		}

		now := time.Now()
		g := &grant.Grant{
			ID:         gid.String(),
			Kind:       grant.KindSession,
			Subject:    userID,
			Status:     grant.StatusActive,
			SecretHash: internal.HashGrantSecret(secret),
			CreatedAt:  now.Unix(),
			ExpiresAt:  now.Add(e.config.Session.TTL).Unix(),
			Session: &grant.SessionPayload{
				Role:        role,
				ExtraClaims: extraClaims,
			},
		}

		if err := e.createWithRetry(ctx, g); err != nil {
			if errors.Is(err, grant.ErrDuplicateID) {
				lastErr = err
				continue
			}
			return TokenPair{}, e.mapClaimError(err)
		}

		refreshToken, err := internal.EncodeSessionToken(g.ID, secret)
		if err != nil {
			return TokenPair{}, err
		}

		accessToken, err := e.mintAccessToken(userID, role, g.ID, extraClaims)
		if err != nil {
			return TokenPair{}, err
		}

		e.metricInc(MetricSessionIssued)
		e.emitCreated(ctx, g, map[string]string{"role": role})

		return TokenPair{
			GrantID:      g.ID,
			RefreshToken: refreshToken,
			AccessToken:  accessToken,
			ExpiresAt:    time.Unix(g.ExpiresAt, 0),
		}, nil
	}

	return TokenPair{}, e.mapClaimError(lastErr)
}

// Validate reads (never claims) the session grant behind the token and
// returns its claims when the grant is ACTIVE, unexpired, and the bearer
// secret matches. Every other condition collapses to [ErrTokenInvalid]:
// validation is a repeatable, non-mutating operation that leaks no internal
// state distinctions to authentication callers.
func (e *Engine) Validate(ctx context.Context, refreshToken string) (*Claims, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()

	grantID, secret, err := internal.DecodeSessionToken(refreshToken)
	if err != nil {
		e.metricInc(MetricSessionValidateFailure)
		return nil, ErrTokenInvalid
	}

	g, err := e.store.Get(ctx, grant.KindSession, grantID)
	if err != nil {
		if errors.Is(err, grant.ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			return nil, e.mapClaimError(err)
		}
		e.metricInc(MetricSessionValidateFailure)
		return nil, ErrTokenInvalid
	}

	providedHash := internal.HashGrantSecret(secret)
	if g.Status != grant.StatusActive ||
		g.Expired(time.Now()) ||
		subtle.ConstantTimeCompare(g.SecretHash[:], providedHash[:]) != 1 {
		e.metricInc(MetricSessionValidateFailure)
		return nil, ErrTokenInvalid
	}

	claims := &Claims{
		UserID:    g.Subject,
		GrantID:   g.ID,
		IssuedAt:  time.Unix(g.CreatedAt, 0),
		ExpiresAt: time.Unix(g.ExpiresAt, 0),
	}
	if g.Session != nil {
		claims.Role = g.Session.Role
		claims.ExtraClaims = g.Session.ExtraClaims
		claims.RotatedFrom = g.Session.RotatedFrom
	}

	e.metricInc(MetricSessionValidateSuccess)
	e.metricObserve(MetricValidateLatency, time.Since(start))
	return claims, nil
}

// Revoke consumes the session grant behind the token with terminal status
// REVOKED("logout"). Returns whether a grant was actually revoked: false
// when the token is malformed, absent, expired, or already terminal.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}

	grantID, secret, err := internal.DecodeSessionToken(refreshToken)
	if err != nil {
		return false, nil
	}

	providedHash := internal.HashGrantSecret(secret)
	g, claimToken, err := e.store.Claim(ctx, grant.KindSession, grantID, &providedHash)
	if err != nil {
		if errors.Is(err, grant.ErrStoreUnavailable) {
			return false, e.mapClaimError(err)
		}
		return false, nil
	}

	if err := e.finalizeWithRetry(ctx, grant.KindSession, grantID, claimToken, grant.StatusRevoked, detailLogout); err != nil {
		if relErr := e.store.Release(ctx, grant.KindSession, grantID, claimToken); relErr != nil {
			e.warnf("revoke: release of grant %s failed: %v", grantID, relErr)
		}
		return false, e.mapClaimError(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitResolved(ctx, grant.KindSession, g.Subject, grantID, grant.StatusRevoked, detailLogout)
	return true, nil
}

// RevokeAll revokes every ACTIVE session grant of the user ("log out
// everywhere") and returns how many were revoked. Exhaustive and
// idempotent: a second call returns 0.
func (e *Engine) RevokeAll(ctx context.Context, userID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	ids, err := e.store.RevokeAllBySubject(ctx, grant.KindSession, userID, detailLogout)
	if err != nil {
		return 0, e.mapClaimError(err)
	}

	e.metricInc(MetricSessionRevokedAll)
	for _, id := range ids {
		e.emitResolved(ctx, grant.KindSession, userID, id, grant.StatusRevoked, detailLogout)
	}
	return len(ids), nil
}

// Rotate consumes the old session grant and issues a replacement carrying
// the same user, role, and extra claims, linked through the rotation chain.
// All-or-nothing: if the replacement cannot be created, the old grant is
// released untouched and stays valid.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	result := flows.RunRotate(ctx, refreshToken, flows.RotateDeps{
		DecodeToken: internal.DecodeSessionToken,
		NewGrantID: func() (string, error) {
			gid, err := internal.NewGrantID()
			if err != nil {
				return "", err
			}
			return gid.String(), nil
		},
		NewSecret:   internal.NewGrantSecret,
		HashSecret:  internal.HashGrantSecret,
		EncodeToken: internal.EncodeSessionToken,
		SessionTTL:  e.config.Session.TTL,
		Warn:        e.config.Warn,
		Store:       e.store,
	})

	switch result.Failure {
	case flows.RotateFailureNone:
	case flows.RotateFailureDecode:
		e.metricInc(MetricRotateFailure)
		return TokenPair{}, ErrTokenInvalid
	case flows.RotateFailureClaim:
		e.metricInc(MetricRotateFailure)
		return TokenPair{}, e.mapClaimError(result.Err)
	default:
		e.metricInc(MetricRotateFailure)
		return TokenPair{}, e.mapClaimError(result.Err)
	}

	old := result.Grant
	role := ""
	var extra map[string]string
	if old.Session != nil {
		role = old.Session.Role
		extra = old.Session.ExtraClaims
	}

	accessToken, err := e.mintAccessToken(old.Subject, role, result.NewGrantID, extra)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricRotateSuccess)
	e.emitResolved(ctx, grant.KindSession, old.Subject, result.OldGrantID, grant.StatusRevoked, detailRotated)
	if e.notify != nil {
		e.notify.Emit(ctx, Event{
			Timestamp: time.Now(),
			Type:      EventGrantCreated,
			Kind:      grant.KindSession.String(),
			Subject:   old.Subject,
			GrantID:   result.NewGrantID,
			Metadata:  map[string]string{"rotated_from": result.OldGrantID},
		})
	}

	return TokenPair{
		GrantID:      result.NewGrantID,
		RefreshToken: result.NewToken,
		AccessToken:  accessToken,
		ExpiresAt:    time.Now().Add(e.config.Session.TTL),
	}, nil
}

func (e *Engine) mintAccessToken(userID, role, grantID string, extra map[string]string) (string, error) {
	if e.jwtManager == nil {
		return "", nil
	}
	return e.jwtManager.CreateAccess(userID, role, grantID, extra)
}

func (e *Engine) createWithRetry(ctx context.Context, g *grant.Grant) error {
	err := e.store.Create(ctx, g)
	if err == nil || !errors.Is(err, grant.ErrStoreUnavailable) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(50 * time.Millisecond):
	}
	return e.store.Create(ctx, g)
}

func (e *Engine) finalizeWithRetry(ctx context.Context, kind grant.Kind, id string, token grant.ClaimToken, status grant.Status, detail string) error {
	err := e.store.Finalize(ctx, kind, id, token, status, detail)
	if err == nil || !errors.Is(err, grant.ErrStoreUnavailable) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(50 * time.Millisecond):
	}
	return e.store.Finalize(ctx, kind, id, token, status, detail)
}
