package flows

import (
	"context"
	"errors"
	"time"

	"github.com/railstack/grantcore/grant"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureClaim
	RotateFailureNewGrant
	RotateFailureCreate
	RotateFailureFinalize
)

// RotateResult carries either the replacement token pair inputs or failure
// metadata.
type RotateResult struct {
	Failure RotateFailureKind
	Err     error

	OldGrantID string
	NewGrantID string
	Grant      *grant.Grant
	NewToken   string
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	DecodeToken func(string) (string, [32]byte, error)
	NewGrantID  func() (string, error)
	NewSecret   func() ([32]byte, error)
	HashSecret  func([32]byte) [32]byte
	EncodeToken func(string, [32]byte) (string, error)
	SessionTTL  time.Duration
	Warn        func(string, ...any)
	Store       GrantStore
}

// RunRotate executes refresh rotation: claim the old grant, create the
// replacement carrying the rotation chain link, then revoke the old grant
// with detail "rotated". Rotation is all-or-nothing: if the replacement
// cannot be created, the old grant is released untouched.
func RunRotate(ctx context.Context, token string, deps RotateDeps) RotateResult {
	oldID, providedSecret, err := deps.DecodeToken(token)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	providedHash := deps.HashSecret(providedSecret)
	old, claimToken, err := deps.Store.Claim(ctx, grant.KindSession, oldID, &providedHash)
	if err != nil {
		return RotateResult{Failure: RotateFailureClaim, Err: err, OldGrantID: oldID}
	}

	newSecret, err := deps.NewSecret()
	if err != nil {
		releaseQuietly(ctx, deps, oldID, claimToken)
		return RotateResult{Failure: RotateFailureNewGrant, Err: err, OldGrantID: oldID}
	}

	newID, newToken, err := encodeFreshToken(deps, newSecret)
	if err != nil {
		releaseQuietly(ctx, deps, oldID, claimToken)
		return RotateResult{Failure: RotateFailureNewGrant, Err: err, OldGrantID: oldID}
	}

	now := time.Now()
	payload := &grant.SessionPayload{
		Role:        "",
		RotatedFrom: oldID,
	}
	if old.Session != nil {
		payload.Role = old.Session.Role
		payload.ExtraClaims = old.Session.ExtraClaims
	}
	next := &grant.Grant{
		ID:         newID,
		Kind:       grant.KindSession,
		Subject:    old.Subject,
		Status:     grant.StatusActive,
		SecretHash: deps.HashSecret(newSecret),
		CreatedAt:  now.Unix(),
		ExpiresAt:  now.Add(deps.SessionTTL).Unix(),
		Session:    payload,
	}

	err = retryOnce(ctx, func() error {
		createErr := deps.Store.Create(ctx, next)
		if errors.Is(createErr, grant.ErrDuplicateID) {
			// negligible-probability collision: mint a fresh id and retry
			freshID, freshToken, freshErr := encodeFreshToken(deps, newSecret)
			if freshErr != nil {
				return createErr
			}
			next.ID = freshID
			next.Session.RotatedFrom = oldID
			newID, newToken = freshID, freshToken
			return deps.Store.Create(ctx, next)
		}
		return createErr
	})
	if err != nil {
		releaseQuietly(ctx, deps, oldID, claimToken)
		return RotateResult{Failure: RotateFailureCreate, Err: err, OldGrantID: oldID}
	}

	err = retryOnce(ctx, func() error {
		return deps.Store.Finalize(ctx, grant.KindSession, oldID, claimToken, grant.StatusRevoked, "rotated")
	})
	if err != nil {
		// The replacement is live; the stale reservation on the old grant
		// unsticks at its deadline. Releasing here would hand the old token
		// back to any replaying holder, so surface the error instead.
		if deps.Warn != nil {
			deps.Warn("rotate: finalize of old grant %s failed: %v", oldID, err)
		}
		return RotateResult{Failure: RotateFailureFinalize, Err: err, OldGrantID: oldID, NewGrantID: newID}
	}

	return RotateResult{
		OldGrantID: oldID,
		NewGrantID: newID,
		Grant:      old,
		NewToken:   newToken,
	}
}

func encodeFreshToken(deps RotateDeps, secret [32]byte) (string, string, error) {
	id, err := deps.NewGrantID()
	if err != nil {
		return "", "", err
	}
	token, err := deps.EncodeToken(id, secret)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

func releaseQuietly(ctx context.Context, deps RotateDeps, id string, token grant.ClaimToken) {
	if err := deps.Store.Release(ctx, grant.KindSession, id, token); err != nil && deps.Warn != nil {
		deps.Warn("rotate: release of grant %s failed: %v", id, err)
	}
}
