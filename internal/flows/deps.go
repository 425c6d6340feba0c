package flows

import (
	"context"
	"errors"
	"time"

	"github.com/railstack/grantcore/grant"
)

// GrantStore is the store surface the flows need. *grant.Store satisfies it;
// tests substitute fakes to inject faults at exact points in the ordering.
type GrantStore interface {
	Create(ctx context.Context, g *grant.Grant) error
	Claim(ctx context.Context, kind grant.Kind, id string, providedHash *[32]byte) (*grant.Grant, grant.ClaimToken, error)
	Finalize(ctx context.Context, kind grant.Kind, id string, token grant.ClaimToken, status grant.Status, detail string) error
	Release(ctx context.Context, kind grant.Kind, id string, token grant.ClaimToken) error
}

const retryBackoff = 50 * time.Millisecond

// retryOnce retries fn once with a short backoff, but only for store
// transport failures. Safe for create and finalize, which are idempotent
// under the claim discipline; claims are never routed through here.
func retryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, grant.ErrStoreUnavailable) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryBackoff):
	}
	return fn()
}
