package flows

import (
	"context"
	"fmt"
	"sync"

	"github.com/railstack/grantcore/grant"
)

// fakeStore is an in-memory GrantStore with per-operation fault hooks so
// tests can break the flow at exact points in the ordering.
type fakeStore struct {
	mu     sync.Mutex
	grants map[string]*grant.Grant
	tokens map[string]grant.ClaimToken

	createErr   error
	claimErr    error
	finalizeErr error
	releaseErr  error

	createCalls   int
	finalizeCalls int
	releaseCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		grants: make(map[string]*grant.Grant),
		tokens: make(map[string]grant.ClaimToken),
	}
}

func (f *fakeStore) put(g *grant.Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[g.ID] = g
}

func (f *fakeStore) get(id string) *grant.Grant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[id]
}

func (f *fakeStore) Create(ctx context.Context, g *grant.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.grants[g.ID]; ok {
		return grant.ErrDuplicateID
	}
	cp := *g
	f.grants[g.ID] = &cp
	return nil
}

func (f *fakeStore) Claim(ctx context.Context, kind grant.Kind, id string, providedHash *[32]byte) (*grant.Grant, grant.ClaimToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var token grant.ClaimToken
	if f.claimErr != nil {
		return nil, token, f.claimErr
	}
	g, ok := f.grants[id]
	if !ok {
		return nil, token, grant.ErrGrantNotFound
	}
	switch g.Status {
	case grant.StatusConsumed, grant.StatusRevoked:
		return nil, token, &grant.ResolvedError{Status: g.Status}
	case grant.StatusReserved:
		return nil, token, grant.ErrClaimHeld
	}
	if providedHash != nil && *providedHash != g.SecretHash {
		return nil, token, grant.ErrSecretMismatch
	}
	copy(token[:], id)
	g.Status = grant.StatusReserved
	f.tokens[id] = token
	cp := *g
	return &cp, token, nil
}

func (f *fakeStore) Finalize(ctx context.Context, kind grant.Kind, id string, token grant.ClaimToken, status grant.Status, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	g, ok := f.grants[id]
	if !ok {
		return grant.ErrGrantNotFound
	}
	if f.tokens[id] != token {
		return grant.ErrNotClaimOwner
	}
	if g.Status != grant.StatusReserved {
		return fmt.Errorf("%w: grant %s is %s", grant.ErrFinalizeConflict, id, g.Status)
	}
	g.Status = status
	g.Detail = detail
	return nil
}

func (f *fakeStore) Release(ctx context.Context, kind grant.Kind, id string, token grant.ClaimToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	if f.releaseErr != nil {
		return f.releaseErr
	}
	g, ok := f.grants[id]
	if !ok {
		return grant.ErrGrantNotFound
	}
	if f.tokens[id] != token {
		return grant.ErrNotClaimOwner
	}
	if g.Status == grant.StatusReserved {
		g.Status = grant.StatusActive
	}
	return nil
}
