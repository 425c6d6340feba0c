package grantcore

import (
	"context"
	"time"
)

// Claims is the payload a validated session grant yields. Validation is a
// read-only, repeatable operation; the grant is not consumed.
type Claims struct {
	UserID      string
	Role        string
	ExtraClaims map[string]string

	GrantID     string
	RotatedFrom string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenPair is the result of issuing or rotating a session grant. The
// refresh token is the opaque single-consumption handle; the access token
// is a short-lived signed JWT, empty unless JWT issuance is enabled.
type TokenPair struct {
	GrantID      string
	RefreshToken string
	AccessToken  string
	ExpiresAt    time.Time
}

// OfferRequest describes a seat-upgrade offer an external allocation
// decision has already made. grantcore manages only its lifecycle.
type OfferRequest struct {
	PNR              string
	CurrentBerth     string
	OfferedCoach     string
	OfferedBerth     string
	OfferedBerthType string
	StationContext   string

	// TTL of the offer; zero applies Config.Offer.DefaultTTL.
	TTL time.Duration
}

// Offer is the externally visible view of an upgrade-offer grant.
type Offer struct {
	GrantID          string
	PNR              string
	CurrentBerth     string
	OfferedCoach     string
	OfferedBerth     string
	OfferedBerthType string
	StationContext   string

	Status     string
	Detail     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt time.Time
}

// BerthAssignment is the confirmed berth returned by a successful Accept.
type BerthAssignment struct {
	PNR       string
	Coach     string
	Berth     string
	BerthType string
}

// Resolution reports the terminal outcome of a deny or revoke.
type Resolution struct {
	GrantID    string
	Status     string
	Detail     string
	ResolvedAt time.Time
}

// AllocationResult is the outcome reported by the external allocation
// collaborator.
type AllocationResult struct {
	Success bool
	Reason  string
}

// Allocator applies an already-decided coach/berth to a passenger record.
// It is the external seat-allocation side effect consumed by Accept.
//
// Contract: ApplyBerth must be safe to retry (idempotent on the same
// pnr+coach+berth triple), because a released claim may lead to a retried
// call. It must honor ctx cancellation; Accept runs it under
// Config.Offer.AllocationTimeout.
type Allocator interface {
	ApplyBerth(ctx context.Context, pnr, coach, berth string) AllocationResult
}

// AllocatorFunc adapts a function to the [Allocator] interface.
type AllocatorFunc func(ctx context.Context, pnr, coach, berth string) AllocationResult

// ApplyBerth describes the applyberth operation and its observable behavior.
func (f AllocatorFunc) ApplyBerth(ctx context.Context, pnr, coach, berth string) AllocationResult {
	return f(ctx, pnr, coach, berth)
}
