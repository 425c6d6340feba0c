package grantcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/railstack/grantcore/grant"
	"github.com/railstack/grantcore/internal/flows"
)

const (
	detailDenied   = "denied"
	detailAccepted = "accepted"
)

// CreateOffer records a seat-upgrade offer the external allocation decision
// has already made for the PNR and returns the offer's grant id. The TTL is
// short (minutes) by default, reflecting a live, boardable journey.
func (e *Engine) CreateOffer(ctx context.Context, req OfferRequest) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}
	if req.PNR == "" || req.OfferedCoach == "" || req.OfferedBerth == "" {
		return "", ErrOfferInvalid
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.config.Offer.DefaultTTL
	}
	if ttl > e.config.Offer.MaxTTL {
		ttl = e.config.Offer.MaxTTL
	}

	now := time.Now()
	g := &grant.Grant{
		ID:        uuid.NewString(),
		Kind:      grant.KindUpgradeOffer,
		Subject:   req.PNR,
		Status:    grant.StatusActive,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Offer: &grant.OfferPayload{
			CurrentBerth:     req.CurrentBerth,
			OfferedCoach:     req.OfferedCoach,
			OfferedBerth:     req.OfferedBerth,
			OfferedBerthType: req.OfferedBerthType,
			StationContext:   req.StationContext,
		},
	}

	if err := e.createWithRetry(ctx, g); err != nil {
		if errors.Is(err, grant.ErrDuplicateID) {
			// uuid collision is not a thing worth retry loops
			return "", ErrDuplicateID
		}
		return "", e.mapClaimError(err)
	}

	e.metricInc(MetricOfferCreated)
	e.emitCreated(ctx, g, map[string]string{
		"offered_coach": req.OfferedCoach,
		"offered_berth": req.OfferedBerth,
	})
	return g.ID, nil
}

// ListOffers returns the PNR's pending (ACTIVE, unexpired) upgrade offers.
// Used by both passenger self-service and TTE manual lookup.
func (e *Engine) ListOffers(ctx context.Context, pnr string) ([]Offer, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	grants, err := e.store.FindActiveBySubject(ctx, grant.KindUpgradeOffer, pnr)
	if err != nil {
		return nil, e.mapClaimError(err)
	}

	offers := make([]Offer, 0, len(grants))
	for _, g := range grants {
		offers = append(offers, offerFromGrant(g))
	}
	return offers, nil
}

// OfferHistory returns every offer still retained for the PNR, resolved
// ones included, for audit views. Expired-but-unclaimed offers are
// classified expired at read time without a write.
func (e *Engine) OfferHistory(ctx context.Context, pnr string) ([]Offer, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	grants, err := e.store.FindBySubject(ctx, grant.KindUpgradeOffer, pnr)
	if err != nil {
		return nil, e.mapClaimError(err)
	}

	offers := make([]Offer, 0, len(grants))
	for _, g := range grants {
		offers = append(offers, offerFromGrant(g))
	}
	return offers, nil
}

// Deny resolves an upgrade offer with terminal status REVOKED("denied").
// No external side effect runs; this is a pure claim+finalize.
func (e *Engine) Deny(ctx context.Context, pnr, grantID string) (*Resolution, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	g, claimToken, err := e.store.Claim(ctx, grant.KindUpgradeOffer, grantID, nil)
	if err != nil {
		if errors.Is(err, grant.ErrGrantExpired) {
			e.metricInc(MetricOfferExpired)
		}
		return nil, e.mapClaimError(err)
	}

	if g.Subject != pnr {
		// do not leak another passenger's offer
		if relErr := e.store.Release(ctx, grant.KindUpgradeOffer, grantID, claimToken); relErr != nil {
			e.warnf("deny: release of offer %s failed: %v", grantID, relErr)
		}
		return nil, ErrNotFound
	}

	if err := e.finalizeWithRetry(ctx, grant.KindUpgradeOffer, grantID, claimToken, grant.StatusRevoked, detailDenied); err != nil {
		if relErr := e.store.Release(ctx, grant.KindUpgradeOffer, grantID, claimToken); relErr != nil {
			e.warnf("deny: release of offer %s failed: %v", grantID, relErr)
		}
		return nil, e.mapClaimError(err)
	}

	e.metricInc(MetricOfferDenied)
	e.emitResolved(ctx, grant.KindUpgradeOffer, pnr, grantID, grant.StatusRevoked, detailDenied)
	return &Resolution{
		GrantID:    grantID,
		Status:     grant.StatusRevoked.String(),
		Detail:     detailDenied,
		ResolvedAt: time.Now(),
	}, nil
}

// Accept resolves an upgrade offer together with the external berth
// allocation, all-or-nothing: the offer ends CONSUMED with exactly one
// applied reallocation, or REVOKED with an allocation-failure detail. A
// failed allocation never returns the offer to ACTIVE — the passenger
// needs a fresh offer, not a silent retry of a berth that may have changed
// state.
func (e *Engine) Accept(ctx context.Context, pnr, grantID string) (*BerthAssignment, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.allocator == nil {
		return nil, ErrAllocatorNotConfigured
	}

	result := flows.RunAccept(ctx, pnr, grantID, flows.AcceptDeps{
		ApplyBerth: func(ctx context.Context, pnr, coach, berth string) (bool, string) {
			res := e.allocator.ApplyBerth(ctx, pnr, coach, berth)
			return res.Success, res.Reason
		},
		AllocationTimeout: e.config.Offer.AllocationTimeout,
		Warn:              e.config.Warn,
		Store:             e.store,
	})

	switch result.Failure {
	case flows.AcceptFailureNone:
	case flows.AcceptFailureSubject:
		return nil, ErrNotFound
	case flows.AcceptFailureClaim:
		if errors.Is(result.Err, grant.ErrGrantExpired) {
			e.metricInc(MetricOfferExpired)
		}
		return nil, e.mapClaimError(result.Err)
	case flows.AcceptFailureAllocation:
		e.metricInc(MetricAllocationFailed)
		e.emitResolved(ctx, grant.KindUpgradeOffer, pnr, grantID, grant.StatusRevoked,
			"allocation-failed:"+result.Reason)
		return nil, &AllocationError{Reason: result.Reason}
	case flows.AcceptFailureFinalize:
		return nil, e.mapClaimError(result.Err)
	default:
		return nil, e.mapClaimError(result.Err)
	}

	e.metricInc(MetricOfferAccepted)
	e.emitResolved(ctx, grant.KindUpgradeOffer, pnr, grantID, grant.StatusConsumed, detailAccepted)
	return &BerthAssignment{
		PNR:       result.Assignment.PNR,
		Coach:     result.Assignment.Coach,
		Berth:     result.Assignment.Berth,
		BerthType: result.Assignment.BerthType,
	}, nil
}

func offerFromGrant(g *grant.Grant) Offer {
	offer := Offer{
		GrantID:   g.ID,
		PNR:       g.Subject,
		Status:    g.Status.String(),
		Detail:    g.Detail,
		CreatedAt: time.Unix(g.CreatedAt, 0),
		ExpiresAt: time.Unix(g.ExpiresAt, 0),
	}
	if g.Status == grant.StatusActive && g.Expired(time.Now()) {
		// read-time classification, no write required
		offer.Status = "expired"
	}
	if g.ResolvedAt != 0 {
		offer.ResolvedAt = time.Unix(g.ResolvedAt, 0)
	}
	if g.Offer != nil {
		offer.CurrentBerth = g.Offer.CurrentBerth
		offer.OfferedCoach = g.Offer.OfferedCoach
		offer.OfferedBerth = g.Offer.OfferedBerth
		offer.OfferedBerthType = g.Offer.OfferedBerthType
		offer.StationContext = g.Offer.StationContext
	}
	return offer
}
