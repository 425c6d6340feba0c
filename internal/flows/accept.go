package flows

import (
	"context"
	"time"

	"github.com/railstack/grantcore/grant"
)

// AcceptFailureKind classifies offer-acceptance failures for root-level
// mapping.
type AcceptFailureKind int

const (
	AcceptFailureNone AcceptFailureKind = iota
	AcceptFailureClaim
	AcceptFailureSubject
	AcceptFailureAllocation
	AcceptFailureFinalize
)

// BerthAssignment is the confirmed berth returned by a successful accept.
type BerthAssignment struct {
	PNR       string
	Coach     string
	Berth     string
	BerthType string
}

// AcceptResult carries either the berth assignment or failure metadata.
type AcceptResult struct {
	Failure AcceptFailureKind
	Err     error
	Reason  string

	Grant      *grant.Grant
	Assignment BerthAssignment
}

// AcceptDeps captures offer-acceptance flow dependencies. ApplyBerth is the
// external allocation side effect; its contract requires idempotence on the
// same pnr+coach+berth triple, because a released claim may lead to a
// retried call.
type AcceptDeps struct {
	ApplyBerth        func(ctx context.Context, pnr, coach, berth string) (bool, string)
	AllocationTimeout time.Duration
	Warn              func(string, ...any)
	Store             GrantStore
}

// RunAccept resolves an upgrade-offer grant together with the external seat
// allocation. This is the only flow that runs an external call between
// claim and finalize: the reservation window keeps at-most-once semantics
// while the side effect is in flight, and the deferred release guarantees
// no grant is left permanently claimed if the flow aborts before a
// terminal write commits.
func RunAccept(ctx context.Context, pnr, grantID string, deps AcceptDeps) AcceptResult {
	claimed, claimToken, err := deps.Store.Claim(ctx, grant.KindUpgradeOffer, grantID, nil)
	if err != nil {
		return AcceptResult{Failure: AcceptFailureClaim, Err: err}
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		if relErr := deps.Store.Release(ctx, grant.KindUpgradeOffer, grantID, claimToken); relErr != nil && deps.Warn != nil {
			deps.Warn("accept: release of offer %s failed: %v", grantID, relErr)
		}
	}()

	if claimed.Subject != pnr {
		// do not leak another passenger's offer
		return AcceptResult{Failure: AcceptFailureSubject, Err: grant.ErrGrantNotFound}
	}

	offer := claimed.Offer
	if offer == nil {
		return AcceptResult{Failure: AcceptFailureClaim, Err: grant.ErrGrantCorrupt}
	}

	allocCtx := ctx
	if deps.AllocationTimeout > 0 {
		var cancel context.CancelFunc
		allocCtx, cancel = context.WithTimeout(ctx, deps.AllocationTimeout)
		defer cancel()
	}

	ok, reason := deps.ApplyBerth(allocCtx, pnr, offer.OfferedCoach, offer.OfferedBerth)
	if !ok {
		if reason == "" {
			if allocCtx.Err() != nil {
				reason = "timeout"
			} else {
				reason = "rejected"
			}
		}
		// The offer is not released back: from the passenger's point of view
		// the decision to consume it already happened, and the berth may
		// have changed state underneath. Terminal failure, fresh offer
		// required.
		err = retryOnce(ctx, func() error {
			return deps.Store.Finalize(ctx, grant.KindUpgradeOffer, grantID, claimToken,
				grant.StatusRevoked, "allocation-failed:"+reason)
		})
		if err != nil {
			return AcceptResult{Failure: AcceptFailureFinalize, Err: err, Reason: reason}
		}
		settled = true
		return AcceptResult{Failure: AcceptFailureAllocation, Reason: reason, Grant: claimed}
	}

	err = retryOnce(ctx, func() error {
		return deps.Store.Finalize(ctx, grant.KindUpgradeOffer, grantID, claimToken,
			grant.StatusConsumed, "accepted")
	})
	if err != nil {
		// Allocation applied but the terminal write failed: release so a
		// retry can re-run the idempotent side effect and commit.
		return AcceptResult{Failure: AcceptFailureFinalize, Err: err}
	}

	settled = true
	return AcceptResult{
		Grant: claimed,
		Assignment: BerthAssignment{
			PNR:       pnr,
			Coach:     offer.OfferedCoach,
			Berth:     offer.OfferedBerth,
			BerthType: offer.OfferedBerthType,
		},
	}
}
