package test

import (
	"context"
	"testing"

	grantcore "github.com/railstack/grantcore"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = grantcore.New

	var _ *grantcore.Engine
	var _ grantcore.Config
	var _ grantcore.TokenPair
	var _ grantcore.Claims
	var _ grantcore.OfferRequest
	var _ grantcore.Offer
	var _ grantcore.BerthAssignment
	var _ grantcore.Resolution
	var _ grantcore.Allocator
	var _ grantcore.NotifySink

	var _ error = grantcore.ErrNotFound
	var _ error = grantcore.ErrAlreadyResolved
	var _ error = grantcore.ErrExpired
	var _ error = grantcore.ErrDuplicateID
	var _ error = grantcore.ErrAllocationFailed
	var _ error = grantcore.ErrPersistence
	var _ error = grantcore.ErrFatalInconsistency
	var _ error = grantcore.ErrTokenInvalid

	var _ func(*grantcore.Engine, context.Context, string, string, map[string]string) (grantcore.TokenPair, error) = (*grantcore.Engine).Issue
	var _ func(*grantcore.Engine, context.Context, string) (*grantcore.Claims, error) = (*grantcore.Engine).Validate
	var _ func(*grantcore.Engine, context.Context, string) (bool, error) = (*grantcore.Engine).Revoke
	var _ func(*grantcore.Engine, context.Context, string) (int, error) = (*grantcore.Engine).RevokeAll
	var _ func(*grantcore.Engine, context.Context, string) (grantcore.TokenPair, error) = (*grantcore.Engine).Rotate
	var _ func(*grantcore.Engine, context.Context, grantcore.OfferRequest) (string, error) = (*grantcore.Engine).CreateOffer
	var _ func(*grantcore.Engine, context.Context, string) ([]grantcore.Offer, error) = (*grantcore.Engine).ListOffers
	var _ func(*grantcore.Engine, context.Context, string, string) (*grantcore.BerthAssignment, error) = (*grantcore.Engine).Accept
	var _ func(*grantcore.Engine, context.Context, string, string) (*grantcore.Resolution, error) = (*grantcore.Engine).Deny
}
