//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	grantcore "github.com/railstack/grantcore"
	"github.com/railstack/grantcore/grant"
)

func newIntegrationStore(t *testing.T) (*grant.Store, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := grant.NewStore(rdb, "gr", time.Hour, 30*time.Second)

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func newIntegrationEngine(t *testing.T, allocator grantcore.Allocator) (*grantcore.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := grantcore.DefaultConfig()
	cfg.Offer.AllocationTimeout = time.Second

	builder := grantcore.New().WithConfig(cfg).WithRedis(rdb)
	if allocator != nil {
		builder = builder.WithAllocator(allocator)
	}
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func makeOffer(pnr string) grantcore.OfferRequest {
	return grantcore.OfferRequest{
		PNR:              pnr,
		CurrentBerth:     "RAC-7",
		OfferedCoach:     "B1",
		OfferedBerth:     "12",
		OfferedBerthType: "SL",
		StationContext:   "CNB",
	}
}
