package test

import (
	"context"

	"github.com/redis/go-redis/v9"

	grantcore "github.com/railstack/grantcore"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	allocator := grantcore.AllocatorFunc(func(ctx context.Context, pnr, coach, berth string) grantcore.AllocationResult {
		return grantcore.AllocationResult{Success: true}
	})

	engine, _ := grantcore.New().
		WithRedis(rdb).
		WithAllocator(allocator).
		Build()
	_ = engine
}

// ExampleEngine_Issue shows a typical session issuance call and structured error handling.
func ExampleEngine_Issue() {
	var engine *grantcore.Engine
	_, err := engine.Issue(context.Background(), "user-1", "passenger", nil)
	if err != nil {
		_ = err
	}
}

// ExampleEngine_Accept shows resolving an upgrade offer against the external allocator.
func ExampleEngine_Accept() {
	var engine *grantcore.Engine
	assignment, err := engine.Accept(context.Background(), "PNR1", "offer-grant-id")
	if err != nil {
		_ = err
	}
	_ = assignment
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *grantcore.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
