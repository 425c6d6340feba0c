// Package grantcore manages the lifecycle of time-bounded, single-consumption
// grants: session-renewal grants (rotating refresh tokens) and seat-upgrade
// offer grants (RAC to confirmed-berth offers). Its one hard guarantee is
// that when multiple independent callers act on the same grant at nearly the
// same instant, exactly one succeeds, the losers receive an unambiguous
// error, and the winning consumption is durably linked to exactly one side
// effect.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines and multiple processes sharing
// one Redis, after initialization through [Builder.Build]. There is no
// in-process locking; mutual exclusion is delegated entirely to the grant
// store's atomic claim primitive.
//
// # Architecture boundaries
//
// grantcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, Offer, BerthAssignment, MetricsSnapshot).
// Flow orchestration and token encoding live under internal/; storage and
// the record format live in the grant sub-package.
//
// # What this package must NOT do
//
//   - Decide which berth to offer or verify credentials — both are external
//     collaborators ([Allocator], callers of Issue).
//   - Expose Redis clients, claim tokens, or record encoding in its public
//     API.
//   - Make event delivery a precondition of grant correctness: notification
//     emission is fire-and-forget after the terminal write commits.
package grantcore
