package internaldefs

import (
	grantcore "github.com/railstack/grantcore"
)

// CounterDef defines a public type used by grantcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   grantcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by grantcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   grantcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the grant engine.
var CounterDefs = []CounterDef{
	{ID: grantcore.MetricSessionIssued, Name: "grantcore_session_issued_total", Help: "Issued session grants."},
	{ID: grantcore.MetricSessionValidateSuccess, Name: "grantcore_session_validate_success_total", Help: "Successful session validations."},
	{ID: grantcore.MetricSessionValidateFailure, Name: "grantcore_session_validate_failure_total", Help: "Failed session validations."},
	{ID: grantcore.MetricSessionRevoked, Name: "grantcore_session_revoked_total", Help: "Single-session revocations."},
	{ID: grantcore.MetricSessionRevokedAll, Name: "grantcore_session_revoked_all_total", Help: "Revoke-all operations."},
	{ID: grantcore.MetricRotateSuccess, Name: "grantcore_rotate_success_total", Help: "Successful session rotations."},
	{ID: grantcore.MetricRotateFailure, Name: "grantcore_rotate_failure_total", Help: "Failed session rotations."},
	{ID: grantcore.MetricOfferCreated, Name: "grantcore_offer_created_total", Help: "Created upgrade offers."},
	{ID: grantcore.MetricOfferAccepted, Name: "grantcore_offer_accepted_total", Help: "Accepted upgrade offers."},
	{ID: grantcore.MetricOfferDenied, Name: "grantcore_offer_denied_total", Help: "Denied upgrade offers."},
	{ID: grantcore.MetricOfferExpired, Name: "grantcore_offer_expired_total", Help: "Upgrade offers found expired at claim time."},
	{ID: grantcore.MetricAllocationFailed, Name: "grantcore_allocation_failed_total", Help: "Berth allocations rejected or timed out."},
	{ID: grantcore.MetricClaimConflict, Name: "grantcore_claim_conflict_total", Help: "Claims lost to a concurrent resolution."},
	{ID: grantcore.MetricStoreUnavailable, Name: "grantcore_store_unavailable_total", Help: "Store round-trips failed at transport level."},
}

// HistogramDefs is an exported constant or variable used by the grant engine.
var HistogramDefs = []HistogramDef{
	{ID: grantcore.MetricValidateLatency, Name: "grantcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the grant engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the grant engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// 8-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms expose.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
