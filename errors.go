package grantcore

import "errors"

var (
	// ErrNotFound is an exported constant or variable used by the grant engine.
	ErrNotFound = errors.New("grant not found")
	// ErrAlreadyResolved is an exported constant or variable used by the grant engine.
	ErrAlreadyResolved = errors.New("grant already responded to")
	// ErrExpired is an exported constant or variable used by the grant engine.
	ErrExpired = errors.New("grant expired")
	// ErrDuplicateID is an exported constant or variable used by the grant engine.
	ErrDuplicateID = errors.New("duplicate grant id")
	// ErrAllocationFailed is an exported constant or variable used by the grant engine.
	ErrAllocationFailed = errors.New("berth allocation failed")
	// ErrPersistence is an exported constant or variable used by the grant engine.
	ErrPersistence = errors.New("grant store unavailable")
	// ErrFatalInconsistency signals a claim/finalize discipline violation.
	// It never surfaces in normal operation and must be logged loudly, not
	// retried.
	ErrFatalInconsistency = errors.New("claim/finalize discipline violation")
	// ErrTokenInvalid is an exported constant or variable used by the grant engine.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrOfferInvalid is an exported constant or variable used by the grant engine.
	ErrOfferInvalid = errors.New("invalid offer request")
	// ErrAllocatorNotConfigured is an exported constant or variable used by the grant engine.
	ErrAllocatorNotConfigured = errors.New("allocator not configured")
	// ErrEngineNotReady is an exported constant or variable used by the grant engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AllocationError reports the reason an accept's external berth allocation
// failed. Matches [ErrAllocationFailed] under errors.Is. Allocation failure
// is terminal for the offer: the subject needs a fresh offer, not a retry.
type AllocationError struct {
	Reason string
}

// Error describes the error operation and its observable behavior.
func (e *AllocationError) Error() string {
	return "berth allocation failed: " + e.Reason
}

// Is reports whether the target is [ErrAllocationFailed].
func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocationFailed
}
