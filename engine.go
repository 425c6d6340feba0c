package grantcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railstack/grantcore/grant"
	"github.com/railstack/grantcore/jwt"
)

// Engine defines a public type used by grantcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// All methods are safe for concurrent use; mutual exclusion between
// concurrent resolutions of one grant is enforced by the store, never by
// in-process locking.
type Engine struct {
	config     Config
	store      *grant.Store
	jwtManager *jwt.Manager
	allocator  Allocator
	notify     *notifyDispatcher
	metrics    *Metrics
}

// Close drains the notification dispatcher. Grant state is unaffected.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notify != nil {
		e.notify.Close()
	}
}

// NotifyDropped reports how many lifecycle events were discarded because
// the notify buffer was full.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping returns a point-in-time grant store availability check and latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.store.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warnf(format string, args ...any) {
	if e == nil || e.config.Warn == nil {
		return
	}
	e.config.Warn(format, args...)
}

func (e *Engine) emitCreated(ctx context.Context, g *grant.Grant, metadata map[string]string) {
	if e.notify == nil {
		return
	}
	e.notify.Emit(ctx, Event{
		Timestamp: time.Now(),
		Type:      EventGrantCreated,
		Kind:      g.Kind.String(),
		Subject:   g.Subject,
		GrantID:   g.ID,
		Metadata:  metadata,
	})
}

func (e *Engine) emitResolved(ctx context.Context, kind grant.Kind, subject, grantID string, status grant.Status, detail string) {
	if e.notify == nil {
		return
	}
	e.notify.Emit(ctx, Event{
		Timestamp:      time.Now(),
		Type:           EventGrantResolved,
		Kind:           kind.String(),
		Subject:        subject,
		GrantID:        grantID,
		TerminalStatus: status.String(),
		Detail:         detail,
	})
}

// mapClaimError flattens store errors into the engine's stable, small error
// vocabulary so callers can render deterministic messages without seeing
// raw store internals.
func (e *Engine) mapClaimError(err error) error {
	switch {
	case errors.Is(err, grant.ErrGrantNotFound):
		return ErrNotFound
	case errors.Is(err, grant.ErrGrantExpired):
		return ErrExpired
	case errors.Is(err, grant.ErrAlreadyResolved):
		e.metricInc(MetricClaimConflict)
		var resolved *grant.ResolvedError
		if errors.As(err, &resolved) {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, resolved.Status)
		}
		return ErrAlreadyResolved
	case errors.Is(err, grant.ErrClaimHeld):
		// another caller holds a live reservation; from the outside that is
		// indistinguishable from losing the race
		e.metricInc(MetricClaimConflict)
		return ErrAlreadyResolved
	case errors.Is(err, grant.ErrSecretMismatch):
		return ErrTokenInvalid
	case errors.Is(err, grant.ErrDuplicateID):
		return ErrDuplicateID
	case errors.Is(err, grant.ErrFinalizeConflict), errors.Is(err, grant.ErrNotClaimOwner):
		e.warnf("grant store reported a discipline violation: %v", err)
		return fmt.Errorf("%w: %v", ErrFatalInconsistency, err)
	case errors.Is(err, grant.ErrStoreUnavailable):
		e.metricInc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	default:
		return err
	}
}
