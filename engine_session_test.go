package grantcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestIssueValidateRoundtrip(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", map[string]string{"zone": "north"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if pair.GrantID == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
	if pair.AccessToken != "" {
		t.Fatal("access token issued with JWT disabled")
	}

	claims, err := engine.Validate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "U1" || claims.Role != "passenger" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExtraClaims["zone"] != "north" {
		t.Fatalf("extra claims lost: %+v", claims.ExtraClaims)
	}
	if claims.GrantID != pair.GrantID {
		t.Fatalf("grant id mismatch: %q vs %q", claims.GrantID, pair.GrantID)
	}

	// validation is read-only and repeatable
	if _, err := engine.Validate(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second validate failed: %v", err)
	}
}

func TestValidateRejectsForgedTokens(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for _, token := range []string{
		"",
		"garbage",
		pair.RefreshToken[:len(pair.RefreshToken)-4] + "AAAA", // tampered secret
	} {
		if _, err := engine.Validate(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestRevokeConsumesGrant(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	revoked, err := engine.Revoke(ctx, pair.RefreshToken)
	if err != nil || !revoked {
		t.Fatalf("revoke failed: %v %v", revoked, err)
	}

	if _, err := engine.Validate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("revoked token still validates: %v", err)
	}

	// revoking again is a quiet no-op
	revoked, err = engine.Revoke(ctx, pair.RefreshToken)
	if err != nil || revoked {
		t.Fatalf("second revoke: %v %v", revoked, err)
	}
}

func TestRevokeAllLogsOutEverywhere(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		pair, err := engine.Issue(ctx, "U1", "passenger", nil)
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		tokens = append(tokens, pair.RefreshToken)
	}
	other, err := engine.Issue(ctx, "U2", "passenger", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	count, err := engine.RevokeAll(ctx, "U1")
	if err != nil || count != 3 {
		t.Fatalf("revoke all: count=%d err=%v", count, err)
	}

	for _, token := range tokens {
		if _, err := engine.Validate(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token survived revoke all: %v", err)
		}
	}

	// other users are untouched
	if _, err := engine.Validate(ctx, other.RefreshToken); err != nil {
		t.Fatalf("unrelated session harmed: %v", err)
	}

	count, err = engine.RevokeAll(ctx, "U1")
	if err != nil || count != 0 {
		t.Fatalf("second revoke all: count=%d err=%v", count, err)
	}
}

func TestRotateChain(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", map[string]string{"tier": "gold"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	next, err := engine.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if next.GrantID == pair.GrantID {
		t.Fatal("rotation reused the old grant id")
	}

	// the old token is dead, the new one carries the chain
	if _, err := engine.Validate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("rotated-out token still validates: %v", err)
	}
	claims, err := engine.Validate(ctx, next.RefreshToken)
	if err != nil {
		t.Fatalf("validate of replacement failed: %v", err)
	}
	if claims.UserID != "U1" || claims.Role != "passenger" || claims.ExtraClaims["tier"] != "gold" {
		t.Fatalf("replacement lost claims: %+v", claims)
	}
	if claims.RotatedFrom != pair.GrantID {
		t.Fatalf("rotation chain link missing: %q", claims.RotatedFrom)
	}
}

func TestRotateReplayIsRejected(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := engine.Rotate(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	// replaying the consumed token reports the resolution, not a silent retry
	_, err = engine.Rotate(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on replay, got %v", err)
	}
}

func TestRotateConcurrencySingleWinner(t *testing.T) {
	engine, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "passenger", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Rotate(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrAlreadyResolved) {
			fail++
			continue
		}
		t.Fatalf("unexpected rotate error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotate success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d rotate failures, got %d", n-1, fail)
	}
}

func TestIssueWithJWTEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Enabled = true
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "grantcore-test"

	engine, done := newTestEngine(t, func(b *Builder) { b.WithConfig(cfg) })
	defer done()
	ctx := context.Background()

	pair, err := engine.Issue(ctx, "U1", "tte", nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected a signed access token")
	}

	next, err := engine.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if next.AccessToken == "" {
		t.Fatal("rotation did not mint a fresh access token")
	}
}
