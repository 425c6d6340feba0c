package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func newEdManager(t *testing.T) (*Manager, ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "grantcore-test",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}
	return mgr, priv
}

func TestCreateParseRoundtripEd25519(t *testing.T) {
	mgr, _ := newEdManager(t)

	token, err := mgr.CreateAccess("U1", "passenger", "grant-1", map[string]string{"zone": "north"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UID != "U1" || claims.Role != "passenger" || claims.GID != "grant-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Extra["zone"] != "north" {
		t.Fatalf("extra claims lost: %+v", claims.Extra)
	}
	if claims.Issuer != "grantcore-test" {
		t.Fatalf("issuer mismatch: %q", claims.Issuer)
	}
}

func TestCreateParseRoundtripHS256(t *testing.T) {
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	token, err := mgr.CreateAccess("U2", "tte", "grant-2", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UID != "U2" || claims.GID != "grant-2" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	mgr, _ := newEdManager(t)
	other, _ := newEdManager(t)

	token, err := other.CreateAccess("U1", "passenger", "grant-1", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := mgr.ParseAccess(token); err == nil {
		t.Fatal("token signed with foreign key accepted")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	short, err := NewManager(Config{
		AccessTTL:     time.Nanosecond,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	token, err := short.CreateAccess("U1", "passenger", "grant-1", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := short.ParseAccess(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	mgr, _ := newEdManager(t)
	for _, token := range []string{"", "x", "a.b.c", "eyJhbGciOiJub25lIn0.eyJ1aWQiOiJVMSJ9."} {
		if _, err := mgr.ParseAccess(token); err == nil {
			t.Fatalf("garbage token accepted: %q", token)
		}
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 without public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: priv}},
		{"excessive leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: time.Hour}},
	}
	for _, tc := range cases {
		if _, err := NewManager(tc.cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
