package grantcore

import (
	"errors"
	"time"
)

// Config defines a public type used by grantcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Grant   GrantConfig
	Session SessionConfig
	Offer   OfferConfig
	JWT     JWTConfig
	Notify  NotifyConfig
	Metrics MetricsConfig

	// Warn receives non-fatal operational complaints (failed releases,
	// finalize retries). nil disables warning output.
	Warn func(format string, args ...any)
}

/*
====================================
GRANT STORE CONFIG
====================================
*/

// GrantConfig defines a public type used by grantcore APIs.
//
// GrantConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GrantConfig struct {
	RedisPrefix string

	// RetentionTTL keeps terminal grants readable for audit after their
	// expiry; Redis TTL garbage-collects them afterwards. The application
	// never deletes grants itself.
	RetentionTTL time.Duration

	// ClaimReservationTTL bounds how long a claim may stay unfinalized
	// before another claimant is allowed to take the reservation over.
	ClaimReservationTTL time.Duration
}

/*
====================================
SESSION GRANT CONFIG
====================================
*/

// SessionConfig defines a public type used by grantcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	TTL time.Duration
}

/*
====================================
UPGRADE OFFER CONFIG
====================================
*/

// OfferConfig defines a public type used by grantcore APIs.
//
// OfferConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OfferConfig struct {
	// DefaultTTL applies when CreateOffer is called with zero TTL. Offers
	// run on journey time: minutes, not days.
	DefaultTTL time.Duration
	MaxTTL     time.Duration

	// AllocationTimeout caps the external berth-allocation call inside
	// Accept. On timeout the offer is finalized REVOKED, never left
	// claimed.
	AllocationTimeout time.Duration
}

/*
====================================
ACCESS TOKEN CONFIG
====================================
*/

// JWTConfig defines a public type used by grantcore APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig defines a public type used by grantcore APIs.
//
// NotifyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by grantcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Grant: GrantConfig{
			RedisPrefix:         "gr",
			RetentionTTL:        7 * 24 * time.Hour,
			ClaimReservationTTL: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Offer: OfferConfig{
			DefaultTTL:        5 * time.Minute,
			MaxTTL:            time.Hour,
			AllocationTimeout: 10 * time.Second,
		},
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the recommended production configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Grant.RetentionTTL <= 0 {
		return errors.New("grant retention TTL must be positive")
	}
	if cfg.Grant.ClaimReservationTTL <= 0 {
		return errors.New("claim reservation TTL must be positive")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if cfg.Offer.DefaultTTL <= 0 {
		return errors.New("offer default TTL must be positive")
	}
	if cfg.Offer.MaxTTL < cfg.Offer.DefaultTTL {
		return errors.New("offer max TTL below default TTL")
	}
	if cfg.Offer.AllocationTimeout <= 0 {
		return errors.New("allocation timeout must be positive")
	}
	if cfg.Notify.Enabled && cfg.Notify.BufferSize <= 0 {
		return errors.New("notify buffer size must be positive")
	}
	if cfg.JWT.Enabled {
		if cfg.JWT.AccessTTL <= 0 {
			return errors.New("jwt access TTL must be positive")
		}
		switch cfg.JWT.SigningMethod {
		case "ed25519", "hs256":
		default:
			return errors.New("unsupported jwt signing method")
		}
	}
	return nil
}
