package grant

import "time"

// Kind discriminates the payload shape carried by a [Grant].
type Kind uint8

const (
	// KindSession marks a session-renewal grant (refresh token).
	KindSession Kind = 1
	// KindUpgradeOffer marks a seat-upgrade-offer grant.
	KindUpgradeOffer Kind = 2
)

// String describes the string operation and its observable behavior.
func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindUpgradeOffer:
		return "upgrade_offer"
	default:
		return "unknown"
	}
}

// Status is the stored lifecycle state of a grant. Expiry is a read-time
// classification: an ACTIVE grant past ExpiresAt is treated as expired
// without a write until an actor touches it through Claim.
type Status uint8

const (
	// StatusActive is the initial state of every grant.
	StatusActive Status = 0
	// StatusReserved marks a grant claimed for exclusive resolution but not
	// yet finalized. Never observed by read paths as a successful outcome.
	StatusReserved Status = 1
	// StatusConsumed is the terminal state of a successfully resolved grant.
	StatusConsumed Status = 2
	// StatusRevoked is the terminal state of a denied, rotated, failed, or
	// expired grant.
	StatusRevoked Status = 3
)

// String describes the string operation and its observable behavior.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusReserved:
		return "reserved"
	case StatusConsumed:
		return "consumed"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is an immutable end state.
func (s Status) Terminal() bool {
	return s == StatusConsumed || s == StatusRevoked
}

// SessionPayload is the kind-specific record of a session-renewal grant.
type SessionPayload struct {
	Role        string
	ExtraClaims map[string]string
	RotatedFrom string
}

// OfferPayload is the kind-specific record of a seat-upgrade-offer grant.
type OfferPayload struct {
	CurrentBerth     string
	OfferedCoach     string
	OfferedBerth     string
	OfferedBerthType string
	StationContext   string
}

// Grant defines a public type used by the grant engine.
//
// Grant instances are created by the engine, persisted through [Store], and
// mutated only through the Claim/Finalize/Release discipline. Terminal grants
// are immutable apart from ResolvedAt and Detail, which the terminal write
// itself sets.
type Grant struct {
	ID      string
	Kind    Kind
	Subject string
	Status  Status

	// SecretHash binds a bearer secret to the grant. All zeros when the
	// grant id alone is the handle (upgrade offers).
	SecretHash [32]byte

	CreatedAt  int64
	ExpiresAt  int64
	ResolvedAt int64

	// ClaimDeadline bounds a reservation so a crashed claimant cannot park
	// the grant forever. Zero unless Status is StatusReserved.
	ClaimDeadline int64

	Detail string

	Session *SessionPayload
	Offer   *OfferPayload
}

// Expired reports the read-time expiry classification for the grant.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt <= now.Unix()
}

// ClaimToken proves ownership of a reservation to Finalize and Release.
type ClaimToken [16]byte
