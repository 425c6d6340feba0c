package grant

import (
	"testing"
	"time"
)

// FuzzDecode exercises the record decoder with arbitrary blobs.
// Goal: no panics; malformed records must be rejected with errors.
func FuzzDecode(f *testing.F) {
	now := time.Now().Unix()

	session := &Grant{
		Kind:      KindSession,
		Subject:   "U1",
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now + 3600,
		Session: &SessionPayload{
			Role:        "passenger",
			ExtraClaims: map[string]string{"zone": "north"},
		},
	}
	offer := &Grant{
		Kind:      KindUpgradeOffer,
		Subject:   "PNR1",
		Status:    StatusConsumed,
		Detail:    "accepted",
		CreatedAt: now,
		ExpiresAt: now + 300,
		Offer: &OfferPayload{
			CurrentBerth: "RAC-1",
			OfferedCoach: "S1",
			OfferedBerth: "9",
		},
	}

	for _, g := range []*Grant{session, offer} {
		data, err := Encode(g)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(data)
	}
	f.Add([]byte{})
	f.Add([]byte{grantFormatVersionV1})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic. Errors are expected for malformed input.
		g, err := Decode(data)
		if err != nil {
			return
		}
		if g == nil {
			t.Fatal("Decode returned nil grant without error")
		}
		if g.Kind != KindSession && g.Kind != KindUpgradeOffer {
			t.Fatalf("Decode accepted unknown kind %d", g.Kind)
		}
	})
}
