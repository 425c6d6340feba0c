package grant

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sort"
)

// Record layout, format version 1. The fixed-width header keeps every field
// the claim/finalize Lua scripts read or patch at a constant offset; only
// the detail string after the subject is spliced at a computed offset.
//
//	offset 0      version
//	offset 1      kind
//	offset 2      status
//	offset 3-10   expiresAt (int64, big endian, unix seconds)
//	offset 11-18  resolvedAt
//	offset 19-26  claimDeadline
//	offset 27-42  claimToken (16 bytes, zero when unclaimed)
//	offset 43-74  secretHash (32 bytes, zero for offer grants)
//	offset 75-82  createdAt
//	offset 83     subject length, then subject
//	then          detail length (1 byte), then detail
//	then          payload length (uint16, big endian), then payload
const (
	grantFormatVersionV1 = 1

	fixedHeaderSize = 83
)

// ErrGrantCorrupt is returned when a stored grant blob cannot be decoded.
var ErrGrantCorrupt = errors.New("grant record corrupt")

// Encode serializes a [Grant] into the versioned binary record format.
func Encode(g *Grant) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(grantFormatVersionV1)
	buf.WriteByte(byte(g.Kind))
	buf.WriteByte(byte(g.Status))

	for _, v := range []int64{g.ExpiresAt, g.ResolvedAt, g.ClaimDeadline} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	var token ClaimToken
	buf.Write(token[:])
	buf.Write(g.SecretHash[:])

	if err := binary.Write(&buf, binary.BigEndian, g.CreatedAt); err != nil {
		return nil, err
	}

	if len(g.Subject) > 255 {
		return nil, errors.New("subject too long")
	}
	buf.WriteByte(byte(len(g.Subject)))
	buf.WriteString(g.Subject)

	if len(g.Detail) > 255 {
		return nil, errors.New("detail too long")
	}
	buf.WriteByte(byte(len(g.Detail)))
	buf.WriteString(g.Detail)

	payload, err := encodePayload(g)
	if err != nil {
		return nil, err
	}
	if len(payload) > 65535 {
		return nil, errors.New("payload too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(payload))); err != nil {
		return nil, err
	}
	buf.Write(payload)

	return buf.Bytes(), nil
}

// Decode parses a stored grant record. The claim token is decoded but not
// exposed on [Grant]; ownership proof flows through [ClaimToken] values the
// store hands out.
func Decode(data []byte) (*Grant, error) {
	if len(data) < fixedHeaderSize+1 {
		return nil, ErrGrantCorrupt
	}
	if data[0] != grantFormatVersionV1 {
		return nil, ErrGrantCorrupt
	}

	g := &Grant{
		Kind:   Kind(data[1]),
		Status: Status(data[2]),
	}
	if g.Kind != KindSession && g.Kind != KindUpgradeOffer {
		return nil, ErrGrantCorrupt
	}
	if g.Status > StatusRevoked {
		return nil, ErrGrantCorrupt
	}

	g.ExpiresAt = int64(binary.BigEndian.Uint64(data[3:11]))
	g.ResolvedAt = int64(binary.BigEndian.Uint64(data[11:19]))
	g.ClaimDeadline = int64(binary.BigEndian.Uint64(data[19:27]))
	copy(g.SecretHash[:], data[43:75])
	g.CreatedAt = int64(binary.BigEndian.Uint64(data[75:83]))

	reader := bytes.NewReader(data[fixedHeaderSize:])

	subject, err := readShortString(reader)
	if err != nil {
		return nil, ErrGrantCorrupt
	}
	g.Subject = subject

	detail, err := readShortString(reader)
	if err != nil {
		return nil, ErrGrantCorrupt
	}
	g.Detail = detail

	var payloadLen uint16
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return nil, ErrGrantCorrupt
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, ErrGrantCorrupt
	}
	if err := decodePayload(g, payload); err != nil {
		return nil, err
	}

	return g, nil
}

func encodePayload(g *Grant) ([]byte, error) {
	var buf bytes.Buffer

	switch g.Kind {
	case KindSession:
		p := g.Session
		if p == nil {
			p = &SessionPayload{}
		}
		if err := writeShortString(&buf, p.Role); err != nil {
			return nil, err
		}
		if err := writeShortString(&buf, p.RotatedFrom); err != nil {
			return nil, err
		}
		if len(p.ExtraClaims) > 255 {
			return nil, errors.New("too many extra claims")
		}
		buf.WriteByte(byte(len(p.ExtraClaims)))
		keys := make([]string, 0, len(p.ExtraClaims))
		for k := range p.ExtraClaims {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeShortString(&buf, k); err != nil {
				return nil, err
			}
			if err := writeShortString(&buf, p.ExtraClaims[k]); err != nil {
				return nil, err
			}
		}
	case KindUpgradeOffer:
		p := g.Offer
		if p == nil {
			p = &OfferPayload{}
		}
		for _, s := range []string{
			p.CurrentBerth, p.OfferedCoach, p.OfferedBerth, p.OfferedBerthType, p.StationContext,
		} {
			if err := writeShortString(&buf, s); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unknown grant kind")
	}

	return buf.Bytes(), nil
}

func decodePayload(g *Grant, payload []byte) error {
	reader := bytes.NewReader(payload)

	switch g.Kind {
	case KindSession:
		p := &SessionPayload{}
		var err error
		if p.Role, err = readShortString(reader); err != nil {
			return ErrGrantCorrupt
		}
		if p.RotatedFrom, err = readShortString(reader); err != nil {
			return ErrGrantCorrupt
		}
		count, err := reader.ReadByte()
		if err != nil {
			return ErrGrantCorrupt
		}
		if count > 0 {
			p.ExtraClaims = make(map[string]string, count)
			for i := 0; i < int(count); i++ {
				k, err := readShortString(reader)
				if err != nil {
					return ErrGrantCorrupt
				}
				v, err := readShortString(reader)
				if err != nil {
					return ErrGrantCorrupt
				}
				p.ExtraClaims[k] = v
			}
		}
		g.Session = p
	case KindUpgradeOffer:
		p := &OfferPayload{}
		for _, dst := range []*string{
			&p.CurrentBerth, &p.OfferedCoach, &p.OfferedBerth, &p.OfferedBerthType, &p.StationContext,
		} {
			s, err := readShortString(reader)
			if err != nil {
				return ErrGrantCorrupt
			}
			*dst = s
		}
		g.Offer = p
	}

	return nil
}

func writeShortString(buf *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return errors.New("string field too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
