package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// GrantID is the 16-byte unguessable identifier of a stored grant.
type GrantID [16]byte

const (
	sessionTokenRawSize = 48
	grantSecretSize     = 32
)

func NewGrantID() (GrantID, error) {
	var gid GrantID
	_, err := rand.Read(gid[:])
	return gid, err
}

func (g GrantID) Bytes() []byte {
	return g[:]
}

func (g GrantID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(g[:])
}

func ParseGrantID(id string) (GrantID, error) {
	var gid GrantID

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return gid, err
	}
	if len(raw) != len(gid) {
		return gid, errors.New("invalid grant id size")
	}

	copy(gid[:], raw)
	return gid, nil
}

func NewGrantSecret() ([grantSecretSize]byte, error) {
	var secret [grantSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashGrantSecret(secret [grantSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeSessionToken packs a grant id and its bearer secret into the opaque
// session token handed to clients. The store only ever sees the secret's
// hash, so a leaked store dump cannot mint tokens.
func EncodeSessionToken(grantID string, secret [grantSecretSize]byte) (string, error) {
	gid, err := ParseGrantID(grantID)
	if err != nil {
		return "", err
	}

	var raw [sessionTokenRawSize]byte
	copy(raw[:len(gid)], gid[:])
	copy(raw[len(gid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeSessionToken(token string) (string, [grantSecretSize]byte, error) {
	var secret [grantSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != sessionTokenRawSize {
		return "", secret, errors.New("invalid session token size")
	}

	var gid GrantID
	copy(gid[:], raw[:len(gid)])
	copy(secret[:], raw[len(gid):])

	return gid.String(), secret, nil
}
