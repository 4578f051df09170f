package domain

import (
	"encoding/hex"

	dErrors "gumball/pkg/domain-errors"

	"golang.org/x/crypto/sha3"
)

// IdentitySize is the byte length of every identity in the system.
const IdentitySize = 32

// Identity is a 32-byte account identity (owner, user, token mint, collection,
// derived config address). The zero value means "unset".
//
// Usage: construct via ParseIdentity at trust boundaries; direct construction
// is reserved for derivation and tests.
type Identity [IdentitySize]byte

// ParseIdentity constructs an Identity from its hex representation.
//
// Errors: returns CodeInvalidInput when the value is empty, not hex, or not
// exactly 32 bytes; no other errors are expected.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity must be hex encoded")
	}
	if len(raw) != IdentitySize {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity must be 32 bytes")
	}
	var id Identity
	copy(id[:], raw)
	return id, nil
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// String returns the hex representation.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// configSeed scopes derived config addresses; one record per owner.
const configSeed = "config"

// DeriveConfigAddress derives the deterministic address that scopes an owner's
// machine record, plus the bump that disambiguated it. The address is a pure
// hash lookup key with no key material behind it; authorization is an explicit
// owner check at the service layer, never possession of this value.
//
// The bump scan mirrors program-derived addressing: starting from 255 and
// walking down, the first candidate whose leading byte is non-zero wins, so
// derivation is stable across processes.
func DeriveConfigAddress(owner Identity) (Identity, uint8) {
	for bump := 255; bump >= 0; bump-- {
		h := sha3.New256()
		h.Write([]byte(configSeed))
		h.Write(owner[:])
		h.Write([]byte{uint8(bump)})
		var addr Identity
		copy(addr[:], h.Sum(nil))
		if addr[0] != 0 {
			return addr, uint8(bump)
		}
	}
	// 256 consecutive zero-prefixed hashes cannot happen with a sound hash.
	panic("config address derivation exhausted bump space")
}
