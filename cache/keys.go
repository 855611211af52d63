package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeySeparator joins a namespace and a payload digest.
const KeySeparator = ":"

// KeyDeriver maps key payloads to lowercase hex SHA-256 digests of their
// canonical form. Equal canonical forms always give equal digests.
type KeyDeriver struct {
	canonicalizer Canonicalizer
}

// NewKeyDeriver creates a KeyDeriver. A nil canonicalizer selects the
// text canonicalizer.
func NewKeyDeriver(c Canonicalizer) *KeyDeriver {
	if c == nil {
		c = NewTextCanonicalizer()
	}
	return &KeyDeriver{canonicalizer: c}
}

// Derive returns the 64 character digest for payload.
func (d *KeyDeriver) Derive(payload any) (string, error) {
	data, err := d.canonicalizer.Canonicalize(payload)
	if err != nil {
		return "", newKeyDerivationError(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

var defaultKeyDeriver = NewKeyDeriver(nil)

// DeriveKey derives a digest with the default text canonicalizer.
func DeriveKey(payload any) (string, error) {
	return defaultKeyDeriver.Derive(payload)
}
