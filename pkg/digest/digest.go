// Package digest provides the 32-byte content digests used throughout
// TrustPlane: ticket hashes, constraints hashes, and settlement hashes.
// Digests are computed with legacy Keccak-256, the convention of the
// settlement rail the engine fronts, and travel as hex strings.
package digest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the digest length in bytes.
const Size = 32

// Digest is a 32-byte content digest. The zero value is the zero digest.
type Digest [Size]byte

// Zero is the all-zero digest.
var Zero Digest

// Keccak256 hashes the concatenation of the given byte slices with
// legacy Keccak-256 (the pre-NIST padding used by EVM-style rails).
func Keccak256(data ...[]byte) Digest {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Digest
	h.Sum(out[:0])
	return out
}

// FromBytes copies b into a Digest. b must be exactly Size bytes.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("digest must be %d bytes, got %d", Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Parse decodes a 64-character hex string, with or without a 0x prefix.
func Parse(s string) (Digest, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("parse digest: %w", err)
	}
	return FromBytes(b)
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == Zero }

// String returns the lower-case hex encoding without a prefix.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Bytes returns a copy of the digest bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// MarshalJSON encodes the digest as a hex string.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a hex string; the empty string decodes to the
// zero digest so optional fields round-trip cleanly.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Zero
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
