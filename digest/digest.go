// Package digest provides the checksum value type shared between the
// verification engine and checksum providers. A Digest pairs the raw bytes
// of a computed checksum with the identifier of the algorithm that produced
// them and is immutable after construction.
package digest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	ocidigest "github.com/opencontainers/go-digest"
)

const (
	// MinSize is the smallest digest size any algorithm may declare, in bytes.
	MinSize = 1
	// MaxSize is the largest digest size any algorithm may declare, in bytes.
	MaxSize = 64
)

// Digest is an immutable checksum value tagged with its algorithm.
type Digest struct {
	algorithm string
	value     []byte
}

// New constructs a Digest for the given algorithm identifier. The value is
// copied. The length must be within [MinSize, MaxSize]; anything else is a
// contract violation on the side of whoever produced the bytes.
func New(algorithm string, value []byte) (Digest, error) {
	if algorithm == "" {
		return Digest{}, fmt.Errorf("digest algorithm must not be empty")
	}
	if len(value) < MinSize || len(value) > MaxSize {
		return Digest{}, fmt.Errorf("digest size %d for algorithm %q out of range [%d, %d]", len(value), algorithm, MinSize, MaxSize)
	}
	return Digest{
		algorithm: strings.ToLower(algorithm),
		value:     bytes.Clone(value),
	}, nil
}

// MustNew is New for statically known values. It panics on invalid input.
func MustNew(algorithm string, value []byte) Digest {
	d, err := New(algorithm, value)
	if err != nil {
		panic(err)
	}
	return d
}

// FromHex constructs a Digest from a hex encoded value.
func FromHex(algorithm, encoded string) (Digest, error) {
	value, err := hex.DecodeString(strings.ToLower(encoded))
	if err != nil {
		return Digest{}, fmt.Errorf("invalid hex digest %q: %w", encoded, err)
	}
	return New(algorithm, value)
}

// Parse parses the canonical "algorithm:hex" notation. For algorithms known
// to the OCI digest registry (sha256, sha512, ...) the stricter OCI
// validation applies, which includes the declared encoded length.
func Parse(s string) (Digest, error) {
	algorithm, encoded, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{}, fmt.Errorf("digest %q is not in algorithm:hex form", s)
	}
	if alg := ocidigest.Algorithm(strings.ToLower(algorithm)); alg.Available() {
		if err := alg.Validate(encoded); err != nil {
			return Digest{}, fmt.Errorf("invalid %s digest %q: %w", alg, encoded, err)
		}
	}
	return FromHex(algorithm, encoded)
}

// Algorithm returns the lower-case identifier of the producing algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns a copy of the raw digest bytes.
func (d Digest) Value() []byte {
	return bytes.Clone(d.value)
}

// Size returns the digest length in bytes.
func (d Digest) Size() int {
	return len(d.value)
}

// IsZero reports whether d is the zero Digest, i.e. no digest was computed.
func (d Digest) IsZero() bool {
	return d.algorithm == "" && d.value == nil
}

// Hex returns the lower-case hex encoding of the digest value.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.value)
}

// String renders the canonical "algorithm:hex" notation.
func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.algorithm + ":" + d.Hex()
}

// Equal reports whether both digests carry the same algorithm and the exact
// same bytes. Comparison is byte-exact; there is no truncated or
// case-insensitive matching.
func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && bytes.Equal(d.value, other.value)
}
