// Package sha256 provides the built-in SHA-256 checksum provider.
package sha256

import (
	"crypto/sha256"
	"hash"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the algorithm identifier.
const ID = "sha256"

// New returns the SHA-256 provider.
func New() provider.OneShotProvider {
	return provider.MustHashProvider(provider.Descriptor{
		ID:         ID,
		Name:       "SHA-256",
		DigestSize: sha256.Size,
	}, func() hash.Hash {
		return sha256.New()
	})
}
