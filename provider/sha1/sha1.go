// Package sha1 provides the built-in SHA-1 checksum provider.
package sha1

import (
	"crypto/sha1"
	"hash"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the algorithm identifier.
const ID = "sha1"

// New returns the SHA-1 provider.
func New() provider.OneShotProvider {
	return provider.MustHashProvider(provider.Descriptor{
		ID:         ID,
		Name:       "SHA-1",
		DigestSize: sha1.Size,
	}, func() hash.Hash {
		return sha1.New()
	})
}
