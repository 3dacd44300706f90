// Package md5 provides the built-in MD5 checksum provider for md5sum-style
// manifests. MD5 is carried for manifest compatibility, not integrity
// against an adversary.
package md5

import (
	"crypto/md5"
	"hash"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the algorithm identifier.
const ID = "md5"

// New returns the MD5 provider.
func New() provider.OneShotProvider {
	return provider.MustHashProvider(provider.Descriptor{
		ID:         ID,
		Name:       "MD5",
		DigestSize: md5.Size,
	}, func() hash.Hash {
		return md5.New()
	})
}
