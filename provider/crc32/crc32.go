// Package crc32 provides the built-in CRC-32 (IEEE) checksum provider used
// by classic SFV manifests.
package crc32

import (
	"hash"
	"hash/crc32"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the algorithm identifier.
const ID = "crc32"

// New returns the CRC-32 provider. Hashing "123456789" yields cbf43926 and
// the empty input yields 00000000.
func New() provider.OneShotProvider {
	return provider.MustHashProvider(provider.Descriptor{
		ID:         ID,
		Name:       "CRC-32 (IEEE 802.3)",
		DigestSize: crc32.Size,
	}, func() hash.Hash {
		return crc32.NewIEEE()
	})
}
