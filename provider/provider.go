// Package provider defines the capability contract between the verification
// engine and checksum implementations. Implementations may live in-process
// (the built-in providers) or behind an externally compiled plugin; either
// way they are driven exclusively through the interfaces in this package.
//
// The package deliberately has no third-party dependencies: it is the
// cross-module boundary, and everything crossing it is plain data.
package provider

import (
	"context"
	"errors"
	"io"

	"github.com/MTLaboratory/MTSFV/digest"
)

var (
	// ErrEntryNotFound is returned by ContainerProvider.OpenMember when the
	// requested member does not exist or the container is corrupt.
	ErrEntryNotFound = errors.New("entry not found in container")
	// ErrInvalidStream is returned when a stream is used after Finish or
	// Abort, or when a plugin receives an unknown stream identifier.
	ErrInvalidStream = errors.New("invalid or finalized checksum stream")
)

// Capability flags declare what a provider implementation supports.
type Capability uint32

const (
	// CapStreaming marks support for incremental Update calls.
	CapStreaming Capability = 1 << iota
	// CapOneShot marks support for one-shot buffer hashing.
	CapOneShot
	// CapContainer marks support for container member enumeration.
	CapContainer
)

// Has reports whether all bits of q are set.
func (c Capability) Has(q Capability) bool {
	return c&q == q
}

// Descriptor is the static metadata a provider supplies once at
// registration. It is never mutated afterwards.
type Descriptor struct {
	// ID is the lower-case algorithm or container-format identifier,
	// e.g. "crc32", "sha1", "zip".
	ID string `json:"id"`
	// Name is a human readable algorithm name.
	Name string `json:"name"`
	// DigestSize is the size of produced digests in bytes. Zero for
	// container-only providers.
	DigestSize int `json:"digestSize,omitempty"`
	// Capabilities declares the supported operations.
	Capabilities Capability `json:"capabilities"`
}

// Validate checks the descriptor against the load-time contract. A
// mismatching digest size is rejected here, at registration, rather than
// deferred to individual calls.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("provider descriptor must carry an id")
	}
	if d.Capabilities.Has(CapStreaming) || d.Capabilities.Has(CapOneShot) {
		if d.DigestSize < digest.MinSize || d.DigestSize > digest.MaxSize {
			return errors.New("provider descriptor declares an out of range digest size")
		}
	}
	return nil
}

// Stream is provider-private incremental hashing state for one in-progress
// computation. Streams are not safe for concurrent use; callers wanting
// parallelism acquire one stream per worker. Every stream obtained from
// Begin must be released through exactly one Finish or Abort call.
type Stream interface {
	// Update feeds one chunk of input.
	Update(ctx context.Context, chunk []byte) error
	// Finish finalizes the computation, invalidates the stream and returns
	// the digest.
	Finish(ctx context.Context) (digest.Digest, error)
	// Abort releases the stream without producing a digest. Abort on an
	// already finalized stream is a no-op.
	Abort(ctx context.Context) error
}

// ChecksumProvider is a loaded implementation of one checksum algorithm.
type ChecksumProvider interface {
	// Descriptor returns static metadata and is side-effect free.
	Descriptor() Descriptor
	// Begin allocates incremental state for one computation.
	Begin(ctx context.Context) (Stream, error)
}

// OneShotProvider is implemented by checksum providers that additionally
// support hashing a complete buffer in a single call (CapOneShot).
type OneShotProvider interface {
	ChecksumProvider
	// Sum hashes buf in one shot.
	Sum(ctx context.Context, buf []byte) (digest.Digest, error)
}

// Entry describes one virtual member of a container file.
type Entry struct {
	// Name is the member path inside the container.
	Name string `json:"name"`
	// Size is the uncompressed member size in bytes.
	Size int64 `json:"size"`
}

// ContainerProvider exposes the virtual members of an archive-like file for
// checksumming without full extraction. Access is read-only.
type ContainerProvider interface {
	// Descriptor returns static metadata and is side-effect free.
	Descriptor() Descriptor
	// Enumerate lists the members of the container at path. The returned
	// sequence is finite and not restartable; re-enumeration requires a new
	// Enumerate call, which reopens the container.
	Enumerate(ctx context.Context, path string) ([]Entry, error)
	// OpenMember opens a byte stream over one member. It returns
	// ErrEntryNotFound if the member does not exist or the container is
	// corrupt.
	OpenMember(ctx context.Context, path, name string) (io.ReadCloser, error)
}

// AsContainer is the capability query for container support: it reports
// whether p also implements the container capability, checking the
// descriptor flag rather than relying on interface shape alone.
func AsContainer(p interface{ Descriptor() Descriptor }) (ContainerProvider, bool) {
	c, ok := p.(ContainerProvider)
	if !ok || !p.Descriptor().Capabilities.Has(CapContainer) {
		return nil, false
	}
	return c, true
}
