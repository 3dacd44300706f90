package v1

import (
	"context"
	"io"

	"github.com/MTLaboratory/MTSFV/plugin/manager/contracts"
	"github.com/MTLaboratory/MTSFV/provider"
)

// ChecksumPluginContract is the v1 wire contract for checksum plugins. All
// request and response payloads are plain data; stream chunks travel as raw
// request bodies rather than JSON so that large files are not re-encoded.
type ChecksumPluginContract interface {
	contracts.PluginBase

	// Descriptor fetches the static metadata of one advertised algorithm.
	Descriptor(ctx context.Context, algorithm string) (*provider.Descriptor, error)
	// NewStream allocates incremental state for one computation.
	NewStream(ctx context.Context, algorithm string) (*NewStreamResponse, error)
	// WriteStream feeds one chunk into the stream.
	WriteStream(ctx context.Context, stream string, chunk io.Reader) error
	// FinishStream finalizes the stream and returns the digest.
	FinishStream(ctx context.Context, stream string) (*FinishStreamResponse, error)
	// AbortStream releases the stream without producing a digest.
	AbortStream(ctx context.Context, stream string) error
}
