package checksum

import (
	"bytes"
	"context"
	"fmt"

	"github.com/MTLaboratory/MTSFV/digest"
	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/checksum/v1"
	"github.com/MTLaboratory/MTSFV/provider"
)

// externalProviderConverter adapts the wire contract of a running plugin to
// the in-process provider interface the engine drives.
type externalProviderConverter struct {
	externalPlugin v1.ChecksumPluginContract
	descriptor     provider.Descriptor
}

var _ provider.ChecksumProvider = (*externalProviderConverter)(nil)

func (c *externalProviderConverter) Descriptor() provider.Descriptor {
	return c.descriptor
}

func (c *externalProviderConverter) Begin(ctx context.Context) (provider.Stream, error) {
	response, err := c.externalPlugin.NewStream(ctx, c.descriptor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin stream: %w", err)
	}
	return &externalStream{
		plugin:     c.externalPlugin,
		stream:     response.Stream,
		descriptor: c.descriptor,
	}, nil
}

type externalStream struct {
	plugin     v1.ChecksumPluginContract
	stream     string
	descriptor provider.Descriptor
	done       bool
}

func (s *externalStream) Update(ctx context.Context, chunk []byte) error {
	if s.done {
		return provider.ErrInvalidStream
	}
	return s.plugin.WriteStream(ctx, s.stream, bytes.NewReader(chunk))
}

func (s *externalStream) Finish(ctx context.Context) (digest.Digest, error) {
	if s.done {
		return digest.Digest{}, provider.ErrInvalidStream
	}
	s.done = true

	response, err := s.plugin.FinishStream(ctx, s.stream)
	if err != nil {
		return digest.Digest{}, err
	}
	d, err := digest.FromHex(s.descriptor.ID, response.Digest)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("plugin returned a malformed digest: %w", err)
	}
	if d.Size() != s.descriptor.DigestSize {
		return digest.Digest{}, fmt.Errorf("plugin returned a %d byte digest, descriptor declares %d", d.Size(), s.descriptor.DigestSize)
	}
	return d, nil
}

func (s *externalStream) Abort(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	return s.plugin.AbortStream(ctx, s.stream)
}
