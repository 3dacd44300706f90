package provider

import (
	"context"
	"fmt"
	"hash"
	"sync"

	"github.com/MTLaboratory/MTSFV/digest"
)

// NewHashProvider wraps a stdlib-style hash constructor into a
// ChecksumProvider. The built-in algorithm providers are all thin layers
// over this. The returned provider supports streaming and one-shot hashing
// and hands out an independent hash state per Begin call, so concurrent
// streams never share state.
func NewHashProvider(desc Descriptor, factory func() hash.Hash) (OneShotProvider, error) {
	desc.Capabilities |= CapStreaming | CapOneShot
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if got := factory().Size(); got != desc.DigestSize {
		return nil, fmt.Errorf("provider %q declares digest size %d but produces %d bytes", desc.ID, desc.DigestSize, got)
	}
	return &hashProvider{desc: desc, factory: factory}, nil
}

// MustHashProvider is NewHashProvider for statically known descriptors.
func MustHashProvider(desc Descriptor, factory func() hash.Hash) OneShotProvider {
	p, err := NewHashProvider(desc, factory)
	if err != nil {
		panic(err)
	}
	return p
}

type hashProvider struct {
	desc    Descriptor
	factory func() hash.Hash
}

func (p *hashProvider) Descriptor() Descriptor {
	return p.desc
}

func (p *hashProvider) Begin(_ context.Context) (Stream, error) {
	return &hashStream{algorithm: p.desc.ID, h: p.factory()}, nil
}

func (p *hashProvider) Sum(ctx context.Context, buf []byte) (digest.Digest, error) {
	s, err := p.Begin(ctx)
	if err != nil {
		return digest.Digest{}, err
	}
	if err := s.Update(ctx, buf); err != nil {
		return digest.Digest{}, err
	}
	return s.Finish(ctx)
}

type hashStream struct {
	mu        sync.Mutex
	algorithm string
	h         hash.Hash
}

func (s *hashStream) Update(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == nil {
		return ErrInvalidStream
	}
	// hash.Hash.Write never returns an error.
	_, _ = s.h.Write(chunk)
	return nil
}

func (s *hashStream) Finish(_ context.Context) (digest.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == nil {
		return digest.Digest{}, ErrInvalidStream
	}
	sum := s.h.Sum(nil)
	s.h = nil
	return digest.New(s.algorithm, sum)
}

func (s *hashStream) Abort(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = nil
	return nil
}
