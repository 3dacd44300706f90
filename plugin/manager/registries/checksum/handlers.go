package checksum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/checksum/v1"
	"github.com/MTLaboratory/MTSFV/plugin/manager/endpoints"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	"github.com/MTLaboratory/MTSFV/provider"
)

// RegisterChecksumProviders wires one or more checksum providers into a
// plugin's endpoint builder. The providers share a single stream table, so
// one plugin binary can serve several algorithms; stream identifiers are
// unique across all of them.
func RegisterChecksumProviders(b *endpoints.Builder, providers ...provider.ChecksumProvider) error {
	state := &handlerState{
		providers: make(map[string]provider.ChecksumProvider, len(providers)),
		streams:   make(map[string]provider.Stream),
	}
	for _, p := range providers {
		desc := p.Descriptor()
		if err := desc.Validate(); err != nil {
			return fmt.Errorf("refusing to register provider %q: %w", desc.ID, err)
		}
		if _, ok := state.providers[desc.ID]; ok {
			return fmt.Errorf("provider for algorithm %q already registered", desc.ID)
		}
		state.providers[desc.ID] = p
		b.AddDescriptor(desc)
	}

	b.AddHandler(DescriptorEndpoint, state.descriptor)
	b.AddHandler(NewStreamEndpoint, state.newStream)
	b.AddHandler(WriteStreamEndpoint, state.writeStream)
	b.AddHandler(FinishStreamEndpoint, state.finishStream)
	b.AddHandler(AbortStreamEndpoint, state.abortStream)
	return nil
}

// handlerState is the plugin-side session table: providers by algorithm and
// live streams by identifier.
type handlerState struct {
	mu         sync.Mutex
	nextStream uint64
	providers  map[string]provider.ChecksumProvider
	streams    map[string]provider.Stream
}

func (s *handlerState) descriptor(w http.ResponseWriter, r *http.Request) {
	p, ok := s.providers[r.URL.Query().Get("algorithm")]
	if !ok {
		plugins.NewError(fmt.Errorf("unknown algorithm %q", r.URL.Query().Get("algorithm")), http.StatusNotFound).Write(w)
		return
	}
	desc := p.Descriptor()
	if err := json.NewEncoder(w).Encode(&desc); err != nil {
		plugins.NewError(fmt.Errorf("failed to encode descriptor: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) newStream(w http.ResponseWriter, r *http.Request) {
	algorithm := r.URL.Query().Get("algorithm")
	p, ok := s.providers[algorithm]
	if !ok {
		plugins.NewError(fmt.Errorf("unknown algorithm %q", algorithm), http.StatusNotFound).Write(w)
		return
	}

	// Streams outlive the request that created them.
	stream, err := p.Begin(context.WithoutCancel(r.Context()))
	if err != nil {
		plugins.NewError(fmt.Errorf("failed to begin stream: %w", err), http.StatusInternalServerError).Write(w)
		return
	}

	s.mu.Lock()
	s.nextStream++
	id := algorithm + "-" + strconv.FormatUint(s.nextStream, 10)
	s.streams[id] = stream
	s.mu.Unlock()

	if err := json.NewEncoder(w).Encode(&v1.NewStreamResponse{Stream: id}); err != nil {
		plugins.NewError(fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) writeStream(w http.ResponseWriter, r *http.Request) {
	stream, ok := s.lookup(r)
	if !ok {
		plugins.NewError(provider.ErrInvalidStream, http.StatusNotFound).Write(w)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		plugins.NewError(fmt.Errorf("failed to read chunk: %w", err), http.StatusInternalServerError).Write(w)
		return
	}
	if err := stream.Update(r.Context(), chunk); err != nil {
		plugins.NewError(fmt.Errorf("failed to update stream: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) finishStream(w http.ResponseWriter, r *http.Request) {
	stream, ok := s.take(r)
	if !ok {
		plugins.NewError(provider.ErrInvalidStream, http.StatusNotFound).Write(w)
		return
	}

	d, err := stream.Finish(r.Context())
	if err != nil {
		plugins.NewError(fmt.Errorf("failed to finish stream: %w", err), http.StatusInternalServerError).Write(w)
		return
	}
	if err := json.NewEncoder(w).Encode(&v1.FinishStreamResponse{
		Algorithm: d.Algorithm(),
		Digest:    d.Hex(),
	}); err != nil {
		plugins.NewError(fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) abortStream(w http.ResponseWriter, r *http.Request) {
	stream, ok := s.take(r)
	if !ok {
		plugins.NewError(provider.ErrInvalidStream, http.StatusNotFound).Write(w)
		return
	}
	if err := stream.Abort(r.Context()); err != nil {
		plugins.NewError(fmt.Errorf("failed to abort stream: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) lookup(r *http.Request) (provider.Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.streams[r.URL.Query().Get("stream")]
	return stream, ok
}

// take removes the stream from the table; used by the finalizing handlers.
func (s *handlerState) take(r *http.Request) (provider.Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.URL.Query().Get("stream")
	stream, ok := s.streams[id]
	if ok {
		delete(s.streams, id)
	}
	return stream, ok
}
