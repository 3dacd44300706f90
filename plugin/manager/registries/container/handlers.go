package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/container/v1"
	"github.com/MTLaboratory/MTSFV/plugin/manager/endpoints"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	"github.com/MTLaboratory/MTSFV/provider"
)

// RegisterContainerProviders wires one or more container providers into a
// plugin's endpoint builder. One plugin binary can serve several formats.
func RegisterContainerProviders(b *endpoints.Builder, providers ...provider.ContainerProvider) error {
	state := &handlerState{providers: make(map[string]provider.ContainerProvider, len(providers))}
	for _, p := range providers {
		desc := p.Descriptor()
		if err := desc.Validate(); err != nil {
			return fmt.Errorf("refusing to register provider %q: %w", desc.ID, err)
		}
		if !desc.Capabilities.Has(provider.CapContainer) {
			return fmt.Errorf("provider %q does not declare the container capability", desc.ID)
		}
		if _, ok := state.providers[desc.ID]; ok {
			return fmt.Errorf("provider for format %q already registered", desc.ID)
		}
		state.providers[desc.ID] = p
		b.AddDescriptor(desc)
	}

	b.AddHandler(DescriptorEndpoint, state.descriptor)
	b.AddHandler(EnumerateEndpoint, state.enumerate)
	b.AddHandler(MemberEndpoint, state.member)
	return nil
}

type handlerState struct {
	providers map[string]provider.ContainerProvider
}

func (s *handlerState) byFormat(r *http.Request) (provider.ContainerProvider, error) {
	format := r.URL.Query().Get("format")
	p, ok := s.providers[format]
	if !ok {
		return nil, fmt.Errorf("unknown container format %q", format)
	}
	return p, nil
}

func (s *handlerState) descriptor(w http.ResponseWriter, r *http.Request) {
	p, err := s.byFormat(r)
	if err != nil {
		plugins.NewError(err, http.StatusNotFound).Write(w)
		return
	}
	desc := p.Descriptor()
	if err := json.NewEncoder(w).Encode(&desc); err != nil {
		plugins.NewError(fmt.Errorf("failed to encode descriptor: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) enumerate(w http.ResponseWriter, r *http.Request) {
	defer func() {
		_ = r.Body.Close()
	}()

	request, err := plugins.DecodeJSONRequestBody[v1.EnumerateRequest](r)
	if err != nil {
		plugins.NewError(err, http.StatusBadRequest).Write(w)
		return
	}

	p, ok := s.providers[request.Format]
	if !ok {
		plugins.NewError(fmt.Errorf("unknown container format %q", request.Format), http.StatusNotFound).Write(w)
		return
	}

	entries, err := p.Enumerate(r.Context(), request.Path)
	if err != nil {
		plugins.NewError(fmt.Errorf("failed to enumerate container: %w", err), http.StatusUnprocessableEntity).Write(w)
		return
	}
	if err := json.NewEncoder(w).Encode(&v1.EnumerateResponse{Entries: entries}); err != nil {
		plugins.NewError(fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError).Write(w)
	}
}

func (s *handlerState) member(w http.ResponseWriter, r *http.Request) {
	p, err := s.byFormat(r)
	if err != nil {
		plugins.NewError(err, http.StatusNotFound).Write(w)
		return
	}

	query := r.URL.Query()
	rc, err := p.OpenMember(r.Context(), query.Get("path"), query.Get("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, provider.ErrEntryNotFound) {
			status = http.StatusNotFound
		}
		plugins.NewError(err, status).Write(w)
		return
	}
	defer func() {
		_ = rc.Close()
	}()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are out; all that is left is dropping the connection.
		return
	}
}
