// Package endpoints collects the capability advertisement and HTTP
// handlers a plugin builds up before it starts serving. The marshalled
// builder is exactly what the plugin prints for the host's capability
// probe.
package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
)

// Handler pairs a handling function with the location it serves.
type Handler struct {
	Handler  http.HandlerFunc
	Location string
}

// Builder accumulates descriptors and handlers during Register* calls.
// Once all providers are registered, MarshalJSON renders the capability
// advertisement for the plugin manager.
type Builder struct {
	Capabilities types.Capabilities
	Handlers     []Handler
}

// New constructs a builder advertising the current interface version.
func New() *Builder {
	return &Builder{
		Capabilities: types.Capabilities{
			InterfaceVersion: types.InterfaceVersion,
		},
	}
}

// AddDescriptor records one provider in the rich capability table.
func (b *Builder) AddDescriptor(d provider.Descriptor) {
	b.Capabilities.Descriptors = append(b.Capabilities.Descriptors, d)
}

// AddHandler registers a handling function for a location.
func (b *Builder) AddHandler(location string, h http.HandlerFunc) {
	b.Handlers = append(b.Handlers, Handler{Handler: h, Location: location})
}

// MarshalJSON returns the accumulated capability advertisement.
func (b *Builder) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Capabilities)
}

// GetHandlers returns all handlers registered for this plugin.
func (b *Builder) GetHandlers() []Handler {
	return b.Handlers
}
