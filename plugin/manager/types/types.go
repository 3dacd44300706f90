package types

import (
	"github.com/MTLaboratory/MTSFV/provider"
)

// InterfaceVersion is the plugin interface version this host speaks.
// Plugins advertising a different major version are rejected at load time;
// minor and patch differences are accepted.
const InterfaceVersion = "1.0.0"

// Capabilities is what a plugin prints on stdout when invoked with the
// "capabilities" argument. It is the load-time contract negotiation
// payload.
//
// A plugin may advertise its providers through the rich Descriptors table
// or, for minimal plugins, through the flat Algorithms id list. When both
// are present Descriptors is authoritative and Algorithms is ignored; this
// is capability detection, not a fallback chain.
type Capabilities struct {
	// InterfaceVersion is the plugin interface version the plugin was
	// compiled against, in semantic version form.
	InterfaceVersion string `json:"interfaceVersion"`
	// Descriptors lists the providers of the plugin with full metadata.
	Descriptors []provider.Descriptor `json:"descriptors,omitempty"`
	// Algorithms is the minimal advertisement: checksum algorithm ids only,
	// streaming capability implied. Descriptor metadata is fetched from the
	// running plugin on first use.
	Algorithms []string `json:"algorithms,omitempty"`
}

// Effective resolves the advertisement into descriptor form, preferring the
// rich table.
func (c Capabilities) Effective() []provider.Descriptor {
	if len(c.Descriptors) > 0 {
		return c.Descriptors
	}
	descriptors := make([]provider.Descriptor, 0, len(c.Algorithms))
	for _, id := range c.Algorithms {
		descriptors = append(descriptors, provider.Descriptor{
			ID:           id,
			Capabilities: provider.CapStreaming,
		})
	}
	return descriptors
}
