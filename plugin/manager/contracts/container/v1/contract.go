// Package v1 contains the wire contract and types for container plugins,
// which expose virtual members of archive files for checksumming.
package v1

import (
	"context"
	"io"

	"github.com/MTLaboratory/MTSFV/plugin/manager/contracts"
	"github.com/MTLaboratory/MTSFV/provider"
)

// ContainerPluginContract is the v1 wire contract for container plugins.
// Member contents travel as raw response bodies.
type ContainerPluginContract interface {
	contracts.PluginBase

	// Descriptor fetches the static metadata of one advertised format.
	Descriptor(ctx context.Context, format string) (*provider.Descriptor, error)
	// Enumerate lists the members of the container file.
	Enumerate(ctx context.Context, request *EnumerateRequest) (*EnumerateResponse, error)
	// OpenMember streams one member's bytes. A missing member or corrupt
	// container surfaces as provider.ErrEntryNotFound.
	OpenMember(ctx context.Context, format, path, name string) (io.ReadCloser, error)
}
