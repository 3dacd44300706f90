package container

import (
	"context"
	"fmt"
	"io"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/container/v1"
	"github.com/MTLaboratory/MTSFV/provider"
)

// externalProviderConverter adapts the wire contract of a running plugin to
// the in-process container provider interface.
type externalProviderConverter struct {
	externalPlugin v1.ContainerPluginContract
	descriptor     provider.Descriptor
}

var _ provider.ContainerProvider = (*externalProviderConverter)(nil)

func (c *externalProviderConverter) Descriptor() provider.Descriptor {
	return c.descriptor
}

func (c *externalProviderConverter) Enumerate(ctx context.Context, path string) ([]provider.Entry, error) {
	response, err := c.externalPlugin.Enumerate(ctx, &v1.EnumerateRequest{Format: c.descriptor.ID, Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate container %s: %w", path, err)
	}
	return response.Entries, nil
}

func (c *externalProviderConverter) OpenMember(ctx context.Context, path, name string) (io.ReadCloser, error) {
	return c.externalPlugin.OpenMember(ctx, c.descriptor.ID, path, name)
}
