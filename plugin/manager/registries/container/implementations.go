package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/container/v1"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	mtypes "github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
)

// RemotePlugin is the host-side implementation of the v1 container contract,
// backed by a running plugin process.
type RemotePlugin struct {
	ID string

	config   mtypes.Config
	path     string
	client   *http.Client
	location string
}

var _ v1.ContainerPluginContract = (*RemotePlugin)(nil)

// NewContainerPlugin creates the host-side contract implementation for a
// started plugin process.
func NewContainerPlugin(client *http.Client, id, path string, config mtypes.Config, location string) *RemotePlugin {
	return &RemotePlugin{
		ID:       id,
		path:     path,
		config:   config,
		client:   client,
		location: location,
	}
}

func (p *RemotePlugin) Ping(ctx context.Context) error {
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, "healthz", http.MethodGet); err != nil {
		return fmt.Errorf("failed to ping plugin %s: %w", p.ID, err)
	}
	return nil
}

func (p *RemotePlugin) Descriptor(ctx context.Context, format string) (*provider.Descriptor, error) {
	desc := &provider.Descriptor{}
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, DescriptorEndpoint, http.MethodGet,
		plugins.WithQueryParams([]plugins.KV{{Key: "format", Value: format}}),
		plugins.WithResult(desc),
	); err != nil {
		return nil, fmt.Errorf("failed to get descriptor %q from plugin %s: %w", format, p.ID, err)
	}
	return desc, nil
}

func (p *RemotePlugin) Enumerate(ctx context.Context, request *v1.EnumerateRequest) (*v1.EnumerateResponse, error) {
	response := &v1.EnumerateResponse{}
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, EnumerateEndpoint, http.MethodPost,
		plugins.WithPayload(request),
		plugins.WithResult(response),
	); err != nil {
		return nil, fmt.Errorf("failed to enumerate %s on plugin %s: %w", request.Path, p.ID, err)
	}
	return response, nil
}

func (p *RemotePlugin) OpenMember(ctx context.Context, format, path, name string) (io.ReadCloser, error) {
	body, err := plugins.CallStream(ctx, p.client, p.config.Type, p.location, MemberEndpoint, http.MethodGet,
		plugins.WithQueryParams([]plugins.KV{
			{Key: "format", Value: format},
			{Key: "path", Value: path},
			{Key: "name", Value: name},
		}),
	)
	if err != nil {
		var statusErr *plugins.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s in %s (plugin %s)", provider.ErrEntryNotFound, name, path, p.ID)
		}
		return nil, fmt.Errorf("failed to open member %s of %s on plugin %s: %w", name, path, p.ID, err)
	}
	return body, nil
}
