package checksum

import (
	"context"
	"fmt"
	"io"
	"net/http"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/checksum/v1"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	mtypes "github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
)

// RemotePlugin is the host-side implementation of the v1 checksum contract,
// backed by a running plugin process.
type RemotePlugin struct {
	ID string

	config   mtypes.Config
	path     string
	client   *http.Client
	location string
}

var _ v1.ChecksumPluginContract = (*RemotePlugin)(nil)

// NewChecksumPlugin creates the host-side contract implementation for a
// started plugin process.
func NewChecksumPlugin(client *http.Client, id, path string, config mtypes.Config, location string) *RemotePlugin {
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

func (p *RemotePlugin) Descriptor(ctx context.Context, algorithm string) (*provider.Descriptor, error) {
	desc := &provider.Descriptor{}
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, DescriptorEndpoint, http.MethodGet,
		plugins.WithQueryParams([]plugins.KV{{Key: "algorithm", Value: algorithm}}),
		plugins.WithResult(desc),
	); err != nil {
		return nil, fmt.Errorf("failed to get descriptor %q from plugin %s: %w", algorithm, p.ID, err)
	}
	return desc, nil
}

func (p *RemotePlugin) NewStream(ctx context.Context, algorithm string) (*v1.NewStreamResponse, error) {
	response := &v1.NewStreamResponse{}
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, NewStreamEndpoint, http.MethodPost,
		plugins.WithQueryParams([]plugins.KV{{Key: "algorithm", Value: algorithm}}),
		plugins.WithResult(response),
	); err != nil {
		return nil, fmt.Errorf("failed to open %q stream on plugin %s: %w", algorithm, p.ID, err)
	}
	return response, nil
}

func (p *RemotePlugin) WriteStream(ctx context.Context, stream string, chunk io.Reader) error {
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, WriteStreamEndpoint, http.MethodPost,
		plugins.WithQueryParams([]plugins.KV{{Key: "stream", Value: stream}}),
		plugins.WithRawBody(chunk),
	); err != nil {
		return fmt.Errorf("failed to write to stream %s on plugin %s: %w", stream, p.ID, err)
	}
	return nil
}

func (p *RemotePlugin) FinishStream(ctx context.Context, stream string) (*v1.FinishStreamResponse, error) {
	response := &v1.FinishStreamResponse{}
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, FinishStreamEndpoint, http.MethodPost,
		plugins.WithQueryParams([]plugins.KV{{Key: "stream", Value: stream}}),
		plugins.WithResult(response),
	); err != nil {
		return nil, fmt.Errorf("failed to finish stream %s on plugin %s: %w", stream, p.ID, err)
	}
	return response, nil
}

func (p *RemotePlugin) AbortStream(ctx context.Context, stream string) error {
	if err := plugins.Call(ctx, p.client, p.config.Type, p.location, AbortStreamEndpoint, http.MethodPost,
		plugins.WithQueryParams([]plugins.KV{{Key: "stream", Value: stream}}),
	); err != nil {
		return fmt.Errorf("failed to abort stream %s on plugin %s: %w", stream, p.ID, err)
	}
	return nil
}
