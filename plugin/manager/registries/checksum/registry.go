package checksum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	mtypes "github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
)

// ErrUnknownAlgorithm is returned when no provider, internal or external,
// is registered for an algorithm identifier.
var ErrUnknownAlgorithm = errors.New("no checksum provider registered for algorithm")

// constructedPlugin is a start-once future for one plugin process. The
// registry lock is only held to install it; the process start itself runs
// under the once, so resolves of other identifiers never wait on it.
type constructedPlugin struct {
	once   sync.Once
	Plugin *RemotePlugin
	cmd    *exec.Cmd
	err    error
}

// Registry holds all plugins and in-process implementations that provide
// checksum algorithms. External plugin processes are started lazily on
// first resolve and cached, so resolving the same algorithm twice returns
// the same instance without reloading.
type Registry struct {
	ctx                context.Context
	mu                 sync.Mutex
	registry           map[string]mtypes.Plugin
	descriptors        map[string]provider.Descriptor
	constructedPlugins map[string]*constructedPlugin
	internalProviders  map[string]provider.ChecksumProvider
}

// NewRegistry creates a new registry and initializes maps. The context is
// used for the lifetime of started plugin processes, not for individual
// resolves.
func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		ctx:                ctx,
		registry:           make(map[string]mtypes.Plugin),
		descriptors:        make(map[string]provider.Descriptor),
		constructedPlugins: make(map[string]*constructedPlugin),
		internalProviders:  make(map[string]provider.ChecksumProvider),
	}
}

// RegisterInternalProvider registers an in-process implementation for its
// descriptor's algorithm. Internal providers take precedence over external
// plugins for the same identifier.
func (r *Registry) RegisterInternalProvider(p provider.ChecksumProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := p.Descriptor()
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("refusing to register provider %q: %w", desc.ID, err)
	}
	id := strings.ToLower(desc.ID)
	if _, ok := r.internalProviders[id]; ok {
		return fmt.Errorf("provider for algorithm %q already registered", id)
	}
	r.internalProviders[id] = p
	return nil
}

// AddPlugin takes a plugin discovered by the manager and registers it for
// one advertised algorithm descriptor.
func (r *Registry) AddPlugin(plugin mtypes.Plugin, desc provider.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.ToLower(desc.ID)
	if v, ok := r.registry[id]; ok {
		return fmt.Errorf("plugin for algorithm %q already registered with ID: %s", id, v.ID)
	}
	r.registry[id] = plugin
	r.descriptors[id] = desc
	return nil
}

// GetProvider resolves an algorithm identifier to a live provider, starting
// the backing plugin process on first use. The registry lock only guards the
// lookup tables; the start itself happens outside it, so a slow plugin start
// never stalls resolves of other algorithms.
func (r *Registry) GetProvider(ctx context.Context, algorithm string) (provider.ChecksumProvider, error) {
	id := strings.ToLower(algorithm)

	r.mu.Lock()
	if p, ok := r.internalProviders[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	plugin, ok := r.registry[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	cp, ok := r.constructedPlugins[plugin.ID]
	if !ok {
		cp = &constructedPlugin{}
		r.constructedPlugins[plugin.ID] = cp
	}
	desc := r.descriptors[id]
	r.mu.Unlock()

	cp.once.Do(func() { r.startPlugin(ctx, &plugin, cp) })
	if cp.err != nil {
		return nil, fmt.Errorf("failed to get plugin for algorithm %q: %w", algorithm, cp.err)
	}
	contract := cp.Plugin

	if desc.DigestSize == 0 {
		// Minimal advertisement: complete the descriptor from the running
		// plugin, rejecting contract violations before first use.
		fetched, err := contract.Descriptor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch descriptor %q from plugin %s: %w", id, plugin.ID, err)
		}
		if err := fetched.Validate(); err != nil {
			return nil, fmt.Errorf("plugin %s violates the provider contract: %w", plugin.ID, err)
		}
		desc = *fetched
		r.mu.Lock()
		r.descriptors[id] = desc
		r.mu.Unlock()
	}

	return &externalProviderConverter{externalPlugin: contract, descriptor: desc}, nil
}

func (r *Registry) startPlugin(ctx context.Context, plugin *mtypes.Plugin, cp *constructedPlugin) {
	if err := plugin.Cmd.Start(); err != nil {
		cp.err = fmt.Errorf("failed to start plugin %s: %w", plugin.ID, err)
		return
	}

	client, location, err := plugins.WaitForPlugin(ctx, plugin)
	if err != nil {
		_ = plugin.Cmd.Process.Kill()
		cp.err = fmt.Errorf("failed to wait for plugin to start: %w", err)
		return
	}

	go plugins.StartLogStreamer(r.ctx, plugin)

	cp.Plugin = NewChecksumPlugin(client, plugin.ID, plugin.Path, plugin.Config, location)
	r.mu.Lock()
	cp.cmd = plugin.Cmd
	r.mu.Unlock()
}

// Algorithms lists all registered algorithm identifiers, internal and
// external.
func (r *Registry) Algorithms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.internalProviders)+len(r.registry))
	var ids []string
	for id := range r.internalProviders {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range r.registry {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown interrupts all started plugin processes. Provider instances are
// plain clients over the plugin connection, so tearing down the processes
// last preserves the destroy-before-unload ordering.
func (r *Registry) Shutdown(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, p := range r.constructedPlugins {
		if p.cmd == nil {
			// Never started, or the start failed and cleaned up after itself.
			continue
		}
		if perr := p.cmd.Process.Signal(os.Interrupt); perr != nil {
			errs = errors.Join(errs, perr)
		}
	}
	r.constructedPlugins = make(map[string]*constructedPlugin)
	return errs
}
