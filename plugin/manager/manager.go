// Package manager discovers plugin executables, probes their capabilities
// and hands the advertised providers to the typed registries. Plugin
// processes themselves are started lazily by the registries on first use.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/checksum"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/container"
	mtypes "github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
)

// ErrNoPluginsFound is returned when a register plugin call finds no plugins.
var ErrNoPluginsFound = errors.New("no plugins found")

// PluginManager manages all connected plugins.
type PluginManager struct {
	// Registries containing the typed plugins. Resolution goes through these
	// directly; the manager only loads and dispatches.
	ChecksumRegistry  *checksum.Registry
	ContainerRegistry *container.Registry

	mu sync.Mutex

	// baseCtx is the context used for all plugin processes. This is a
	// different context than the one used for discovering plugins, because
	// that one is done once discovery finishes. The plugin context must not
	// be cancelled before shutdown.
	baseCtx context.Context
}

// NewPluginManager initializes the PluginManager. The passed ctx is used for
// the lifetime of all plugin processes.
func NewPluginManager(ctx context.Context) *PluginManager {
	return &PluginManager{
		ChecksumRegistry:  checksum.NewRegistry(ctx),
		ContainerRegistry: container.NewRegistry(ctx),
		baseCtx:           ctx,
	}
}

// ChecksumProvider resolves a checksum algorithm through the checksum
// registry. Together with ContainerProvider this lets the manager act as the
// engine's provider resolver.
func (pm *PluginManager) ChecksumProvider(ctx context.Context, algorithm string) (provider.ChecksumProvider, error) {
	return pm.ChecksumRegistry.GetProvider(ctx, algorithm)
}

// ContainerProvider resolves a container format through the container
// registry.
func (pm *PluginManager) ContainerProvider(ctx context.Context, format string) (provider.ContainerProvider, error) {
	return pm.ContainerRegistry.GetProvider(ctx, format)
}

// RegistrationOptions configure plugin loading.
type RegistrationOptions struct {
	IdleTimeout time.Duration
}

type RegistrationOptionFn func(*RegistrationOptions)

// WithIdleTimeout configures how long an idle plugin process waits before
// exiting on its own.
func WithIdleTimeout(d time.Duration) RegistrationOptionFn {
	return func(o *RegistrationOptions) {
		o.IdleTimeout = d
	}
}

// RegisterPlugins walks through files in a folder and registers them as
// plugins if connection points can be established. Plugins compiled against
// an incompatible interface version are skipped with a warning rather than
// failing the whole load. This function doesn't support concurrent access.
func (pm *PluginManager) RegisterPlugins(ctx context.Context, dir string, opts ...RegistrationOptionFn) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	defaultOpts := &RegistrationOptions{
		IdleTimeout: time.Hour,
	}

	for _, opt := range opts {
		opt(defaultOpts)
	}

	conf := &mtypes.Config{
		IdleTimeout: &defaultOpts.IdleTimeout,
	}

	t, err := determineConnectionType(ctx)
	if err != nil {
		return fmt.Errorf("could not determine connection type: %w", err)
	}
	conf.Type = t

	plugins, err := pm.fetchPlugins(ctx, conf, dir)
	if err != nil {
		return fmt.Errorf("could not fetch plugins: %w", err)
	}

	if len(plugins) == 0 {
		return ErrNoPluginsFound
	}

	for _, plugin := range plugins {
		conf.ID = plugin.ID
		plugin.Config = *conf

		output := bytes.NewBuffer(nil)
		cmd := exec.CommandContext(ctx, cleanPath(plugin.Path), "capabilities") //nolint:gosec // G204 does not apply
		cmd.Stdout = output
		cmd.Stderr = os.Stderr

		// Run waits for exit, so the capabilities output is complete.
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to probe plugin %s: %w", plugin.ID, err)
		}

		if err := pm.addPlugin(pm.baseCtx, *plugin, output); err != nil {
			return fmt.Errorf("failed to add plugin %s: %w", plugin.ID, err)
		}
	}

	return nil
}

func cleanPath(path string) string {
	return strings.Trim(path, `,;:'"|&*!@#$`)
}

// Shutdown is called to terminate all plugins.
func (pm *PluginManager) Shutdown(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	return errors.Join(
		pm.ChecksumRegistry.Shutdown(ctx),
		pm.ContainerRegistry.Shutdown(ctx),
	)
}

func (pm *PluginManager) fetchPlugins(ctx context.Context, conf *mtypes.Config, dir string) ([]*mtypes.Plugin, error) {
	var plugins []*mtypes.Plugin
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if os.IsNotExist(err) {
			return ErrNoPluginsFound
		}

		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		// Plugin executables are extensionless.
		ext := filepath.Ext(info.Name())
		if ext != "" {
			return nil
		}

		id := filepath.Base(path)

		p := &mtypes.Plugin{
			ID:     id,
			Path:   path,
			Config: *conf,
		}

		slog.DebugContext(ctx, "discovered plugin", "id", id, "path", path)

		plugins = append(plugins, p)

		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}

	return plugins, nil
}

func (pm *PluginManager) addPlugin(ctx context.Context, plugin mtypes.Plugin, capabilitiesCommandOutput *bytes.Buffer) error {
	capabilities := &mtypes.Capabilities{}
	if err := json.Unmarshal(capabilitiesCommandOutput.Bytes(), capabilities); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}

	compatible, err := interfaceCompatible(capabilities.InterfaceVersion)
	if err != nil {
		return fmt.Errorf("failed to check interface version of plugin %s: %w", plugin.ID, err)
	}
	if !compatible {
		slog.WarnContext(ctx, "skipping plugin with incompatible interface version",
			"id", plugin.ID,
			"plugin", capabilities.InterfaceVersion,
			"host", mtypes.InterfaceVersion,
		)
		return nil
	}

	serialized, err := json.Marshal(plugin.Config)
	if err != nil {
		return err
	}

	// Create a command that the owning registry can then start and manage.
	pluginCmd := exec.CommandContext(ctx, cleanPath(plugin.Path), "--config", string(serialized)) //nolint:gosec // G204 does not apply
	pluginCmd.Cancel = func() error {
		slog.Info("killing plugin process because the parent context is cancelled", "id", plugin.ID)
		return pluginCmd.Process.Kill()
	}

	plugin.Cmd = pluginCmd
	stdErr, err := pluginCmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	plugin.Stderr = stdErr
	stdOut, err := pluginCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	plugin.Stdout = stdOut
	plugin.Descriptors = capabilities.Effective()

	// A plugin lands in exactly one registry. The registries each own the
	// lifecycle of the processes they started, so a binary advertising both
	// checksum and container providers would be started twice.
	var hasChecksum, hasContainer bool
	for _, desc := range plugin.Descriptors {
		if desc.Capabilities.Has(provider.CapContainer) {
			hasContainer = true
		} else {
			hasChecksum = true
		}
	}
	if hasChecksum && hasContainer {
		return fmt.Errorf("plugin %s advertises both checksum and container providers; ship them as separate binaries", plugin.ID)
	}

	for _, desc := range plugin.Descriptors {
		if desc.Capabilities.Has(provider.CapContainer) {
			slog.DebugContext(ctx, "adding container plugin", "id", plugin.ID, "format", desc.ID)
			if err := pm.ContainerRegistry.AddPlugin(plugin, desc); err != nil {
				return fmt.Errorf("failed to register plugin %s: %w", plugin.ID, err)
			}
			continue
		}

		slog.DebugContext(ctx, "adding checksum plugin", "id", plugin.ID, "algorithm", desc.ID)
		if err := pm.ChecksumRegistry.AddPlugin(plugin, desc); err != nil {
			return fmt.Errorf("failed to register plugin %s: %w", plugin.ID, err)
		}
	}

	return nil
}

// interfaceCompatible reports whether a plugin compiled against the given
// interface version can be loaded by this host. Majors must match exactly;
// minor and patch differences are fine.
func interfaceCompatible(version string) (bool, error) {
	pluginVersion, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid interface version %q: %w", version, err)
	}
	hostVersion := semver.MustParse(mtypes.InterfaceVersion)
	return pluginVersion.Major() == hostVersion.Major(), nil
}

func determineConnectionType(ctx context.Context) (mtypes.ConnectionType, error) {
	tmp, err := os.MkdirTemp("", "")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmp)
	}()

	socketPath := filepath.Join(tmp, "plugin.sock")
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", socketPath)
	if err != nil {
		return mtypes.TCP, nil
	}

	if err := listener.Close(); err != nil {
		return "", fmt.Errorf("failed to close socket: %w", err)
	}

	return mtypes.Socket, nil
}
