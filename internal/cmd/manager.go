package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MTLaboratory/MTSFV/plugin/manager"
	"github.com/MTLaboratory/MTSFV/provider/crc32"
	"github.com/MTLaboratory/MTSFV/provider/md5"
	"github.com/MTLaboratory/MTSFV/provider/sha1"
	"github.com/MTLaboratory/MTSFV/provider/sha256"
	"github.com/MTLaboratory/MTSFV/provider/tarfile"
	"github.com/MTLaboratory/MTSFV/provider/zipfile"
)

// newPluginManager builds a plugin manager with the built-in providers
// registered and, when the plugin directory exists, external plugins loaded.
// An empty or absent plugin directory is not an error.
func newPluginManager(ctx context.Context, logger *slog.Logger, pluginDir string) (*manager.PluginManager, error) {
	pm := manager.NewPluginManager(ctx)

	if err := errors.Join(
		pm.ChecksumRegistry.RegisterInternalProvider(crc32.New()),
		pm.ChecksumRegistry.RegisterInternalProvider(md5.New()),
		pm.ChecksumRegistry.RegisterInternalProvider(sha1.New()),
		pm.ChecksumRegistry.RegisterInternalProvider(sha256.New()),
		pm.ContainerRegistry.RegisterInternalProvider(zipfile.New()),
		pm.ContainerRegistry.RegisterInternalProvider(tarfile.New()),
	); err != nil {
		return nil, fmt.Errorf("failed to register built-in providers: %w", err)
	}

	if pluginDir == "" {
		return pm, nil
	}
	if _, err := os.Stat(pluginDir); err != nil {
		logger.DebugContext(ctx, "plugin directory not readable, using built-in providers only",
			"dir", pluginDir, "error", err)
		return pm, nil
	}

	if err := pm.RegisterPlugins(ctx, pluginDir); err != nil {
		if errors.Is(err, manager.ErrNoPluginsFound) {
			logger.DebugContext(ctx, "no plugins found", "dir", pluginDir)
			return pm, nil
		}
		return nil, fmt.Errorf("failed to load plugins from %s: %w", pluginDir, err)
	}
	return pm, nil
}
