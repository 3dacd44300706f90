package plugins

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
)

// StartLogStreamer is launched when a plugin is started. It continuously
// streams the plugin's stderr into the host's debug logger. Plugins write
// their logs to stderr by convention.
func StartLogStreamer(ctx context.Context, plugin *types.Plugin) {
	if plugin.Stderr == nil {
		return
	}

	logger := slogcontext.FromCtx(ctx).With(slog.String("plugin", plugin.ID))

	scanner := bufio.NewScanner(plugin.Stderr)
	lineChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			lineChan <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("error reading plugin output: %w", err)
		}
	}()

	for {
		select {
		case line := <-lineChan:
			logger.DebugContext(ctx, line)
		case err := <-errChan:
			logger.DebugContext(ctx, "streaming logs from plugin failed", "error", err.Error())
		case <-ctx.Done():
			logger.DebugContext(ctx, "stopping log streamer, context is done")
			return
		}
	}
}
