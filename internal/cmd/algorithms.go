package cmd

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/MTLaboratory/MTSFV/internal/flags/log"
)

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the available checksum algorithms and container formats",
		Long: `Algorithms lists every identifier the verifier can resolve: the built-in
providers plus everything advertised by plugins in the plugin directory.
Listing does not start any plugin process; it reads the load-time
advertisements only.`,
		Args: cobra.NoArgs,
		RunE: runAlgorithms,
	}
}

func runAlgorithms(cmd *cobra.Command, _ []string) error {
	logger, err := log.GetBaseLogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	ctx := slogcontext.NewCtx(cmd.Context(), logger)

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pluginDir, err := pluginDirectory(cmd, config)
	if err != nil {
		return err
	}

	pm, err := newPluginManager(ctx, logger, pluginDir)
	if err != nil {
		return err
	}
	defer func() {
		if serr := pm.Shutdown(ctx); serr != nil {
			logger.WarnContext(ctx, "failed to shut down plugins", "error", serr)
		}
	}()

	algorithms := pm.ChecksumRegistry.Algorithms()
	formats := pm.ContainerRegistry.Formats()
	sort.Strings(algorithms)
	sort.Strings(formats)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"IDENTIFIER", "KIND"})
	for _, id := range algorithms {
		t.AppendRow(table.Row{id, "checksum"})
	}
	for _, id := range formats {
		t.AppendRow(table.Row{id, "container"})
	}
	t.Render()
	return nil
}
