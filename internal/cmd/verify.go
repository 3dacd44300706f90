package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/MTLaboratory/MTSFV/engine"
	"github.com/MTLaboratory/MTSFV/internal/flags/log"
	"github.com/MTLaboratory/MTSFV/manifest"
)

const (
	jobsFlag    = "jobs"
	baseDirFlag = "base"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Verify files against a checksum manifest",
		Long: `Verify reads a checksum manifest (.sfv, .md5, .sha1, .sha256, .sum or
.digests), hashes every listed file and reports the outcome per entry.
Container members are addressed as "archive.zip#member" inside the manifest.

The exit code is 1 when any entry does not match.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().Int(jobsFlag, 0, `number of parallel verification workers (default: number of CPUs).`)
	cmd.Flags().String(baseDirFlag, "", `directory relative manifest paths resolve against (default: the manifest's directory).`)
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger, err := log.GetBaseLogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	ctx := slogcontext.NewCtx(cmd.Context(), logger)

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manifestPath := args[0]
	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	m, err := manifest.ParseFile(manifestPath, f)
	closeErr := f.Close()
	if err != nil {
		return errors.Join(err, closeErr)
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

	jobs, err := cmd.Flags().GetInt(jobsFlag)
	if err != nil {
		return err
	}
	if jobs == 0 {
		jobs = config.Jobs
	}
	baseDir, err := cmd.Flags().GetString(baseDirFlag)
	if err != nil {
		return err
	}
	if baseDir == "" {
		baseDir = filepath.Dir(manifestPath)
	}

	e := engine.New(pm,
		engine.WithWorkers(jobs),
		engine.WithChunkSize(config.ChunkSize),
		engine.WithBaseDir(baseDir),
		engine.WithProgress(func(r engine.Result) {
			logger.InfoContext(ctx, "entry settled",
				"path", r.Entry.DisplayPath(), "outcome", r.Outcome.String())
		}),
	)

	report, err := e.Run(ctx, m)
	if err != nil {
		return fmt.Errorf("verification run failed: %w", err)
	}

	renderReport(cmd, report)

	if !report.OK() {
		failed := report.Len() - report.Count(engine.OutcomeMatch)
		return fmt.Errorf("verification failed: %d of %d entries did not match", failed, report.Len())
	}
	return nil
}

func renderReport(cmd *cobra.Command, report *engine.Report) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"PATH", "ALGORITHM", "EXPECTED", "ACTUAL", "OUTCOME"})
	for _, result := range report.Results() {
		t.AppendRow(table.Row{
			result.Entry.DisplayPath(),
			result.Entry.Algorithm,
			result.Entry.Expected.Hex(),
			result.Actual.Hex(),
			result.Outcome.String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "matched",
		fmt.Sprintf("%d/%d", report.Count(engine.OutcomeMatch), report.Len())})
	t.Render()
}
