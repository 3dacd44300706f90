// Package cmd assembles the mtsfv command line interface.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MTLaboratory/MTSFV/internal/flags/log"
)

const (
	// PluginDirectoryFlag points at the directory searched for plugin
	// executables.
	PluginDirectoryFlag = "plugins"
	// ConfigFlag points at an optional YAML configuration file.
	ConfigFlag = "config"
)

var pluginDirectoryDefault = filepath.Join("$HOME", ".config", "mtsfv", "plugins")

// Execute adds all child commands to the root command and runs it. This is
// called by main.main() and only needs to happen once.
func Execute() {
	if err := New().Execute(); err != nil {
		os.Exit(1)
	}
}

// New builds the root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mtsfv [sub-command]",
		Short: "Verify files against checksum manifests",
		Long: `mtsfv verifies files against checksum manifests (SFV, md5sum-style and
extended listings). Checksum algorithms and container formats beyond the
built-in set are loaded from separately compiled plugin executables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cmd.PersistentFlags().String(PluginDirectoryFlag, pluginDirectoryDefault, `directory searched for plugin executables.`)
	cmd.PersistentFlags().String(ConfigFlag, "", `path to an optional YAML configuration file.`)
	log.RegisterLoggingFlags(cmd.PersistentFlags())

	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newAlgorithmsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
