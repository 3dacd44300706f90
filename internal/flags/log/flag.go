// Package log wires the logging flags shared by all commands and builds the
// base slog.Logger from their values. It supports JSON and text formats, the
// usual levels and stdout/stderr destinations.
package log

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MTLaboratory/MTSFV/internal/flags/enum"
)

const (
	FormatFlagName = "logformat"

	FormatJSON = "json"
	FormatText = "text"
)

const (
	LevelFlagName = "loglevel"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const (
	OutputFlagName = "logoutput"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// RegisterLoggingFlags registers the logging-related flags with the given
// flag set. They are meant to be added as persistent flags so every
// subcommand shares them.
func RegisterLoggingFlags(flagset *pflag.FlagSet) {
	enum.Var(flagset, FormatFlagName, []string{
		FormatText,
		FormatJSON,
	}, `set the log output format that is used to print individual logs
   json: Output logs in JSON format, suitable for machine processing
   text: Output logs in human-readable text format, suitable for console output`)

	enum.Var(flagset, LevelFlagName, []string{
		LevelWarn,
		LevelDebug,
		LevelInfo,
		LevelError,
	}, `sets the logging level
   debug: Show all logs including detailed debugging information
   info:  Show informational messages and above
   warn:  Show warnings and errors only (default)
   error: Show errors only`)

	enum.Var(flagset, OutputFlagName, []string{
		OutputStderr,
		OutputStdout,
	}, `set the log output destination
   stderr: Write logs to standard error, keeping them apart from reports (default)
   stdout: Write logs to standard output`)
}

// GetBaseLogger creates a slog.Logger configured from the command's logging
// flags.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	logLevel, err := loggerLevelFromCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to get log level: %w", err)
	}

	format, err := enum.Get(cmd.Flags(), FormatFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to get the log format from the command flag: %w", err)
	}

	output, err := enum.Get(cmd.Flags(), OutputFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to get the log output from the command flag: %w", err)
	}

	var outputWriter io.Writer
	switch output {
	case OutputStdout:
		outputWriter = cmd.OutOrStdout()
	case OutputStderr:
		outputWriter = cmd.ErrOrStderr()
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(outputWriter, &slog.HandlerOptions{
			Level: logLevel,
		})
	case FormatText:
		handler = slog.NewTextHandler(outputWriter, &slog.HandlerOptions{
			Level: logLevel,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	return slog.New(handler), nil
}

func loggerLevelFromCommand(cmd *cobra.Command) (slog.Level, error) {
	logLevel, err := enum.Get(cmd.Flags(), LevelFlagName)
	if err != nil {
		return slog.LevelWarn, err
	}
	var level slog.Level
	switch logLevel {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelInfo:
		level = slog.LevelInfo
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", logLevel)
	}
	return level, nil
}
