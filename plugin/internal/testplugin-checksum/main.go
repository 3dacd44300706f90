package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	plugin "github.com/MTLaboratory/MTSFV/plugin/client/sdk"
	"github.com/MTLaboratory/MTSFV/plugin/manager/endpoints"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/checksum"
	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider/crc32"
	"github.com/MTLaboratory/MTSFV/provider/md5"
)

var logger *slog.Logger

func main() {
	args := os.Args[1:]
	// log messages go over stderr by convention established by the plugin
	// manager; stdout carries capabilities and the location line.
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	capabilities := endpoints.New()
	if err := checksum.RegisterChecksumProviders(capabilities, crc32.New(), md5.New()); err != nil {
		logger.Error("failed to register test plugin", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("registered test plugin")

	if len(args) > 0 && args[0] == "capabilities" {
		content, err := json.Marshal(capabilities)
		if err != nil {
			logger.Error("failed to marshal capabilities", "error", err)
			os.Exit(1)
		}

		if _, err := fmt.Fprintln(os.Stdout, string(content)); err != nil {
			logger.Error("failed to print capabilities", "error", err)
			os.Exit(1)
		}

		logger.Info("capabilities sent")

		os.Exit(0)
	}

	configData := flag.String("config", "", "Plugin config.")
	flag.Parse()
	if configData == nil || *configData == "" {
		logger.Error("missing required flag --config")
		os.Exit(1)
	}

	conf := types.Config{}
	if err := json.Unmarshal([]byte(*configData), &conf); err != nil {
		logger.Error("failed to unmarshal config", "error", err)
		os.Exit(1)
	}
	logger.Debug("config data", "config", conf)

	if conf.ID == "" {
		logger.Error("plugin config has no ID")
		os.Exit(1)
	}

	separateContext := context.Background()
	checksumPlugin := plugin.NewPlugin(separateContext, logger, conf, os.Stdout)
	if err := checksumPlugin.RegisterHandlers(capabilities.GetHandlers()...); err != nil {
		logger.Error("failed to register handlers", "error", err)
		os.Exit(1)
	}

	logger.Info("starting up plugin", "plugin", conf.ID)

	if err := checksumPlugin.Start(context.Background()); err != nil {
		logger.Error("failed to start plugin", "error", err)
		os.Exit(1)
	}
}
