package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// Config is the optional YAML configuration file. Flags given on the command
// line win over file values.
type Config struct {
	// Plugins is the plugin directory.
	Plugins string `json:"plugins,omitempty"`
	// Jobs bounds the verification worker pool.
	Jobs int `json:"jobs,omitempty"`
	// ChunkSize is the streaming read size in bytes.
	ChunkSize int `json:"chunkSize,omitempty"`
}

// loadConfig reads the configuration file named by --config, if any.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	return config, nil
}

// pluginDirectory resolves the plugin directory from flag and config file,
// expanding environment references like $HOME.
func pluginDirectory(cmd *cobra.Command, config *Config) (string, error) {
	dir, err := cmd.Flags().GetString(PluginDirectoryFlag)
	if err != nil {
		return "", err
	}
	if !cmd.Flags().Changed(PluginDirectoryFlag) && config.Plugins != "" {
		dir = config.Plugins
	}
	return os.ExpandEnv(dir), nil
}
