package contracts

import "context"

// PluginBase is a capability shared by all plugins. Ping is used as a
// health check to see that a binary based plugin is up and running.
type PluginBase interface {
	// Ping makes sure the plugin is responsive.
	Ping(ctx context.Context) error
}

// EmptyBasePlugin can be embedded by in-process implementations to skip
// implementing Ping, which is only meaningful for external plugins.
type EmptyBasePlugin struct{}

func (*EmptyBasePlugin) Ping(_ context.Context) error {
	return nil
}
