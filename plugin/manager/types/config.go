package types

import (
	"time"
)

// ConnectionType selects the transport between host and plugin.
type ConnectionType string

const (
	// Socket connects over a unix domain socket (preferred).
	Socket ConnectionType = "unix"
	// TCP connects over a local TCP port, for platforms without unix
	// sockets.
	TCP ConnectionType = "tcp"
)

// Config is handed to the plugin process at start through the --config
// flag. It is the host-supplied half of the load-time contract: the plugin
// never decides its own identity or transport.
type Config struct {
	// ID is the unique identifier of the plugin, derived from the plugin
	// file name.
	ID string `json:"id"`
	// Type of the connection, unix or tcp.
	Type ConnectionType `json:"type"`
	// IdleTimeout sets how long the plugin may sit without work before it
	// terminates itself to not hog resources indefinitely.
	IdleTimeout *time.Duration `json:"idleTimeout,omitempty"`
}
