package types

import (
	"io"
	"os/exec"

	"github.com/MTLaboratory/MTSFV/provider"
)

// Plugin is the handle for one discovered plugin executable, backed by the
// constructed Cmd. The Cmd is started lazily by a registry on first
// resolve; the registry owning the handle is responsible for tearing the
// process down after all provider instances built from it are released.
type Plugin struct {
	ID     string
	Path   string
	Config Config
	// Descriptors are the providers advertised during the capability probe.
	Descriptors []provider.Descriptor

	Cmd *exec.Cmd
	// Stderr pipe carries the plugin's log output, streamed into the host
	// logger.
	Stderr io.ReadCloser
	// Stdout pipe carries the location handshake: the plugin prints where
	// it listens once it is up.
	Stdout io.ReadCloser
}
