package v1

import (
	"github.com/MTLaboratory/MTSFV/provider"
)

// EnumerateRequest names the container file to enumerate and the format
// that should handle it. One plugin process can serve several formats.
type EnumerateRequest struct {
	Format string `json:"format"`
	Path   string `json:"path"`
}

// EnumerateResponse lists the members of a container in archive order.
type EnumerateResponse struct {
	Entries []provider.Entry `json:"entries"`
}
