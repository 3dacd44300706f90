// Package container implements the host-side registry for container format
// plugins together with the handler set a plugin binary mounts to serve the
// v1 container contract.
package container
