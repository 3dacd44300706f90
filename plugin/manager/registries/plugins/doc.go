// Package plugins contains the shared low-level helpers for talking to
// plugin processes: the HTTP call wrapper, the startup location handshake,
// the wire error type and the stderr log streamer.
package plugins
