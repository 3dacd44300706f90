// Package v1 contains the wire contract and types for checksum plugins.
//
// The contract mirrors the provider.ChecksumProvider lifecycle across the
// process boundary: a stream is allocated with NewStream, fed with
// WriteStream and released through exactly one FinishStream or AbortStream.
package v1
