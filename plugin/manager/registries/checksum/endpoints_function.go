package checksum

// Endpoint locations of the v1 checksum plugin contract.
const (
	// DescriptorEndpoint serves static provider metadata.
	DescriptorEndpoint = "/checksum/descriptor"
	// NewStreamEndpoint allocates a new checksum stream.
	NewStreamEndpoint = "/checksum/streams/new"
	// WriteStreamEndpoint feeds a chunk into a stream.
	WriteStreamEndpoint = "/checksum/streams/write"
	// FinishStreamEndpoint finalizes a stream into a digest.
	FinishStreamEndpoint = "/checksum/streams/finish"
	// AbortStreamEndpoint releases a stream without a digest.
	AbortStreamEndpoint = "/checksum/streams/abort"
)
