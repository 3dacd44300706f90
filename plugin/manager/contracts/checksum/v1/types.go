package v1

// NewStreamResponse carries the plugin-generated identifier of a freshly
// allocated checksum stream. All subsequent stream calls reference it.
type NewStreamResponse struct {
	Stream string `json:"stream"`
}

// FinishStreamResponse carries the finalized digest of a stream as
// lower-case hex. The stream identifier is invalid afterwards.
type FinishStreamResponse struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}
