package container

// Endpoint locations of the v1 container plugin contract.
const (
	// DescriptorEndpoint serves static provider metadata.
	DescriptorEndpoint = "/container/descriptor"
	// EnumerateEndpoint lists the members of a container file.
	EnumerateEndpoint = "/container/enumerate"
	// MemberEndpoint streams the bytes of one member.
	MemberEndpoint = "/container/member"
)
