// Package manifest defines the expectation records consumed by the
// verification engine and parsers for the common checksum listing formats
// (classic SFV, md5sum-style listings and extended algorithm:hex listings).
package manifest

import (
	"strings"

	"github.com/MTLaboratory/MTSFV/digest"
)

// MemberSeparator splits a container path from a member name in an entry
// path, e.g. "archive.zip#readme.txt".
const MemberSeparator = "#"

// Entry is one expectation: a path, the algorithm to use and the expected
// digest. Entries are produced by parsing and are read-only to the engine.
type Entry struct {
	// Path is the file to verify, relative to the manifest location unless
	// absolute. For container members this is the container file.
	Path string
	// Member is the member name inside the container, empty for plain files.
	Member string
	// Algorithm is the lower-case identifier of the checksum algorithm.
	Algorithm string
	// Expected is the digest the file must hash to.
	Expected digest.Digest
}

// NewEntry builds an Entry from a raw manifest path, splitting off a
// container member name if present.
func NewEntry(rawPath, algorithm string, expected digest.Digest) Entry {
	path, member, _ := strings.Cut(rawPath, MemberSeparator)
	return Entry{
		Path:      path,
		Member:    member,
		Algorithm: strings.ToLower(algorithm),
		Expected:  expected,
	}
}

// InContainer reports whether the entry denotes a container member.
func (e Entry) InContainer() bool {
	return e.Member != ""
}

// DisplayPath renders the path as it appeared in the manifest.
func (e Entry) DisplayPath() string {
	if e.InContainer() {
		return e.Path + MemberSeparator + e.Member
	}
	return e.Path
}

// Manifest is an ordered list of entries. Order is significant: the
// verification report preserves it.
type Manifest struct {
	// Path is the location the manifest was read from, if any.
	Path string
	// Entries in file order.
	Entries []Entry
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}
