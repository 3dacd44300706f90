package manifest

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/MTLaboratory/MTSFV/digest"
)

// Format identifies a manifest file format.
type Format string

const (
	// FormatSFV is the classic "name crc32hex" listing with ';' comments.
	FormatSFV Format = "sfv"
	// FormatSum is the md5sum-style "hex  name" listing; the algorithm is
	// implied by the file extension.
	FormatSum Format = "sum"
	// FormatExtended is the "algorithm:hex  name" listing, allowing mixed
	// algorithms in one manifest.
	FormatExtended Format = "extended"
)

// sumAlgorithms maps manifest file extensions to the implied algorithm of
// md5sum-style listings.
var sumAlgorithms = map[string]string{
	".md5":    "md5",
	".sha1":   "sha1",
	".sha256": "sha256",
}

// DetectFormat determines the manifest format from the file extension.
func DetectFormat(path string) (Format, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".sfv":
		return FormatSFV, "crc32", nil
	case sumAlgorithms[ext] != "":
		return FormatSum, sumAlgorithms[ext], nil
	case ext == ".sum" || ext == ".digests":
		return FormatExtended, "", nil
	}
	return "", "", fmt.Errorf("cannot determine manifest format for %q", path)
}

// ParseFile parses r according to the format implied by path.
func ParseFile(path string, r io.Reader) (*Manifest, error) {
	format, algorithm, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	var m *Manifest
	switch format {
	case FormatSFV:
		m, err = ParseSFV(r)
	case FormatSum:
		m, err = ParseSum(algorithm, r)
	case FormatExtended:
		m, err = ParseExtended(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// ParseSFV parses a classic SFV listing: one "name crc32hex" pair per line,
// lines starting with ';' are comments. Names may contain spaces; the
// checksum is the last whitespace-separated token.
func ParseSFV(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	if err := eachLine(r, func(lineNo int, line string) error {
		if strings.HasPrefix(line, ";") {
			return nil
		}
		idx := strings.LastIndexAny(line, " \t")
		if idx < 0 {
			return fmt.Errorf("line %d: expected \"name checksum\"", lineNo)
		}
		name := strings.TrimSpace(line[:idx])
		sum := strings.TrimSpace(line[idx+1:])
		if name == "" || len(sum) != 8 {
			return fmt.Errorf("line %d: expected \"name checksum\" with an 8 character crc32", lineNo)
		}
		expected, err := digest.FromHex("crc32", sum)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, NewEntry(name, "crc32", expected))
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseSum parses an md5sum-style listing for the given algorithm: one
// "hex  name" pair per line, with an optional '*' binary marker before the
// name and '#' comment lines.
func ParseSum(algorithm string, r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	if err := eachLine(r, func(lineNo int, line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		sum, name, ok := strings.Cut(line, " ")
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		if !ok || name == "" {
			return fmt.Errorf("line %d: expected \"checksum  name\"", lineNo)
		}
		expected, err := digest.FromHex(algorithm, sum)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, NewEntry(name, algorithm, expected))
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseExtended parses the mixed-algorithm listing "algorithm:hex  name".
func ParseExtended(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	if err := eachLine(r, func(lineNo int, line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		sum, name, ok := strings.Cut(line, " ")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("line %d: expected \"algorithm:checksum  name\"", lineNo)
		}
		expected, err := digest.Parse(sum)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, NewEntry(name, expected.Algorithm(), expected))
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func eachLine(r io.Reader, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	return nil
}
