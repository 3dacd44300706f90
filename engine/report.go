package engine

import (
	"github.com/MTLaboratory/MTSFV/digest"
	"github.com/MTLaboratory/MTSFV/manifest"
)

// Outcome classifies what happened to one manifest entry.
type Outcome uint8

const (
	// OutcomeMatch means the computed digest equals the expected one.
	OutcomeMatch Outcome = iota
	// OutcomeMismatch means the file was read fully but hashes differently.
	OutcomeMismatch
	// OutcomeMissingFile means the file or its container could not be opened.
	OutcomeMissingFile
	// OutcomeMissingEntry means the container opened but the member is absent.
	OutcomeMissingEntry
	// OutcomeReadError means I/O failed after the entry was opened.
	OutcomeReadError
	// OutcomeUnsupportedAlgorithm means no provider resolves the algorithm.
	OutcomeUnsupportedAlgorithm
	// OutcomeCancelled means the run was cancelled before the entry settled.
	OutcomeCancelled

	outcomeCount = int(OutcomeCancelled) + 1
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeMissingFile:
		return "missing file"
	case OutcomeMissingEntry:
		return "missing entry"
	case OutcomeReadError:
		return "read error"
	case OutcomeUnsupportedAlgorithm:
		return "unsupported algorithm"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the settled verdict for one manifest entry. It is created
// exactly once by the engine and immutable afterwards.
type Result struct {
	// Entry is the manifest expectation this result answers.
	Entry manifest.Entry
	// Outcome classifies the verdict.
	Outcome Outcome
	// Actual is the computed digest; zero when the entry never hashed to
	// completion.
	Actual digest.Digest
	// Err carries the underlying failure for the non-match outcomes.
	Err error
}

// Report is the sealed output of one verification run. Results appear in
// manifest order regardless of completion order.
type Report struct {
	results []Result
	counts  [outcomeCount]int
}

func newReport(results []Result) *Report {
	r := &Report{results: results}
	for _, result := range results {
		r.counts[result.Outcome]++
	}
	return r
}

// Results returns the settled results in manifest order.
func (r *Report) Results() []Result {
	return r.results
}

// Len returns the number of results.
func (r *Report) Len() int {
	return len(r.results)
}

// Count returns how many entries settled with the given outcome.
func (r *Report) Count(o Outcome) int {
	if int(o) >= outcomeCount {
		return 0
	}
	return r.counts[o]
}

// OK reports whether every entry matched.
func (r *Report) OK() bool {
	return r.counts[OutcomeMatch] == len(r.results)
}
