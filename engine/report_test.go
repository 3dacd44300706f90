package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MTLaboratory/MTSFV/manifest"
)

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "match", OutcomeMatch.String())
	assert.Equal(t, "mismatch", OutcomeMismatch.String())
	assert.Equal(t, "missing file", OutcomeMissingFile.String())
	assert.Equal(t, "missing entry", OutcomeMissingEntry.String())
	assert.Equal(t, "read error", OutcomeReadError.String())
	assert.Equal(t, "unsupported algorithm", OutcomeUnsupportedAlgorithm.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "unknown", Outcome(200).String())
}

func TestReportCounts(t *testing.T) {
	report := newReport([]Result{
		{Entry: manifest.Entry{Path: "a"}, Outcome: OutcomeMatch},
		{Entry: manifest.Entry{Path: "b"}, Outcome: OutcomeMatch},
		{Entry: manifest.Entry{Path: "c"}, Outcome: OutcomeMismatch},
	})

	assert.Equal(t, 3, report.Len())
	assert.Equal(t, 2, report.Count(OutcomeMatch))
	assert.Equal(t, 1, report.Count(OutcomeMismatch))
	assert.Equal(t, 0, report.Count(OutcomeReadError))
	assert.Equal(t, 0, report.Count(Outcome(200)))
	assert.False(t, report.OK())
}

func TestEmptyReportIsOK(t *testing.T) {
	assert.True(t, newReport(nil).OK())
}
