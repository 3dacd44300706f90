package engine

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MTLaboratory/MTSFV/digest"
	"github.com/MTLaboratory/MTSFV/manifest"
	"github.com/MTLaboratory/MTSFV/provider"
	"github.com/MTLaboratory/MTSFV/provider/crc32"
	"github.com/MTLaboratory/MTSFV/provider/md5"
	"github.com/MTLaboratory/MTSFV/provider/zipfile"
)

// testResolver is a plain in-process resolver; it stands in for the plugin
// manager.
type testResolver struct {
	checksums  map[string]provider.ChecksumProvider
	containers map[string]provider.ContainerProvider
}

func newTestResolver() *testResolver {
	return &testResolver{
		checksums: map[string]provider.ChecksumProvider{
			"crc32": crc32.New(),
			"md5":   md5.New(),
		},
		containers: map[string]provider.ContainerProvider{
			"zip": zipfile.New(),
		},
	}
}

func (r *testResolver) ChecksumProvider(_ context.Context, algorithm string) (provider.ChecksumProvider, error) {
	p, ok := r.checksums[algorithm]
	if !ok {
		return nil, fmt.Errorf("no checksum provider registered for algorithm %q", algorithm)
	}
	return p, nil
}

func (r *testResolver) ContainerProvider(_ context.Context, format string) (provider.ContainerProvider, error) {
	p, ok := r.containers[format]
	if !ok {
		return nil, fmt.Errorf("no container provider registered for format %q", format)
	}
	return p, nil
}

func mustHex(t *testing.T, algorithm, encoded string) digest.Digest {
	t.Helper()
	d, err := digest.FromHex(algorithm, encoded)
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeZip(t *testing.T, dir, name string, members map[string]string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for member, content := range members {
		w, err := zw.Create(member)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestMatchAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "123456789")

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("a.bin", "crc32", mustHex(t, "crc32", "cbf43926")),
		manifest.NewEntry("missing.bin", "crc32", mustHex(t, "crc32", "00000000")),
	}}

	e := New(newTestResolver(), WithBaseDir(dir))
	report, err := e.Run(context.Background(), m)
	require.NoError(t, err)

	require.Equal(t, 2, report.Len())
	assert.Equal(t, OutcomeMatch, report.Results()[0].Outcome)
	assert.Equal(t, "crc32:cbf43926", report.Results()[0].Actual.String())
	assert.Equal(t, OutcomeMissingFile, report.Results()[1].Outcome)
	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Count(OutcomeMatch))
	assert.Equal(t, 1, report.Count(OutcomeMissingFile))
}

func TestMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "123456789")

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("a.bin", "crc32", mustHex(t, "crc32", "deadbeef")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)

	result := report.Results()[0]
	assert.Equal(t, OutcomeMismatch, result.Outcome)
	// the freshly computed digest is still reported
	assert.Equal(t, "crc32:cbf43926", result.Actual.String())
}

func TestUnsupportedAlgorithm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "123456789")

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("a.bin", "xyz", mustHex(t, "xyz", "cbf43926")),
		manifest.NewEntry("a.bin", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)

	// the unresolvable entry fails alone, its neighbor still matches
	assert.Equal(t, OutcomeUnsupportedAlgorithm, report.Results()[0].Outcome)
	assert.Equal(t, OutcomeMatch, report.Results()[1].Outcome)
}

func TestContainerMemberMatch(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, dir, "archive.zip", map[string]string{"readme.txt": "123456789"})

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("archive.zip#readme.txt", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatch, report.Results()[0].Outcome)
}

func TestContainerCannotBeOpened(t *testing.T) {
	dir := t.TempDir()
	// no rar provider is registered, so the container cannot be opened
	writeFile(t, dir, "archive.rar", "not really an archive")

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("archive.rar#readme.txt", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissingFile, report.Results()[0].Outcome)
}

func TestContainerMemberMissing(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, dir, "archive.zip", map[string]string{"readme.txt": "123456789"})

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("archive.zip#nonexistent.txt", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissingEntry, report.Results()[0].Outcome)
}

func TestCorruptContainerIsMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "archive.zip", "this is not a zip file")

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("archive.zip#readme.txt", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissingFile, report.Results()[0].Outcome)
}

// countingContainer wraps a container provider and counts Enumerate calls.
type countingContainer struct {
	provider.ContainerProvider
	enumerations atomic.Int64
}

func (c *countingContainer) Enumerate(ctx context.Context, path string) ([]provider.Entry, error) {
	c.enumerations.Add(1)
	return c.ContainerProvider.Enumerate(ctx, path)
}

func TestEnumerationIsCachedPerContainer(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, dir, "archive.zip", map[string]string{
		"one.txt":   "123456789",
		"two.txt":   "123456789",
		"three.txt": "123456789",
	})

	counting := &countingContainer{ContainerProvider: zipfile.New()}
	resolver := newTestResolver()
	resolver.containers["zip"] = counting

	expected := mustHex(t, "crc32", "cbf43926")
	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("archive.zip#one.txt", "crc32", expected),
		manifest.NewEntry("archive.zip#two.txt", "crc32", expected),
		manifest.NewEntry("archive.zip#three.txt", "crc32", expected),
	}}

	report, err := New(resolver, WithBaseDir(dir)).Run(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, int64(1), counting.enumerations.Load())
}

func TestReportPreservesManifestOrder(t *testing.T) {
	dir := t.TempDir()
	expected := mustHex(t, "crc32", "cbf43926")

	var entries []manifest.Entry
	for i := 0; i < 64; i++ {
		name := fmt.Sprintf("file-%02d.bin", i)
		writeFile(t, dir, name, "123456789")
		entries = append(entries, manifest.NewEntry(name, "crc32", expected))
	}
	m := &manifest.Manifest{Entries: entries}

	e := New(newTestResolver(), WithBaseDir(dir), WithWorkers(8))
	first, err := e.Run(context.Background(), m)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), m)
	require.NoError(t, err)

	require.Equal(t, len(entries), first.Len())
	for i, result := range first.Results() {
		assert.Equal(t, entries[i].Path, result.Entry.Path)
		assert.Equal(t, OutcomeMatch, result.Outcome)
	}
	// deterministic manifests verify identically across runs
	for i := range first.Results() {
		assert.Equal(t, first.Results()[i].Outcome, second.Results()[i].Outcome)
		assert.True(t, first.Results()[i].Actual.Equal(second.Results()[i].Actual))
	}
}

func TestProgressIsDeliveredInManifestOrder(t *testing.T) {
	dir := t.TempDir()
	expected := mustHex(t, "crc32", "cbf43926")

	var entries []manifest.Entry
	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("file-%02d.bin", i)
		writeFile(t, dir, name, "123456789")
		entries = append(entries, manifest.NewEntry(name, "crc32", expected))
	}
	m := &manifest.Manifest{Entries: entries}

	var seen []string
	e := New(newTestResolver(),
		WithBaseDir(dir),
		WithWorkers(8),
		WithProgress(func(r Result) {
			seen = append(seen, r.Entry.Path)
		}),
	)
	_, err := e.Run(context.Background(), m)
	require.NoError(t, err)

	require.Len(t, seen, len(entries))
	for i, entry := range entries {
		assert.Equal(t, entry.Path, seen[i])
	}
}

func TestCancelledRunSettlesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "123456789")

	var entries []manifest.Entry
	for i := 0; i < 16; i++ {
		entries = append(entries, manifest.NewEntry("a.bin", "crc32", mustHex(t, "crc32", "cbf43926")))
	}
	m := &manifest.Manifest{Entries: entries}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(newTestResolver(), WithBaseDir(dir)).Run(ctx, m)
	require.NoError(t, err)

	// every entry settles, none is torn mid-write
	require.Equal(t, len(entries), report.Len())
	assert.Equal(t, len(entries), report.Count(OutcomeCancelled))
}

func TestMidRunCancellationKeepsCompletedResults(t *testing.T) {
	dir := t.TempDir()
	expected := mustHex(t, "crc32", "cbf43926")

	var entries []manifest.Entry
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("file-%d.bin", i)
		writeFile(t, dir, name, "123456789")
		entries = append(entries, manifest.NewEntry(name, "crc32", expected))
	}
	m := &manifest.Manifest{Entries: entries}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a single worker processes entries sequentially, so cancelling from the
	// progress callback draws a sharp line between completed and unstarted
	const completed = 3
	var delivered int
	e := New(newTestResolver(),
		WithBaseDir(dir),
		WithWorkers(1),
		WithProgress(func(Result) {
			delivered++
			if delivered == completed {
				cancel()
			}
		}),
	)
	report, err := e.Run(ctx, m)
	require.NoError(t, err)

	require.Equal(t, len(entries), report.Len())
	for i := 0; i < completed; i++ {
		assert.Equal(t, OutcomeMatch, report.Results()[i].Outcome)
	}
	assert.Equal(t, completed, report.Count(OutcomeMatch))
	assert.Equal(t, len(entries)-completed, report.Count(OutcomeCancelled))
}

// flakyContainer serves a member whose reader dies after the first byte.
type flakyContainer struct{}

func (f *flakyContainer) Descriptor() provider.Descriptor {
	return provider.Descriptor{ID: "flaky", Name: "Flaky", Capabilities: provider.CapContainer}
}

func (f *flakyContainer) Enumerate(_ context.Context, _ string) ([]provider.Entry, error) {
	return []provider.Entry{{Name: "member.bin"}}, nil
}

func (f *flakyContainer) OpenMember(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return io.NopCloser(&failingReader{}), nil
}

type failingReader struct {
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read && len(p) > 0 {
		r.read = true
		p[0] = 'x'
		return 1, nil
	}
	return 0, errors.New("device error")
}

func TestFailingMemberReadIsReadError(t *testing.T) {
	resolver := newTestResolver()
	resolver.containers["flaky"] = &flakyContainer{}

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("data.flaky#member.bin", "crc32", mustHex(t, "crc32", "cbf43926")),
	}}

	report, err := New(resolver).Run(context.Background(), m)
	require.NoError(t, err)

	result := report.Results()[0]
	assert.Equal(t, OutcomeReadError, result.Outcome)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "read failed")
	assert.True(t, result.Actual.IsZero())
}

func TestChunkBoundaryIndependence(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("123456789", 1000)
	writeFile(t, dir, "big.bin", content)

	m := &manifest.Manifest{Entries: []manifest.Entry{
		manifest.NewEntry("big.bin", "crc32", digest.Digest{}),
	}}

	var digests []string
	for _, chunkSize := range []int{1, 7, 512, len(content), DefaultChunkSize} {
		report, err := New(newTestResolver(), WithBaseDir(dir), WithChunkSize(chunkSize)).Run(context.Background(), m)
		require.NoError(t, err)
		digests = append(digests, report.Results()[0].Actual.String())
	}
	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}
}

func TestEmptyManifest(t *testing.T) {
	report, err := New(newTestResolver()).Run(context.Background(), &manifest.Manifest{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Len())
	assert.True(t, report.OK())
}
