// Package engine verifies checksum manifests against the filesystem. It
// drives providers resolved through an injectable resolver, fans entries out
// over a bounded worker pool and produces a report in manifest order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"github.com/MTLaboratory/MTSFV/manifest"
	"github.com/MTLaboratory/MTSFV/provider"
)

// DefaultChunkSize is the read granularity during streaming. Cancellation is
// observed between chunks.
const DefaultChunkSize = 64 * 1024

// Resolver looks up providers by identifier. Both the plugin manager and
// plain in-process registries satisfy it; tests inject fakes.
type Resolver interface {
	// ChecksumProvider resolves a checksum algorithm identifier.
	ChecksumProvider(ctx context.Context, algorithm string) (provider.ChecksumProvider, error)
	// ContainerProvider resolves a container format identifier.
	ContainerProvider(ctx context.Context, format string) (provider.ContainerProvider, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the worker pool. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithChunkSize sets the streaming read size.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithBaseDir resolves relative manifest paths against dir instead of the
// process working directory.
func WithBaseDir(dir string) Option {
	return func(e *Engine) {
		e.baseDir = dir
	}
}

// WithProgress subscribes a callback invoked once per settled result, in
// manifest order. The callback runs on worker goroutines and must not block
// for long.
func WithProgress(fn func(Result)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// Engine verifies manifests. An Engine is safe for concurrent use; each Run
// keeps its own state.
type Engine struct {
	resolver  Resolver
	workers   int
	chunkSize int
	baseDir   string
	progress  func(Result)
}

// New constructs an Engine around a provider resolver.
func New(resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		workers:   runtime.GOMAXPROCS(0),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run verifies every entry of the manifest and returns the sealed report.
// Entries are processed concurrently but the report preserves manifest
// order. Cancellation is cooperative: in-flight entries finish their current
// chunk, unstarted ones settle as cancelled, and the report contains every
// result produced so far.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest) (*Report, error) {
	if m == nil || m.Len() == 0 {
		return newReport(nil), nil
	}

	results := make([]Result, m.Len())
	enumerations := newEnumerationCache()
	notify := newOrderedNotifier(m.Len(), e.progress)

	g := &errgroup.Group{}
	g.SetLimit(e.workers)
	for i := range m.Entries {
		g.Go(func() error {
			results[i] = e.verifyEntry(ctx, m.Entries[i], enumerations)
			notify.settle(i, results)
			return nil
		})
	}
	// workers never return errors; all failures settle as outcomes
	_ = g.Wait()

	return newReport(results), nil
}

// verifyEntry walks one entry through resolve, stream and compare. It never
// returns an error: every failure mode is a distinct outcome and no entry's
// verdict leaks into another's.
func (e *Engine) verifyEntry(ctx context.Context, entry manifest.Entry, enumerations *enumerationCache) Result {
	result := Result{Entry: entry}

	if err := ctx.Err(); err != nil {
		result.Outcome = OutcomeCancelled
		result.Err = err
		return result
	}

	checksum, err := e.resolver.ChecksumProvider(ctx, entry.Algorithm)
	if err != nil {
		result.Outcome = OutcomeUnsupportedAlgorithm
		result.Err = err
		return result
	}

	reader, outcome, err := e.open(ctx, entry, enumerations)
	if err != nil {
		result.Outcome = outcome
		result.Err = err
		return result
	}
	defer func() {
		_ = reader.Close()
	}()

	stream, err := checksum.Begin(ctx)
	if err != nil {
		result.Outcome = OutcomeReadError
		result.Err = fmt.Errorf("failed to begin checksum stream: %w", err)
		return result
	}

	outcome, err = e.stream(ctx, stream, reader)
	if err != nil {
		// cleanup errors during abort are logged, never fatal
		if aerr := stream.Abort(ctx); aerr != nil {
			slogcontext.FromCtx(ctx).WarnContext(ctx, "failed to abort checksum stream",
				"path", entry.DisplayPath(), "error", aerr)
		}
		result.Outcome = outcome
		result.Err = err
		return result
	}

	actual, err := stream.Finish(ctx)
	if err != nil {
		result.Outcome = OutcomeReadError
		result.Err = fmt.Errorf("failed to finish checksum stream: %w", err)
		return result
	}

	result.Actual = actual
	if actual.Equal(entry.Expected) {
		result.Outcome = OutcomeMatch
	} else {
		result.Outcome = OutcomeMismatch
		slogcontext.FromCtx(ctx).DebugContext(ctx, "digest mismatch",
			"path", entry.DisplayPath(), "expected", entry.Expected.String(), "actual", actual.String())
	}
	return result
}

// stream feeds the reader into the provider stream chunk by chunk, checking
// for cancellation between chunks. The outcome is meaningful only when an
// error is returned.
func (e *Engine) stream(ctx context.Context, stream provider.Stream, reader io.Reader) (Outcome, error) {
	buf := make([]byte, e.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return OutcomeCancelled, err
		}

		n, err := reader.Read(buf)
		if n > 0 {
			if uerr := stream.Update(ctx, buf[:n]); uerr != nil {
				return OutcomeReadError, fmt.Errorf("provider rejected chunk: %w", uerr)
			}
		}
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		if err != nil {
			return OutcomeReadError, fmt.Errorf("read failed: %w", err)
		}
	}
}

// open yields the byte stream for an entry, either a plain file or a
// container member. On failure the returned outcome distinguishes a
// container or file that cannot be opened from a member that is absent.
func (e *Engine) open(ctx context.Context, entry manifest.Entry, enumerations *enumerationCache) (io.ReadCloser, Outcome, error) {
	path := entry.Path
	if e.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(e.baseDir, path)
	}

	if !entry.InContainer() {
		f, err := os.Open(path)
		if err != nil {
			return nil, OutcomeMissingFile, fmt.Errorf("cannot open %s: %w", entry.Path, err)
		}
		return f, 0, nil
	}

	format := formatForPath(entry.Path)
	container, err := e.resolver.ContainerProvider(ctx, format)
	if err != nil {
		// no provider for the format means the container cannot be opened
		return nil, OutcomeMissingFile, fmt.Errorf("cannot open container %s: %w", entry.Path, err)
	}

	members, err := enumerations.members(ctx, container, path)
	if err != nil {
		return nil, OutcomeMissingFile, fmt.Errorf("cannot enumerate container %s: %w", entry.Path, err)
	}
	if _, ok := members[entry.Member]; !ok {
		return nil, OutcomeMissingEntry, fmt.Errorf("%w: %s in %s", provider.ErrEntryNotFound, entry.Member, entry.Path)
	}

	rc, err := container.OpenMember(ctx, path, entry.Member)
	if err != nil {
		if errors.Is(err, provider.ErrEntryNotFound) {
			return nil, OutcomeMissingEntry, err
		}
		return nil, OutcomeReadError, fmt.Errorf("cannot open member %s of %s: %w", entry.Member, entry.Path, err)
	}
	return rc, 0, nil
}

// formatForPath derives the container format identifier from the file
// extension.
func formatForPath(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar"
	}
	return strings.TrimPrefix(filepath.Ext(lower), ".")
}

// enumerationCache computes each container's member listing at most once per
// run, shared across all entries referencing the same container.
type enumerationCache struct {
	mu         sync.Mutex
	containers map[string]*cachedEnumeration
}

type cachedEnumeration struct {
	once    sync.Once
	members map[string]struct{}
	err     error
}

func newEnumerationCache() *enumerationCache {
	return &enumerationCache{containers: make(map[string]*cachedEnumeration)}
}

func (c *enumerationCache) members(ctx context.Context, p provider.ContainerProvider, path string) (map[string]struct{}, error) {
	c.mu.Lock()
	cached, ok := c.containers[path]
	if !ok {
		cached = &cachedEnumeration{}
		c.containers[path] = cached
	}
	c.mu.Unlock()

	cached.once.Do(func() {
		entries, err := p.Enumerate(ctx, path)
		if err != nil {
			cached.err = err
			return
		}
		cached.members = make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			cached.members[entry.Name] = struct{}{}
		}
	})
	return cached.members, cached.err
}

// orderedNotifier delivers progress callbacks in manifest order even though
// results settle in completion order.
type orderedNotifier struct {
	mu       sync.Mutex
	settled  []bool
	cursor   int
	callback func(Result)
}

func newOrderedNotifier(n int, callback func(Result)) *orderedNotifier {
	return &orderedNotifier{
		settled:  make([]bool, n),
		callback: callback,
	}
}

func (o *orderedNotifier) settle(i int, results []Result) {
	if o.callback == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled[i] = true
	for o.cursor < len(o.settled) && o.settled[o.cursor] {
		o.callback(results[o.cursor])
		o.cursor++
	}
}
