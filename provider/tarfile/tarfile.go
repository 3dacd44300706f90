// Package tarfile provides the built-in read-only container provider for
// tar archives, including gzip compressed ones. The archive is indexed as a
// filesystem; members are exposed for checksumming without extraction.
package tarfile

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nlepage/go-tarfs"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the container format identifier.
const ID = "tar"

// New returns the tar container provider.
func New() provider.ContainerProvider {
	return &containerProvider{}
}

type containerProvider struct{}

func (p *containerProvider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		ID:           ID,
		Name:         "TAR archive (optionally gzip compressed)",
		Capabilities: provider.CapContainer,
	}
}

func (p *containerProvider) Enumerate(_ context.Context, path string) ([]provider.Entry, error) {
	tfs, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = closer()
	}()

	var entries []provider.Entry
	if err := fs.WalkDir(tfs, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, provider.Entry{Name: name, Size: info.Size()})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to enumerate tar container %s: %w", path, err)
	}
	return entries, nil
}

func (p *containerProvider) OpenMember(_ context.Context, path, name string) (io.ReadCloser, error) {
	tfs, closer, err := open(path)
	if err != nil {
		return nil, errors.Join(provider.ErrEntryNotFound, err)
	}
	f, err := tfs.Open(name)
	if err != nil {
		cerr := closer()
		return nil, errors.Join(fmt.Errorf("member %q in %s: %w", name, path, provider.ErrEntryNotFound), cerr)
	}
	return &memberReader{File: f, closer: closer}, nil
}

// open indexes the archive at path. Gzip compression is detected from the
// magic bytes, the same sniff the engine-facing callers rely on for
// .tar.gz/.tgz containers.
func open(path string) (fs.FS, func() error, error) {
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tar container %s: %w", path, err)
	}
	closer := src.Close

	var header [2]byte
	n, err := io.ReadFull(src, header[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		cerr := src.Close()
		return nil, nil, errors.Join(fmt.Errorf("failed to read container header: %w", err), cerr)
	}

	var reader io.Reader = io.MultiReader(bytes.NewReader(header[:n]), src)

	const gzipMagic1, gzipMagic2 = 0x1F, 0x8B
	if n == 2 && header[0] == gzipMagic1 && header[1] == gzipMagic2 {
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			cerr := src.Close()
			return nil, nil, errors.Join(fmt.Errorf("failed to initialize gzip reader: %w", err), cerr)
		}
		closer = func() error {
			return errors.Join(gzReader.Close(), src.Close())
		}
		reader = gzReader
	}

	tfs, err := tarfs.New(reader)
	if err != nil {
		cerr := closer()
		return nil, nil, errors.Join(fmt.Errorf("failed to index tar container %s: %w", path, err), cerr)
	}
	return tfs, closer, nil
}

type memberReader struct {
	fs.File
	closer func() error
}

func (m *memberReader) Close() error {
	return errors.Join(m.File.Close(), m.closer())
}
