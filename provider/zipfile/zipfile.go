// Package zipfile provides the built-in read-only container provider for
// zip archives. Members are exposed for checksumming without extracting
// the archive.
package zipfile

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MTLaboratory/MTSFV/provider"
)

// ID is the container format identifier.
const ID = "zip"

// New returns the zip container provider.
func New() provider.ContainerProvider {
	return &containerProvider{}
}

type containerProvider struct{}

func (p *containerProvider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		ID:           ID,
		Name:         "ZIP archive",
		Capabilities: provider.CapContainer,
	}
}

func (p *containerProvider) Enumerate(_ context.Context, path string) ([]provider.Entry, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip container %s: %w", path, err)
	}
	defer func() {
		_ = r.Close()
	}()

	entries := make([]provider.Entry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, provider.Entry{
			Name: f.Name,
			Size: int64(f.UncompressedSize64), //nolint:gosec // sizes beyond int64 do not occur in zip
		})
	}
	return entries, nil
}

func (p *containerProvider) OpenMember(_ context.Context, path, name string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Join(provider.ErrEntryNotFound, err)
	}
	for _, f := range r.File {
		if f.Name != name || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = r.Close()
			return nil, errors.Join(provider.ErrEntryNotFound, err)
		}
		return &memberReader{ReadCloser: rc, container: r}, nil
	}
	_ = r.Close()
	return nil, fmt.Errorf("member %q in %s: %w", name, path, provider.ErrEntryNotFound)
}

// memberReader keeps the containing archive open until the member stream is
// closed.
type memberReader struct {
	io.ReadCloser
	container *zip.ReadCloser
}

func (m *memberReader) Close() error {
	return errors.Join(m.ReadCloser.Close(), m.container.Close())
}
