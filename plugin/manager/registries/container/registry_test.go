package container

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MTLaboratory/MTSFV/provider"
	"github.com/MTLaboratory/MTSFV/provider/tarfile"
	"github.com/MTLaboratory/MTSFV/provider/zipfile"
)

func TestRegisterInternalProvider(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(ctx)

	p := zipfile.New()
	require.NoError(t, registry.RegisterInternalProvider(p))

	resolved, err := registry.GetProvider(ctx, "zip")
	require.NoError(t, err)
	assert.Equal(t, p, resolved)

	resolved, err = registry.GetProvider(ctx, "ZIP")
	require.NoError(t, err)
	assert.Equal(t, p, resolved)
}

func TestUnknownFormat(t *testing.T) {
	registry := NewRegistry(context.Background())
	_, err := registry.GetProvider(context.Background(), "rar")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormats(t *testing.T) {
	registry := NewRegistry(context.Background())
	require.NoError(t, registry.RegisterInternalProvider(zipfile.New()))
	require.NoError(t, registry.RegisterInternalProvider(tarfile.New()))
	assert.ElementsMatch(t, []string{"zip", "tar"}, registry.Formats())
}

func TestRejectsNonContainerProvider(t *testing.T) {
	registry := NewRegistry(context.Background())
	require.Error(t, registry.RegisterInternalProvider(&notAContainer{}))
}

type notAContainer struct{}

func (n *notAContainer) Descriptor() provider.Descriptor {
	return provider.Descriptor{ID: "zip", Name: "Zip"}
}

func (n *notAContainer) Enumerate(_ context.Context, _ string) ([]provider.Entry, error) {
	return nil, nil
}

func (n *notAContainer) OpenMember(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
