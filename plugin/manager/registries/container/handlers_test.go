package container

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/MTLaboratory/MTSFV/plugin/manager/contracts/container/v1"
	"github.com/MTLaboratory/MTSFV/plugin/manager/endpoints"
	mtypes "github.com/MTLaboratory/MTSFV/plugin/manager/types"
	"github.com/MTLaboratory/MTSFV/provider"
	"github.com/MTLaboratory/MTSFV/provider/zipfile"
)

func startHandlerServer(t *testing.T, b *endpoints.Builder) *RemotePlugin {
	t.Helper()

	mux := http.NewServeMux()
	for _, h := range b.GetHandlers() {
		mux.HandleFunc(h.Location, h.Handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	config := mtypes.Config{ID: "handler-test", Type: mtypes.TCP}
	return NewContainerPlugin(server.Client(), "handler-test", "unused", config, server.URL)
}

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestEnumerateAndOpenMemberOnWire(t *testing.T) {
	b := endpoints.New()
	require.NoError(t, RegisterContainerProviders(b, zipfile.New()))
	plugin := startHandlerServer(t, b)
	ctx := context.Background()

	path := writeZip(t, map[string]string{
		"readme.txt":   "hello",
		"sub/data.bin": "payload",
	})

	response, err := plugin.Enumerate(ctx, &v1.EnumerateRequest{Format: "zip", Path: path})
	require.NoError(t, err)
	require.Len(t, response.Entries, 2)

	rc, err := plugin.OpenMember(ctx, "zip", path, "readme.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(content))
}

func TestOpenMissingMemberOnWire(t *testing.T) {
	b := endpoints.New()
	require.NoError(t, RegisterContainerProviders(b, zipfile.New()))
	plugin := startHandlerServer(t, b)

	path := writeZip(t, map[string]string{"readme.txt": "hello"})

	_, err := plugin.OpenMember(context.Background(), "zip", path, "missing.txt")
	require.ErrorIs(t, err, provider.ErrEntryNotFound)
}

func TestUnknownFormatOnWire(t *testing.T) {
	b := endpoints.New()
	require.NoError(t, RegisterContainerProviders(b, zipfile.New()))
	plugin := startHandlerServer(t, b)

	_, err := plugin.Enumerate(context.Background(), &v1.EnumerateRequest{Format: "rar", Path: "whatever"})
	require.Error(t, err)
	_, err = plugin.Descriptor(context.Background(), "rar")
	require.Error(t, err)
}

func TestConverterDrivesTheWireContract(t *testing.T) {
	b := endpoints.New()
	require.NoError(t, RegisterContainerProviders(b, zipfile.New()))
	plugin := startHandlerServer(t, b)
	ctx := context.Background()

	converted := &externalProviderConverter{
		externalPlugin: plugin,
		descriptor:     zipfile.New().Descriptor(),
	}

	path := writeZip(t, map[string]string{"readme.txt": "hello"})

	entries, err := converted.Enumerate(ctx, path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "readme.txt", entries[0].Name)
	assert.Equal(t, int64(5), entries[0].Size)

	rc, err := converted.OpenMember(ctx, path, "readme.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(content))
}
