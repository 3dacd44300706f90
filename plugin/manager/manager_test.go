package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakePlugin drops an extensionless executable that answers the
// capabilities probe with the given JSON. Good enough for load-time tests;
// the process is never asked to actually serve.
func writeFakePlugin(t *testing.T, dir, name, capabilities string) {
	t.Helper()

	script := "#!/bin/sh\nif [ \"$1\" = \"capabilities\" ]; then\n  echo '" + capabilities + "'\n  exit 0\nfi\nexit 0\n"
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func TestRegisterPluginsDispatchesByCapability(t *testing.T) {
	dir := t.TempDir()
	writeFakePlugin(t, dir, "test-plugin-hashes",
		`{"interfaceVersion":"1.0.0","descriptors":[{"id":"crc32","name":"CRC32","digestSize":4,"capabilities":1}]}`)
	writeFakePlugin(t, dir, "test-plugin-archives",
		`{"interfaceVersion":"1.0.0","descriptors":[{"id":"zip","name":"Zip","capabilities":4}]}`)

	pm := NewPluginManager(context.Background())
	require.NoError(t, pm.RegisterPlugins(context.Background(), dir))

	assert.Equal(t, []string{"crc32"}, pm.ChecksumRegistry.Algorithms())
	assert.Equal(t, []string{"zip"}, pm.ContainerRegistry.Formats())
}

func TestRegisterPluginsMinimalAdvertisement(t *testing.T) {
	dir := t.TempDir()
	writeFakePlugin(t, dir, "test-plugin-minimal",
		`{"interfaceVersion":"1.0.0","algorithms":["crc32","md5"]}`)

	pm := NewPluginManager(context.Background())
	require.NoError(t, pm.RegisterPlugins(context.Background(), dir))

	assert.ElementsMatch(t, []string{"crc32", "md5"}, pm.ChecksumRegistry.Algorithms())
	assert.Empty(t, pm.ContainerRegistry.Formats())
}

func TestRegisterPluginsSkipsIncompatibleMajor(t *testing.T) {
	dir := t.TempDir()
	writeFakePlugin(t, dir, "test-plugin-future",
		`{"interfaceVersion":"2.0.0","algorithms":["crc32"]}`)
	writeFakePlugin(t, dir, "test-plugin-current",
		`{"interfaceVersion":"1.2.3","algorithms":["md5"]}`)

	pm := NewPluginManager(context.Background())
	require.NoError(t, pm.RegisterPlugins(context.Background(), dir))

	// the incompatible plugin is skipped, not fatal
	assert.Equal(t, []string{"md5"}, pm.ChecksumRegistry.Algorithms())
}

func TestRegisterPluginsRejectsMixedCapabilities(t *testing.T) {
	dir := t.TempDir()
	writeFakePlugin(t, dir, "test-plugin-mixed",
		`{"interfaceVersion":"1.0.0","descriptors":[{"id":"crc32","name":"CRC32","digestSize":4,"capabilities":1},{"id":"zip","name":"Zip","capabilities":4}]}`)

	pm := NewPluginManager(context.Background())
	err := pm.RegisterPlugins(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "separate binaries")
}

func TestRegisterPluginsRejectsGarbageCapabilities(t *testing.T) {
	dir := t.TempDir()
	writeFakePlugin(t, dir, "test-plugin-garbage", `not json at all`)

	pm := NewPluginManager(context.Background())
	require.Error(t, pm.RegisterPlugins(context.Background(), dir))
}

func TestRegisterPluginsIgnoresFilesWithExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))

	pm := NewPluginManager(context.Background())
	require.ErrorIs(t, pm.RegisterPlugins(context.Background(), dir), ErrNoPluginsFound)
}

func TestRegisterPluginsEmptyDir(t *testing.T) {
	pm := NewPluginManager(context.Background())
	require.ErrorIs(t, pm.RegisterPlugins(context.Background(), t.TempDir()), ErrNoPluginsFound)
}

func TestInterfaceCompatible(t *testing.T) {
	compatible, err := interfaceCompatible("1.0.0")
	require.NoError(t, err)
	assert.True(t, compatible)

	compatible, err = interfaceCompatible("1.9.7")
	require.NoError(t, err)
	assert.True(t, compatible)

	compatible, err = interfaceCompatible("2.0.0")
	require.NoError(t, err)
	assert.False(t, compatible)

	_, err = interfaceCompatible("one point oh")
	require.Error(t, err)
}
