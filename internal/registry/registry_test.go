package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
	"github.com/DavidCohen17/ImpalaToGo/internal/executor"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/localfs"
)

func localAdapterFactory() AdapterFactory {
	return func(d descriptor.Descriptor) (remotefs.Adapter, error) {
		return localfs.New(), nil
	}
}

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	root := t.TempDir()
	c := New(localAdapterFactory(), logging.Noop())
	c.Init()
	require.NoError(t, c.ConfigureLocalStorage(root))
	c.ConfigureSizeLimits(80, 1<<20, 60)
	c.SetExecutor(executor.New(4, logging.Noop()))
	c.ConfigureFileSystem(descriptor.Descriptor{DfsType: descriptor.Local})
	return c, root
}

func TestInitIsIdempotent(t *testing.T) {
	c := New(localAdapterFactory(), logging.Noop())
	c.Init()
	c.Init() // must not panic or re-log as a second initialization
}

func TestConfigureLocalStorageRejectsNonDirectory(t *testing.T) {
	c := New(localAdapterFactory(), logging.Noop())
	file := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := c.ConfigureLocalStorage(file)
	assert.Error(t, err)
}

func TestOpenLoadsAndCachesFile(t *testing.T) {
	c, _ := newTestCache(t)
	remoteDir := t.TempDir()
	remotePath := filepath.Join(remoteDir, "object")
	require.NoError(t, os.WriteFile(remotePath, []byte("payload"), 0o644))

	local := descriptor.Descriptor{DfsType: descriptor.Local}
	file, bridge, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)
	require.NotNil(t, bridge)
	assert.Equal(t, int64(len("payload")), file.SizeBytes())

	// A second Open for the identical remote path must short-circuit
	// through the already-READY entry rather than re-downloading.
	again, _, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)
	assert.Same(t, file, again)
}

func TestOpenRedownloadsWhenCachedFileIsDirty(t *testing.T) {
	// spec.md §3: marking a cached file dirty must cause the next Open to
	// re-download rather than serve the stale cached copy.
	c, _ := newTestCache(t)
	remoteDir := t.TempDir()
	remotePath := filepath.Join(remoteDir, "object")
	require.NoError(t, os.WriteFile(remotePath, []byte("v1"), 0o644))

	local := descriptor.Descriptor{DfsType: descriptor.Local}
	file, _, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)
	require.Equal(t, int64(len("v1")), file.SizeBytes())

	file.MarkDirty()
	require.NoError(t, os.WriteFile(remotePath, []byte("v2 is longer"), 0o644))

	again, _, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)
	assert.Same(t, file, again, "dirty reload still returns the same ManagedFile, redownloaded in place")
	assert.False(t, again.Dirty())
	assert.Equal(t, int64(len("v2 is longer")), again.SizeBytes())
}

func TestConfigureMetadataCachePersistentSwitchesStore(t *testing.T) {
	c := New(localAdapterFactory(), logging.Noop())
	c.Init()
	require.NoError(t, c.ConfigureMetadataCache("persistent", t.TempDir()))
	require.NoError(t, c.ConfigureLocalStorage(t.TempDir()))
	c.ConfigureSizeLimits(80, 1<<20, 60)
	c.SetExecutor(executor.New(4, logging.Noop()))
	c.ConfigureFileSystem(descriptor.Descriptor{DfsType: descriptor.Local})

	remoteDir := t.TempDir()
	remotePath := filepath.Join(remoteDir, "object")
	require.NoError(t, os.WriteFile(remotePath, []byte("payload"), 0o644))

	local := descriptor.Descriptor{DfsType: descriptor.Local}
	file, _, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), file.SizeBytes())
}

func TestConfigureMetadataCacheDefaultVariantKeepsInMemoryStore(t *testing.T) {
	c := New(localAdapterFactory(), logging.Noop())
	require.NoError(t, c.ConfigureMetadataCache("memory", t.TempDir()))
	require.NoError(t, c.ConfigureMetadataCache("", t.TempDir()))
}

func TestFindReturnsNilForUnknownPath(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Nil(t, c.Find("/nowhere"))
}

func TestDeleteFileRemovesEntry(t *testing.T) {
	c, _ := newTestCache(t)
	remoteDir := t.TempDir()
	remotePath := filepath.Join(remoteDir, "object")
	require.NoError(t, os.WriteFile(remotePath, []byte("payload"), 0o644))

	local := descriptor.Descriptor{DfsType: descriptor.Local}
	file, _, err := c.Open(context.Background(), local, remotePath, "", local)
	require.NoError(t, err)

	assert.True(t, c.DeleteFile(file.LocalPath, true))
	assert.Nil(t, c.Find(file.LocalPath))
}

func TestBridgeForIsMemoizedPerDescriptor(t *testing.T) {
	c, _ := newTestCache(t)
	d := descriptor.Descriptor{DfsType: descriptor.Local}

	b1, err := c.bridgeFor(d)
	require.NoError(t, err)
	b2, err := c.bridgeFor(d)
	require.NoError(t, err)
	assert.Same(t, b1, b2, "repeated calls for the same descriptor must reuse one Bridge")
}

func TestSweepDoesNotPanicWithEmptyCache(t *testing.T) {
	c, _ := newTestCache(t)
	c.Sweep()
}
