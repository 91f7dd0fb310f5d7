package azurefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests cover the adapter's pure logic only — key mapping, handle
// capability checks, and POSIX-no-op methods. Exists/GetFileStatus/Open
// require a live container and Azure credentials and are left to the
// embedding process's own integration suite, per DESIGN.md.

func TestKeyStripsLeadingSlash(t *testing.T) {
	a := New("myaccount", "mycontainer", "key")
	assert.Equal(t, "warehouse/t/part-0", a.key("/warehouse/t/part-0"))
	assert.Equal(t, "warehouse/t/part-0", a.key("warehouse/t/part-0"))
}

func TestGetFileBlockLocationsReturnsOneSyntheticBlock(t *testing.T) {
	a := New("myaccount", "mycontainer", "key")
	locs, err := a.GetFileBlockLocations(context.Background(), nil, "/x", 0, 4096)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, []string{"myaccount"}, locs[0].Hosts)
	assert.Equal(t, int64(4096), locs[0].Length)
}

func TestReadHandleRejectsWriteAndSeek(t *testing.T) {
	h := &readHandle{}
	_, err := h.Write([]byte("x"))
	assert.Error(t, err)
	_, err = h.Seek(0, 0)
	assert.Error(t, err)
}

func TestWriteHandleRejectsReadAndSeek(t *testing.T) {
	h := &writeHandle{}
	_, err := h.Read(make([]byte, 1))
	assert.Error(t, err)
	_, err = h.Seek(0, 0)
	assert.Error(t, err)
}

func TestWriteHandleBuffersUntilClose(t *testing.T) {
	h := &writeHandle{}
	n, err := h.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	tell, err := h.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(5), tell)
}

func TestPosixFreeOperationsAreNoOps(t *testing.T) {
	a := New("myaccount", "mycontainer", "key")
	ctx := context.Background()
	assert.NoError(t, a.Chown(ctx, nil, "/x", "u", "g"))
	assert.NoError(t, a.Chmod(ctx, nil, "/x", 0o644))
	assert.NoError(t, a.SetReplication(ctx, nil, "/x", 3))

	capacity, err := a.GetCapacity(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), capacity, "Azure containers report unbounded capacity")

	blockSize, err := a.GetDefaultBlockSize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024*1024), blockSize)
}
