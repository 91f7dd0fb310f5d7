package tachyonfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/metadatacache"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
)

// fakeReadHandle is a remotefs.FileHandle backed by an in-memory byte
// slice, so tests can control exactly how many bytes a drain reads and
// observe whether Close was actually called.
type fakeReadHandle struct {
	r      *bytes.Reader
	closed bool
	readAt func(n int) error // optional injected error once r is exhausted by n bytes
}

func newFakeReadHandle(data []byte) *fakeReadHandle {
	return &fakeReadHandle{r: bytes.NewReader(data)}
}

func (h *fakeReadHandle) Read(p []byte) (int, error) { return h.r.Read(p) }
func (h *fakeReadHandle) Write(p []byte) (int, error) {
	return 0, errors.New("fakeReadHandle: unsupported Write")
}
func (h *fakeReadHandle) Seek(offset int64, whence int) (int64, error) { return h.r.Seek(offset, whence) }
func (h *fakeReadHandle) Tell() (int64, error)                         { return h.r.Size() - int64(h.r.Len()), nil }
func (h *fakeReadHandle) Flush() error                                 { return nil }
func (h *fakeReadHandle) Available() (int64, error)                    { return int64(h.r.Len()), nil }
func (h *fakeReadHandle) Close() error {
	h.closed = true
	return nil
}

// fakeWriteHandle records that it was opened for write and never read from.
type fakeWriteHandle struct {
	closed bool
	wrote  []byte
}

func (h *fakeWriteHandle) Read(p []byte) (int, error) {
	return 0, errors.New("fakeWriteHandle: unsupported Read")
}
func (h *fakeWriteHandle) Write(p []byte) (int, error) {
	h.wrote = append(h.wrote, p...)
	return len(p), nil
}
func (h *fakeWriteHandle) Seek(int64, int) (int64, error) { return 0, nil }
func (h *fakeWriteHandle) Tell() (int64, error)           { return int64(len(h.wrote)), nil }
func (h *fakeWriteHandle) Flush() error                   { return nil }
func (h *fakeWriteHandle) Available() (int64, error)      { return 0, nil }
func (h *fakeWriteHandle) Close() error {
	h.closed = true
	return nil
}

// fakeBacking is a remotefs.Adapter that hands back a fresh handle from
// nextHandles on every Open call, in order, and records the flags each
// call was made with.
type fakeBacking struct {
	opens       []remotefs.OpenFlag
	nextHandles []remotefs.FileHandle
	openErr     error
}

func (f *fakeBacking) GetFileSystem(ctx context.Context) (any, error) { return nil, nil }
func (f *fakeBacking) Exists(ctx context.Context, conn any, path string) (bool, error) {
	return true, nil
}
func (f *fakeBacking) GetFileStatus(ctx context.Context, conn any, path string) (metadatacache.FileStatus, error) {
	return metadatacache.FileStatus{}, nil
}
func (f *fakeBacking) ListStatus(ctx context.Context, conn any, path string) ([]metadatacache.FileStatus, error) {
	return nil, nil
}
func (f *fakeBacking) GetFileBlockLocations(ctx context.Context, conn any, path string, offset, length int64) ([]remotefs.BlockLocation, error) {
	return nil, nil
}
func (f *fakeBacking) Open(ctx context.Context, conn any, path string, flags remotefs.OpenFlag, bufSize int) (remotefs.FileHandle, error) {
	f.opens = append(f.opens, flags)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if len(f.nextHandles) == 0 {
		return nil, errors.New("fakeBacking: no more handles queued")
	}
	h := f.nextHandles[0]
	f.nextHandles = f.nextHandles[1:]
	return h, nil
}
func (f *fakeBacking) CreateDirectory(ctx context.Context, conn any, path string) error { return nil }
func (f *fakeBacking) Rename(ctx context.Context, conn any, oldPath, newPath string) error {
	return nil
}
func (f *fakeBacking) Delete(ctx context.Context, conn any, path string, recursive bool) error {
	return nil
}
func (f *fakeBacking) Chown(ctx context.Context, conn any, path, owner, group string) error {
	return nil
}
func (f *fakeBacking) Chmod(ctx context.Context, conn any, path string, perm uint32) error {
	return nil
}
func (f *fakeBacking) SetReplication(ctx context.Context, conn any, path string, replication int) error {
	return nil
}
func (f *fakeBacking) GetCapacity(ctx context.Context, conn any) (int64, error) { return 0, nil }
func (f *fakeBacking) GetUsed(ctx context.Context, conn any) (int64, error)     { return 0, nil }
func (f *fakeBacking) GetDefaultBlockSize(ctx context.Context, conn any) (int64, error) {
	return 0, nil
}

var _ remotefs.Adapter = (*fakeBacking)(nil)

func TestOpenReadDrainsThenClosesAndReopensFresh(t *testing.T) {
	// spec.md §4.K / §8 property 8: a successful read open drains the
	// entire first handle, closes it (committing the server-side cache),
	// then reopens a second, fresh handle and returns that one.
	first := newFakeReadHandle(bytes.Repeat([]byte("x"), drainBufSize+37))
	second := newFakeReadHandle([]byte("fresh"))
	backing := &fakeBacking{nextHandles: []remotefs.FileHandle{first, second}}
	a := New(backing, logging.Noop())

	h, err := a.Open(context.Background(), nil, "/x", remotefs.ReadOnly, 0)
	require.NoError(t, err)

	assert.True(t, first.closed, "the drained handle must be closed to commit the server-side cache")
	assert.Same(t, second, h, "Open must return the freshly reopened handle, not the drained one")

	require.Equal(t, []remotefs.OpenFlag{remotefs.ReadOnly, remotefs.ReadOnly}, backing.opens,
		"both the drain open and the reopen must use the original read flags")

	pos, err := second.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "the returned handle must start at offset 0")
}

func TestOpenReadDrainsAtLeastRemoteSizeBytes(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 3*drainBufSize+1)
	first := newFakeReadHandle(data)
	second := newFakeReadHandle(nil)
	backing := &fakeBacking{nextHandles: []remotefs.FileHandle{first, second}}
	a := New(backing, logging.Noop())

	_, err := a.Open(context.Background(), nil, "/x", remotefs.ReadOnly, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, first.r.Len(), "the drain must consume the entire remote stream")
}

func TestOpenWriteBypassesDrainAndOpensOnce(t *testing.T) {
	write := &fakeWriteHandle{}
	backing := &fakeBacking{nextHandles: []remotefs.FileHandle{write}}
	a := New(backing, logging.Noop())

	h, err := a.Open(context.Background(), nil, "/x", remotefs.WriteOnly, 0)
	require.NoError(t, err)
	assert.Same(t, write, h)
	assert.Len(t, backing.opens, 1, "a write must open exactly once, with no drain")
	assert.Equal(t, []remotefs.OpenFlag{remotefs.WriteOnly}, backing.opens)
}

func TestOpenReadPropagatesDrainIOError(t *testing.T) {
	failing := &erroringReadHandle{err: errors.New("connection reset")}
	backing := &fakeBacking{nextHandles: []remotefs.FileHandle{failing}}
	a := New(backing, logging.Noop())

	_, err := a.Open(context.Background(), nil, "/x", remotefs.ReadOnly, 0)
	require.Error(t, err)
	assert.True(t, failing.closed, "a failed drain must still close the handle it was reading")
	assert.Len(t, backing.opens, 1, "a failed drain must not proceed to reopen")
}

func TestOpenPassesThroughInitialOpenError(t *testing.T) {
	backing := &fakeBacking{openErr: errors.New("dial failed")}
	a := New(backing, logging.Noop())
	_, err := a.Open(context.Background(), nil, "/x", remotefs.ReadOnly, 0)
	assert.Error(t, err)
}

// erroringReadHandle always fails its Read with a non-EOF error.
type erroringReadHandle struct {
	err    error
	closed bool
}

func (h *erroringReadHandle) Read(p []byte) (int, error) { return 0, h.err }
func (h *erroringReadHandle) Write(p []byte) (int, error) {
	return 0, errors.New("erroringReadHandle: unsupported Write")
}
func (h *erroringReadHandle) Seek(int64, int) (int64, error) { return 0, nil }
func (h *erroringReadHandle) Tell() (int64, error)           { return 0, nil }
func (h *erroringReadHandle) Flush() error                   { return nil }
func (h *erroringReadHandle) Available() (int64, error)      { return 0, nil }
func (h *erroringReadHandle) Close() error {
	h.closed = true
	return nil
}

var _ remotefs.FileHandle = (*erroringReadHandle)(nil)
var _ io.Closer = (*erroringReadHandle)(nil)
