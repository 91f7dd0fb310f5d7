package localfs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
)

func TestExistsReflectsDiskState(t *testing.T) {
	dir := t.TempDir()
	a := New()
	ctx := context.Background()

	file := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	exists, err := a.Exists(ctx, nil, file)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.Exists(ctx, nil, filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetFileStatusOnMissingPathReturnsErrNotFound(t *testing.T) {
	a := New()
	_, err := a.GetFileStatus(context.Background(), nil, filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	a := New()
	ctx := context.Background()
	path := filepath.Join(dir, "nested", "file.txt")

	wh, err := a.Open(ctx, nil, path, remotefs.WriteOnly, 0)
	require.NoError(t, err)
	_, err = wh.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, wh.Close())

	rh, err := a.Open(ctx, nil, path, remotefs.ReadOnly, 0)
	require.NoError(t, err)
	defer rh.Close()
	buf := make([]byte, 5)
	n, err := rh.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestDeleteRecursiveRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	a := New()
	ctx := context.Background()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f"), []byte("x"), 0o644))

	require.NoError(t, a.Delete(ctx, nil, sub, true))
	_, err := os.Stat(sub)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingNonRecursiveIsNotAnError(t *testing.T) {
	a := New()
	err := a.Delete(context.Background(), nil, filepath.Join(t.TempDir(), "absent"), false)
	assert.NoError(t, err)
}

func TestWriteLocalLeavesNoPartialFileOnFailure(t *testing.T) {
	// spec.md §6: failed downloads leave no partial file with the final
	// name.
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")

	failingReader := &erroringReader{after: 3}
	_, err := WriteLocal(path, failingReader)
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file with the final name should exist after a failed write")
	_, partErr := os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(partErr), "the temporary .part file must be cleaned up on failure")
}

func TestWriteLocalSucceedsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")

	n, err := WriteLocal(path, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestChownResolvesNumericOwnerAndGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	self := os.Getuid()
	a := New()
	err := a.Chown(context.Background(), nil, path, strconv.Itoa(self), strconv.Itoa(os.Getgid()))
	require.NoError(t, err)
}

func TestChownLeavesOwnerUnchangedWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	a := New()
	require.NoError(t, a.Chown(context.Background(), nil, path, "", ""))
}

func TestChownRejectsUnknownOwnerName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	a := New()
	err := a.Chown(context.Background(), nil, path, "no-such-user-xyz", "")
	assert.Error(t, err)
}

func TestResolveUIDAndGIDNumericPassthrough(t *testing.T) {
	uid, err := resolveUID("1000")
	require.NoError(t, err)
	assert.Equal(t, 1000, uid)

	gid, err := resolveGID("1000")
	require.NoError(t, err)
	assert.Equal(t, 1000, gid)
}

type erroringReader struct {
	after int
	read  int
}

func (r *erroringReader) Read(p []byte) (int, error) {
	if r.read >= r.after {
		return 0, assert.AnError
	}
	n := copy(p, []byte("x"))
	r.read += n
	return n, nil
}

var _ remotefs.Adapter = (*Adapter)(nil)
