// Package handle implements spec.md §4.J: the scanner-facing, POSIX-
// flavored API over a cached ManagedFile. Grounded on the teacher's
// request-vocabulary naming in its (now-removed) posix_file_service
// package, re-expressed as direct Go method calls on a handle value
// rather than RPC request/response structs — per spec.md §9's note that
// process-wide singletons and wire boundaries from the source are not
// required here.
package handle

import (
	"context"
	"io"
	"os"

	"github.com/DavidCohen17/ImpalaToGo/internal/cacheerrors"
	"github.com/DavidCohen17/ImpalaToGo/internal/fsbridge"
	"github.com/DavidCohen17/ImpalaToGo/internal/managedfile"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
)

// Handle is an opened cached file, scoped to one ManagedFile pin. Opening
// pins the file (spec.md §3 invariant 4: pinned files are never
// physically deleted); Close unpins it.
type Handle struct {
	file   *managedfile.File
	bridge *fsbridge.Bridge
	local  *os.File
}

// Open pins file and opens its local artifact for reading and writing, per spec.md
// §4.J's fileOpen: "leases a pooled connection and returns an opaque
// handle that carries the lease" — here the "lease" is the pin plus the
// open local *os.File; the remote connection lease was already returned
// by the loader once the download completed. bridge is kept on the
// handle so the stat-like and mutating calls below can route through
// (D)+(B), per spec.md §4.J.
func Open(file *managedfile.File, bridge *fsbridge.Bridge) (*Handle, error) {
	if file.State() != managedfile.Ready {
		return nil, cacheerrors.New(cacheerrors.KindInvalidHandle, "Open", "file is not READY")
	}
	file.Pin()
	local, err := os.OpenFile(file.LocalPath, os.O_RDWR, 0)
	if err != nil {
		file.Unpin()
		return nil, cacheerrors.Wrap(cacheerrors.KindRemoteIOError, "Open", err)
	}
	return &Handle{file: file, bridge: bridge, local: local}, nil
}

// Read reads into p at the handle's current offset.
func (h *Handle) Read(p []byte) (int, error) {
	return h.local.Read(p)
}

// Pread reads len(p) bytes starting at offset without disturbing the
// handle's current position, the zero-copy-friendly random-access form
// scan operators use against column chunks.
func (h *Handle) Pread(p []byte, offset int64) (int, error) {
	return h.local.ReadAt(p, offset)
}

func (h *Handle) Write(p []byte) (int, error) {
	h.file.MarkDirty()
	return h.local.Write(p)
}

func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.local.Seek(offset, whence)
}

func (h *Handle) Tell() (int64, error) {
	return h.local.Seek(0, io.SeekCurrent)
}

func (h *Handle) Flush() error {
	return h.local.Sync()
}

func (h *Handle) Available() (int64, error) {
	info, err := h.local.Stat()
	if err != nil {
		return 0, err
	}
	pos, err := h.Tell()
	if err != nil {
		return 0, err
	}
	return info.Size() - pos, nil
}

// Close releases the local file descriptor and unpins the ManagedFile,
// per spec.md §4.J's "fileClose drops the lease on every exit path".
func (h *Handle) Close() error {
	err := h.local.Close()
	h.file.Unpin()
	return err
}

// PathInfo and ListDirectory — spec.md §4.J's other stat-like operations —
// are fsbridge.Bridge.GetFileStatus and fsbridge.Bridge.ListStatus
// directly: both already route through (D)+(B) and take the same force
// flag, so this package does not re-wrap them under a different name.

// GetFileBlockLocations is spec.md §4.J's "block locations and disk IDs on
// blocks are read-through with the same policy" requirement, exposed at
// the handle API for scanners that already hold a Handle.
func (h *Handle) GetFileBlockLocations(ctx context.Context, offset, length int64) ([]remotefs.BlockLocation, error) {
	return h.bridge.GetFileBlockLocations(ctx, h.file.Origin.RemotePath, offset, length)
}

func (h *Handle) Chown(ctx context.Context, owner, group string) error {
	return h.bridge.Chown(ctx, h.file.Origin.RemotePath, owner, group)
}

func (h *Handle) Chmod(ctx context.Context, perm uint32) error {
	return h.bridge.Chmod(ctx, h.file.Origin.RemotePath, perm)
}

func (h *Handle) SetReplication(ctx context.Context, replication int) error {
	return h.bridge.SetReplication(ctx, h.file.Origin.RemotePath, replication)
}

func (h *Handle) Rename(ctx context.Context, newRemotePath string) error {
	return h.bridge.Rename(ctx, h.file.Origin.RemotePath, newRemotePath)
}

func (h *Handle) Delete(ctx context.Context, recursive bool) error {
	return h.bridge.Delete(ctx, h.file.Origin.RemotePath, recursive)
}

// GetCapacity/GetUsed/GetDefaultBlockSize surface the underlying
// filesystem's aggregate stats, per spec.md §4.J.
func GetCapacity(ctx context.Context, bridge *fsbridge.Bridge) (int64, error) {
	return bridge.GetCapacity(ctx)
}

func GetUsed(ctx context.Context, bridge *fsbridge.Bridge) (int64, error) {
	return bridge.GetUsed(ctx)
}

func GetDefaultBlockSize(ctx context.Context, bridge *fsbridge.Bridge) (int64, error) {
	return bridge.GetDefaultBlockSize(ctx)
}
