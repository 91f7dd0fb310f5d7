// Package remotefs defines the capability-set contract every backing
// filesystem (local, HDFS-shaped, S3, Azure, GCS, Aliyun OSS, Tachyon)
// implements. spec.md §9 reframes the source's inheritance chain
// ("FileSystemDescriptorBound", the Tachyon subclass) as exactly this: a
// capability-set interface over adapters, with Tachyon as a decorator
// rather than a subclass. Grounded on
// _examples/other_examples/treeverse-lakeFS__pyramid.go's FS/File/
// StoredFile interface split and
// _examples/other_examples/absfs-cachefs__cachefs.go's wrap-a-backing-FS
// shape.
package remotefs

import (
	"context"
	"time"

	"github.com/DavidCohen17/ImpalaToGo/internal/metadatacache"
)

// OpenFlag mirrors the POSIX-flavored open flags spec.md §6 names.
type OpenFlag int

const (
	ReadOnly OpenFlag = iota
	WriteOnly
	ReadWrite
	Append
)

// BlockLocation is one block's host placement, for
// getFileBlockLocations/getFileBlockStorageLocations in spec.md §4.J.
type BlockLocation struct {
	Hosts   []string
	DiskIDs []string
	Offset  int64
	Length  int64
}

// FileHandle is the remote-side open file spec.md §4.J's fileOpen returns.
type FileHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Flush() error
	Available() (int64, error)
	Close() error
}

// Adapter is the capability set a descriptor is bound to — one instance
// per (dfsType, host) routing key, leased through internal/connpool.
// Every call takes the native connection handle connpool leased so
// Adapter implementations stay free of pooling/locking concerns.
type Adapter interface {
	// GetFileSystem dials a fresh native connection; it is the Dialer
	// internal/connpool.Pool uses to (re)populate the pool.
	GetFileSystem(ctx context.Context) (any, error)

	Exists(ctx context.Context, conn any, path string) (bool, error)
	GetFileStatus(ctx context.Context, conn any, path string) (metadatacache.FileStatus, error)
	ListStatus(ctx context.Context, conn any, path string) ([]metadatacache.FileStatus, error)
	GetFileBlockLocations(ctx context.Context, conn any, path string, offset, length int64) ([]BlockLocation, error)

	Open(ctx context.Context, conn any, path string, flags OpenFlag, bufSize int) (FileHandle, error)
	CreateDirectory(ctx context.Context, conn any, path string) error
	Rename(ctx context.Context, conn any, oldPath, newPath string) error
	Delete(ctx context.Context, conn any, path string, recursive bool) error
	Chown(ctx context.Context, conn any, path string, owner, group string) error
	Chmod(ctx context.Context, conn any, path string, perm uint32) error
	SetReplication(ctx context.Context, conn any, path string, replication int) error

	GetCapacity(ctx context.Context, conn any) (int64, error)
	GetUsed(ctx context.Context, conn any) (int64, error)
	GetDefaultBlockSize(ctx context.Context, conn any) (int64, error)
}

// StatusOf is a small helper adapters share to build a
// metadatacache.FileStatus from the fields every backend naturally has.
func StatusOf(path string, size int64, isDir bool, modTime time.Time) metadatacache.FileStatus {
	return metadatacache.FileStatus{Path: path, Size: size, IsDir: isDir, ModTime: modTime}
}
