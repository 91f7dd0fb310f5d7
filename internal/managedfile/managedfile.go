// Package managedfile implements spec.md §3's ManagedFile: the unit of
// cache residency. Grounded on the teacher's atomic-state-plus-mutex idiom
// (internal/communication/grpc/grpc_communicator.go's "stopped bool" +
// "stopMutex") and its local-disk write/read/delete shape
// (internal/chunk_service/local_disc/local_disc_chunk_service.go).
package managedfile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
)

// State is one of the six ManagedFile states of spec.md §3.
type State int

const (
	New State = iota
	Downloading
	Ready
	Evicting
	Failed
	Deleted
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Downloading:
		return "DOWNLOADING"
	case Ready:
		return "READY"
	case Evicting:
		return "EVICTING"
	case Failed:
		return "FAILED"
	case Deleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// CreationNature distinguishes files downloaded from a remote origin from
// files being written locally for eventual upload, per spec.md §3.
type CreationNature int

const (
	Physical CreationNature = iota
	CreateFromSelect
)

// Origin is the remote side of a ManagedFile: descriptor, remote path, and
// optional transform command, per spec.md §3.
type Origin struct {
	Descriptor   descriptor.Descriptor
	RemotePath   string
	TransformCmd string
}

var tickCounter atomic.Int64

// NextTick returns the next value of the process-wide monotonic access
// counter that drives eviction order, per spec.md §3 invariant 5:
// "lastAccessTick values are totally ordered". A single shared counter
// (rather than wall-clock time) is what lets cacheengine order two updates
// that land in the same clock tick.
func NextTick() int64 {
	return tickCounter.Add(1)
}

// File is the cache citizen described by spec.md §3.
type File struct {
	mu sync.Mutex

	ID        uuid.UUID
	Origin    Origin
	LocalPath string
	Nature    CreationNature

	state              State
	sizeBytes          int64
	estimatedSizeBytes int64
	refCount           int
	dirty              bool
	lastAccessTick     int64

	failedAt      time.Time
	cooldownUntil time.Time

	changed chan struct{} // closed and replaced on every state transition
}

// NewFile constructs a ManagedFile in state NEW, per spec.md §4.H step 1.
func NewFile(localPath string, origin Origin, nature CreationNature) *File {
	return &File{
		ID:        uuid.New(),
		Origin:    origin,
		LocalPath: localPath,
		Nature:    nature,
		state:     New,
		changed:   make(chan struct{}),
	}
}

func (f *File) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState transitions the file and wakes every waiter blocked in
// WaitForChange, per spec.md §4.H steps 4/5 ("wakes all waiters").
func (f *File) SetState(s State) {
	f.mu.Lock()
	f.state = s
	old := f.changed
	f.changed = make(chan struct{})
	f.mu.Unlock()
	close(old)
}

// WaitForChange blocks until the file's state changes or ctx is done,
// whichever comes first — the cancellable per-file condition wait of
// spec.md §5.
func (f *File) WaitForChange(ctx context.Context) error {
	f.mu.Lock()
	ch := f.changed
	f.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SizeBytes is only meaningful in states >= READY, per spec.md §3.
func (f *File) SizeBytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizeBytes
}

func (f *File) SetSizeBytes(n int64) {
	f.mu.Lock()
	f.sizeBytes = n
	f.mu.Unlock()
}

// EstimatedSizeBytes is the size the loader expects before the remote
// getFileStatus has returned — see SPEC_FULL.md §3's supplement to
// spec.md's data model. cacheengine does not charge it: a DOWNLOADING file
// adds nothing to the occupied total until ReconcileReady charges SizeBytes.
func (f *File) EstimatedSizeBytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.estimatedSizeBytes
}

func (f *File) SetEstimatedSizeBytes(n int64) {
	f.mu.Lock()
	f.estimatedSizeBytes = n
	f.mu.Unlock()
}

// Weight returns the size attributed to this file at its current state:
// SizeBytes in READY or EVICTING, EstimatedSizeBytes while DOWNLOADING,
// zero otherwise (including FAILED and DELETED).
func (f *File) Weight() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Ready, Evicting:
		return f.sizeBytes
	case Downloading:
		return f.estimatedSizeBytes
	default:
		return 0
	}
}

// Pin increments the reference count; a pinned file cannot be physically
// removed, per spec.md §3 invariant 4.
func (f *File) Pin() {
	f.mu.Lock()
	f.refCount++
	f.mu.Unlock()
}

// Unpin decrements the reference count and returns the count after the
// decrement.
func (f *File) Unpin() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refCount > 0 {
		f.refCount--
	}
	return f.refCount
}

func (f *File) RefCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refCount
}

func (f *File) Pinned() bool {
	return f.RefCount() > 0
}

// MarkDirty flags that the object's remote side is believed to have
// changed; the next open triggers re-download, per spec.md §3.
func (f *File) MarkDirty() {
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
}

func (f *File) ClearDirty() {
	f.mu.Lock()
	f.dirty = false
	f.mu.Unlock()
}

func (f *File) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// Touch records an access for eviction ordering purposes, per spec.md §3.
func (f *File) Touch() int64 {
	tick := NextTick()
	f.mu.Lock()
	f.lastAccessTick = tick
	f.mu.Unlock()
	return tick
}

func (f *File) LastAccessTick() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAccessTick
}

// Fail marks the file FAILED with a cooldown deadline, per spec.md §4.H
// step 5.
func (f *File) Fail(cooldown time.Duration) {
	now := time.Now()
	f.mu.Lock()
	f.state = Failed
	f.failedAt = now
	f.cooldownUntil = now.Add(cooldown)
	old := f.changed
	f.changed = make(chan struct{})
	f.mu.Unlock()
	close(old)
}

// CooldownExpired reports whether a FAILED file's cooldown has elapsed,
// meaning the next open should restart the loader (state resets to NEW),
// per spec.md §3's Lifecycle section.
func (f *File) CooldownExpired(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == Failed && !now.Before(f.cooldownUntil)
}
