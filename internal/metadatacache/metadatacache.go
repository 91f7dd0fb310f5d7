// Package metadatacache implements spec.md §4.D: an in-memory store of
// path→status, directory→children, and path→existence, with no eviction
// policy — entries live for the process lifetime unless explicitly
// invalidated. Grounded on the teacher's guarded-map idiom
// (internal/cluster_service/etcd/etcd_cluster_service.go's
// configCache/livenessCache maps).
package metadatacache

import (
	"sync"
	"time"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
)

// Existence is the tri-state existence result of spec.md §4.D.
type Existence int

const (
	ExistenceUnknown Existence = iota
	Exists
	DoesNotExist
)

// SyncState records whether the last remote round-trip for a key
// succeeded, per spec.md §4.B's "insert SYNC_OK... terminal TIMEOUT or
// FAILURE ⇒ SYNC_FAILURE".
type SyncState int

const (
	SyncUnknown SyncState = iota
	SyncOK
	SyncFailure
)

// FileStatus is a filesystem-agnostic stat result.
type FileStatus struct {
	Path      string
	Size      int64
	IsDir     bool
	ModTime   time.Time
	BlockLocs []string
}

type key struct {
	route descriptor.RoutingKey
	path  string
}

type entry struct {
	sync      SyncState
	existence Existence
	status    *FileStatus
	children  []FileStatus
}

// Cache is the process-lifetime metadata store.
type Cache struct {
	mu      sync.RWMutex
	entries map[key]*entry
}

func New() *Cache {
	return &Cache{entries: make(map[key]*entry)}
}

func (c *Cache) entryFor(route descriptor.RoutingKey, path string) *entry {
	k := key{route, path}
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	return e
}

// PutStatus records a successful getFileStatus for path, marking it
// SyncOK and Exists.
func (c *Cache) PutStatus(route descriptor.RoutingKey, status FileStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(route, status.Path)
	e.sync = SyncOK
	e.existence = Exists
	s := status
	e.status = &s
}

// PutListing records a successful listStatus on dir, and — per spec.md
// §4.D's "stat data for a single file is stored on its parent directory's
// entry as a child metadata" — also seeds each child's own per-path status
// entry, so a later GetStatus(child) is a cache hit. This is what spec.md
// §8 property 6 ("after a successful listStatus, a subsequent
// getFileStatus on any child returns without a remote call") requires.
func (c *Cache) PutListing(route descriptor.RoutingKey, dir string, children []FileStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(route, dir)
	e.sync = SyncOK
	e.existence = Exists
	e.children = append([]FileStatus(nil), children...)

	for _, child := range children {
		ce := c.entryFor(route, child.Path)
		ce.sync = SyncOK
		ce.existence = Exists
		s := child
		ce.status = &s
	}
}

// PutExistence records the outcome of an exists() call.
func (c *Cache) PutExistence(route descriptor.RoutingKey, path string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(route, path)
	e.sync = SyncOK
	if exists {
		e.existence = Exists
	} else {
		e.existence = DoesNotExist
	}
}

// PutFailure marks path (or the operation's key) as having failed its last
// remote round-trip; subsequent lookups observe SyncFailure until a new
// successful update overwrites it.
func (c *Cache) PutFailure(route descriptor.RoutingKey, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(route, path)
	e.sync = SyncFailure
}

// GetStatus returns the cached status for path, and whether the cache held
// anything at all for it.
func (c *Cache) GetStatus(route descriptor.RoutingKey, path string) (FileStatus, SyncState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key{route, path}]
	if !ok || e.status == nil {
		if ok {
			return FileStatus{}, e.sync, false
		}
		return FileStatus{}, SyncUnknown, false
	}
	return *e.status, e.sync, true
}

// GetListing returns the cached children of dir.
func (c *Cache) GetListing(route descriptor.RoutingKey, dir string) ([]FileStatus, SyncState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key{route, dir}]
	if !ok || e.children == nil {
		if ok {
			return nil, e.sync, false
		}
		return nil, SyncUnknown, false
	}
	return append([]FileStatus(nil), e.children...), e.sync, true
}

// GetExistence returns the cached tri-state existence of path.
func (c *Cache) GetExistence(route descriptor.RoutingKey, path string) (Existence, SyncState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key{route, path}]
	if !ok {
		return ExistenceUnknown, SyncUnknown
	}
	return e.existence, e.sync
}

// Invalidate drops a single key, forcing the next lookup to go remote.
func (c *Cache) Invalidate(route descriptor.RoutingKey, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{route, path})
}

// Store is the subset of Cache's API internal/fsbridge depends on. Both
// the in-memory Cache above and internal/metadatacache/persistent's
// StoreAdapter implement it, so the variant fsbridge talks to is
// selected by configuration per spec.md §4.D ("selected by
// configuration; the default metadata-cache variant remains the
// in-memory one").
type Store interface {
	PutStatus(route descriptor.RoutingKey, status FileStatus)
	PutListing(route descriptor.RoutingKey, dir string, children []FileStatus)
	PutExistence(route descriptor.RoutingKey, path string, exists bool)
	PutFailure(route descriptor.RoutingKey, path string)
	GetStatus(route descriptor.RoutingKey, path string) (FileStatus, SyncState, bool)
	GetListing(route descriptor.RoutingKey, dir string) ([]FileStatus, SyncState, bool)
	GetExistence(route descriptor.RoutingKey, path string) (Existence, SyncState)
	Invalidate(route descriptor.RoutingKey, path string)
}

var _ Store = (*Cache)(nil)
