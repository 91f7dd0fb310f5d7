// Package cacheengine implements spec.md §4.G: a weighted LRU index over
// ManagedFiles, admission against a hard size limit, and eviction that
// skips pinned/DOWNLOADING entries while walking strictly in
// lastAccessTick order. Grounded on
// _examples/other_examples/absfs-cachefs__cachefs.go's intrusive
// lruHead/lruTail doubly-linked list: an O(1) splice-out mid-walk is what
// lets eviction skip entries without paying container/heap's O(log n)
// delete, and preserves spec.md §5's "ties broken by insertion order"
// without a synthetic sequence counter.
package cacheengine

import (
	"sync"

	humanize "github.com/dustin/go-humanize"

	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/managedfile"
)

type node struct {
	file *managedfile.File
	prev *node
	next *node
}

// Engine is the process-wide weighted LRU index of spec.md §4.G.
type Engine struct {
	mu            sync.Mutex
	byPath        map[string]*node
	head          *node // most recently touched
	tail          *node // least recently touched — eviction starts here
	hardLimit     int64
	occupied      int64
	overshoot     bool
	ls            logging.Service
}

func New(hardLimit int64, ls logging.Service) *Engine {
	return &Engine{byPath: make(map[string]*node), hardLimit: hardLimit, ls: ls.With("cacheengine")}
}

func (e *Engine) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		e.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		e.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (e *Engine) pushFront(n *node) {
	n.prev = nil
	n.next = e.head
	if e.head != nil {
		e.head.prev = n
	}
	e.head = n
	if e.tail == nil {
		e.tail = n
	}
}

func (e *Engine) touch(n *node) {
	if e.head == n {
		return
	}
	e.unlink(n)
	e.pushFront(n)
}

// Find looks up localPath, bumping its recency on a hit, per spec.md
// §4.G's find().
func (e *Engine) Find(localPath string) *managedfile.File {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byPath[localPath]
	if !ok {
		return nil
	}
	n.file.Touch()
	e.touch(n)
	return n.file
}

// Add inserts a new ManagedFile in state NEW if absent, per spec.md §4.G's
// add(): the caller that inserts gets admitted=true and is the producer;
// everyone else gets the already-present file with admitted=false.
func (e *Engine) Add(localPath string, origin managedfile.Origin, nature managedfile.CreationNature) (*managedfile.File, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.byPath[localPath]; ok {
		n.file.Touch()
		e.touch(n)
		return n.file, false
	}
	f := managedfile.NewFile(localPath, origin, nature)
	f.Touch()
	n := &node{file: f}
	e.byPath[localPath] = n
	e.pushFront(n)
	return f, true
}

// Remove unlinks localPath from the index. If physical, a pinned file is
// only marked EVICTING and stays indexed; an unpinned one is evicted via
// evictNodeLocked. The engine does not delete the local file from disk.
func (e *Engine) Remove(localPath string, physical bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byPath[localPath]
	if !ok {
		return false
	}
	if !physical {
		e.unlink(n)
		delete(e.byPath, localPath)
		return true
	}
	if n.file.Pinned() {
		n.file.SetState(managedfile.Evicting)
		return true
	}
	e.evictNodeLocked(n)
	return true
}

// DeletePath best-effort bulk-removes every entry whose local path has
// localPrefix as a prefix, per spec.md §4.G's deletePath().
func (e *Engine) DeletePath(localPrefix string) bool {
	e.mu.Lock()
	var matched []*node
	for path, n := range e.byPath {
		if len(path) >= len(localPrefix) && path[:len(localPrefix)] == localPrefix {
			matched = append(matched, n)
		}
	}
	for _, n := range matched {
		if n.file.Pinned() {
			n.file.SetState(managedfile.Evicting)
			continue
		}
		e.evictNodeLocked(n)
	}
	e.mu.Unlock()
	return len(matched) > 0
}

// evictNodeLocked drops a node already known unpinned from the index,
// releases its weight and marks it DELETED; the local file on disk is not
// removed. Callers must hold e.mu.
func (e *Engine) evictNodeLocked(n *node) {
	e.unlink(n)
	delete(e.byPath, n.file.LocalPath)
	e.occupied -= n.file.Weight()
	if e.occupied < 0 {
		e.occupied = 0
	}
	n.file.SetState(managedfile.Deleted)
}

// ReconcileReady is called once a producer finishes a download: it records
// the ManagedFile's actual sizeBytes and charges it to the occupied total
// (nothing is charged while DOWNLOADING), then runs admission (make-room eviction), per spec.md §4.G's
// "size unknown ⇒ treat as zero weight during DOWNLOADING; the accounting
// is reconciled on READY".
func (e *Engine) ReconcileReady(localPath string, actualSize int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byPath[localPath]
	if !ok {
		return
	}
	n.file.SetSizeBytes(actualSize)
	e.occupied += actualSize
	e.makeRoomLocked(n)
}

// makeRoomLocked evicts least-recently-touched, unpinned, non-DOWNLOADING
// files until occupied <= hardLimit or no further eviction is feasible,
// per spec.md §4.G's admission/eviction rules. keep is never evicted even
// if it happens to be walked (it was just admitted).
func (e *Engine) makeRoomLocked(keep *node) {
	if e.occupied <= e.hardLimit {
		e.overshoot = false
		return
	}
	cur := e.tail
	for cur != nil && e.occupied > e.hardLimit {
		prev := cur.prev
		if cur == keep || cur.file.Pinned() || cur.file.State() == managedfile.Downloading {
			cur = prev
			continue
		}
		freed := cur.file.Weight()
		e.evictNodeLocked(cur)
		e.ls.Debug(logging.Event{Message: "evicted file to make room", Metadata: map[string]any{
			"path": cur.file.LocalPath, "freed": humanize.Bytes(uint64(freed)),
		}})
		cur = prev
	}
	e.overshoot = e.occupied > e.hardLimit
	if e.overshoot {
		e.ls.Warn(logging.Event{Message: "cache transiently exceeds hard limit; no further files are evictable", Metadata: map[string]any{
			"occupied": humanize.Bytes(uint64(e.occupied)), "limit": humanize.Bytes(uint64(e.hardLimit)),
		}})
	}
}

// reclaimEvictingLocked physically reaps every EVICTING node whose refCount
// has reached zero, independent of the hard-limit comparison: a file
// marked EVICTING while pinned (Remove/DeletePath) must be reclaimed on
// the next sweep once its last handle closes, per spec.md §3's lifecycle
// note and §8 property 2, even if the cache is currently under its hard
// limit. Callers must hold e.mu.
func (e *Engine) reclaimEvictingLocked() {
	for _, n := range e.byPath {
		if n.file.State() != managedfile.Evicting || n.file.Pinned() {
			continue
		}
		freed := n.file.Weight()
		e.evictNodeLocked(n)
		e.ls.Debug(logging.Event{Message: "reclaimed evicting file on sweep", Metadata: map[string]any{
			"path": n.file.LocalPath, "freed": humanize.Bytes(uint64(freed)),
		}})
	}
}

// Sweep runs the periodic background eviction pass of spec.md §4.G
// ("eviction runs at two cadences: synchronous make-room during admission,
// and a periodic background sweep parameterized by timeslice"). It both
// reclaims unpinned EVICTING files and, if still over the hard limit,
// makes room among READY files.
func (e *Engine) Sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reclaimEvictingLocked()
	e.makeRoomLocked(nil)
}

// Overshoot reports whether the cache is currently above its hard limit
// because no further file was evictable, per spec.md §4.G.
func (e *Engine) Overshoot() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overshoot
}

func (e *Engine) Occupied() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.occupied
}

func (e *Engine) HardLimit() int64 {
	return e.hardLimit
}
