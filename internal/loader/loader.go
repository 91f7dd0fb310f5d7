// Package loader implements spec.md §4.H: for each cache miss, ensure
// exactly one producer downloads the object while every other caller
// waits on the ManagedFile's own per-file condition, with cancellation.
// golang.org/x/sync/singleflight elects the one producer goroutine
// (domain stack wiring); it is wrapped rather than used directly because
// singleflight.Group offers no per-waiter cancellation and no externally
// observable DOWNLOADING state on its own — this package inserts the
// ManagedFile into cacheengine itself so a find() made before the
// singleflight.Do call still sees the same file, satisfying spec.md §8
// property 1. Grounded on the teacher's producer/waiter split in
// internal/cluster_service/etcd/etcd_cluster_service.go's
// "one goroutine does the work, others block on a channel" shape.
package loader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DavidCohen17/ImpalaToGo/internal/cacheengine"
	"github.com/DavidCohen17/ImpalaToGo/internal/cacheerrors"
	"github.com/DavidCohen17/ImpalaToGo/internal/fsbridge"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/managedfile"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/localfs"
)

// defaultCooldown is the FAILED-state cooldown window of spec.md §4.H
// step 5 before a new requester may retry.
const defaultCooldown = 30 * time.Second

// pair is a registered CREATE_FROM_SELECT (local, remote) handle pairing,
// per spec.md §4.H's side table.
type pair struct {
	Local  io.Closer
	Remote io.Closer
}

// Loader ensures single-flight downloads per local path and tracks
// CREATE_FROM_SELECT pairs under their own dedicated mutex, per spec.md
// §5's "CREATE_FROM_SELECT registration is serialized on a dedicated mutex
// distinct from the cache index lock".
type Loader struct {
	engine *cacheengine.Engine
	group  singleflight.Group
	ls     logging.Service

	pairsMu sync.Mutex
	pairs   map[uuid.UUID]pair
}

func New(engine *cacheengine.Engine, ls logging.Service) *Loader {
	return &Loader{engine: engine, ls: ls.With("loader"), pairs: make(map[uuid.UUID]pair)}
}

// Load implements spec.md §4.H's full algorithm. bridge is the
// already-resolved fsbridge.Bridge for the file's origin descriptor.
func (l *Loader) Load(ctx context.Context, localPath string, origin managedfile.Origin, bridge *fsbridge.Bridge) (*managedfile.File, error) {
	file, admitted := l.engine.Add(localPath, origin, managedfile.Physical)

	if !admitted {
		return l.awaitOrRestart(ctx, file, localPath, origin, bridge)
	}

	// This goroutine is the producer; elect itself via singleflight purely
	// to dedupe the transfer call should Add ever be invoked concurrently
	// for a brand-new path from two goroutines racing the same insert (the
	// mutex inside Engine.Add already prevents that in practice, but the
	// election keeps the invariant explicit rather than implicit).
	file.SetState(managedfile.Downloading)
	_, err, _ := l.group.Do(localPath, func() (any, error) {
		return nil, l.produce(ctx, file, localPath, origin, bridge)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// awaitOrRestart waits on a DOWNLOADING file (step 3), surfaces a FAILED
// file's error while within cooldown (step 5), or restarts production once
// cooldown has expired.
func (l *Loader) awaitOrRestart(ctx context.Context, file *managedfile.File, localPath string, origin managedfile.Origin, bridge *fsbridge.Bridge) (*managedfile.File, error) {
	for {
		switch file.State() {
		case managedfile.Ready:
			return file, nil
		case managedfile.Downloading, managedfile.New:
			if err := file.WaitForChange(ctx); err != nil {
				return nil, cacheerrors.Wrap(cacheerrors.KindCancellationRequested, "Load", err)
			}
		case managedfile.Failed:
			if file.CooldownExpired(time.Now()) {
				file.SetState(managedfile.New)
				_, err, _ := l.group.Do(localPath, func() (any, error) {
					return nil, l.produce(ctx, file, localPath, origin, bridge)
				})
				if err != nil {
					return nil, err
				}
				return file, nil
			}
			return nil, cacheerrors.New(cacheerrors.KindRemoteIOError, "Load", "producer failed; cooldown has not elapsed")
		case managedfile.Evicting, managedfile.Deleted:
			// The entry we observed is on its way out; re-add and restart
			// as a fresh producer rather than waiting on a file that will
			// never become READY again.
			newFile, admitted := l.engine.Add(localPath, origin, managedfile.Physical)
			if admitted {
				newFile.SetState(managedfile.Downloading)
				_, err, _ := l.group.Do(localPath, func() (any, error) {
					return nil, l.produce(ctx, newFile, localPath, origin, bridge)
				})
				if err != nil {
					return nil, err
				}
				return newFile, nil
			}
			file = newFile
		default:
			return nil, fmt.Errorf("loader: unexpected state %s", file.State())
		}
	}
}

// Reload forces a redownload of an already-READY file whose dirty flag is
// set, per spec.md §3's "dirtyFlag... next open triggers re-download".
// It elects a fresh producer exactly like the cooldown-restart path in
// awaitOrRestart: the file moves to DOWNLOADING, the dirty flag clears,
// and produce runs once under singleflight, deduping concurrent callers
// that all observed the same dirty READY file.
func (l *Loader) Reload(ctx context.Context, file *managedfile.File, localPath string, origin managedfile.Origin, bridge *fsbridge.Bridge) (*managedfile.File, error) {
	file.ClearDirty()
	file.SetState(managedfile.Downloading)
	_, err, _ := l.group.Do(localPath, func() (any, error) {
		return nil, l.produce(ctx, file, localPath, origin, bridge)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// produce performs the actual transfer: step 2 (begin transfer), step 4
// (success path: set size, commit bytes, READY, reconcile, wake waiters),
// step 5 (failure path: FAILED + cooldown, wake waiters), and step 6 (a
// cancelled producer with no attached reader tears down to DELETED).
func (l *Loader) produce(ctx context.Context, file *managedfile.File, localPath string, origin managedfile.Origin, bridge *fsbridge.Bridge) error {
	status, err := bridge.GetFileStatus(ctx, origin.RemotePath, false)
	if err == nil {
		file.SetEstimatedSizeBytes(status.Size)
	}

	remote, err := bridge.Open(ctx, origin.RemotePath, remotefs.ReadOnly, 0)
	if err != nil {
		if ctx.Err() != nil && file.RefCount() == 0 {
			file.SetState(managedfile.Deleted)
			return cacheerrors.Wrap(cacheerrors.KindCancellationRequested, "Load", ctx.Err())
		}
		file.Fail(defaultCooldown)
		l.ls.Warn(logging.Event{Message: "producer failed to open remote file", Metadata: map[string]any{"path": localPath, "error": err}})
		return cacheerrors.Wrap(cacheerrors.KindRemoteIOError, "Load", err)
	}
	defer remote.Close()

	n, err := writeLocal(file.LocalPath, remote)
	if err != nil {
		if ctx.Err() != nil && file.RefCount() == 0 {
			file.SetState(managedfile.Deleted)
			return cacheerrors.Wrap(cacheerrors.KindCancellationRequested, "Load", ctx.Err())
		}
		file.Fail(defaultCooldown)
		l.ls.Warn(logging.Event{Message: "producer failed writing local artifact", Metadata: map[string]any{"path": localPath, "error": err}})
		return cacheerrors.Wrap(cacheerrors.KindRemoteIOError, "Load", err)
	}

	file.SetSizeBytes(n)
	file.SetState(managedfile.Ready)
	l.engine.ReconcileReady(localPath, n)
	return nil
}

// writeLocal is the local filesystem adapter's atomic write helper, which
// satisfies
// spec.md §6's "no partial file with the final name" guarantee.
var writeLocal = localfs.WriteLocal

// RegisterPair records a CREATE_FROM_SELECT (local, remote) pairing keyed
// by a generated id, per spec.md §4.H.
func (l *Loader) RegisterPair(local, remote io.Closer) uuid.UUID {
	id := uuid.New()
	l.pairsMu.Lock()
	l.pairs[id] = pair{Local: local, Remote: remote}
	l.pairsMu.Unlock()
	return id
}

// UnregisterPair looks up and removes id's pairing exactly once, closing
// both handles, per spec.md §8 scenario E6: "a second unregister returns
// false".
func (l *Loader) UnregisterPair(id uuid.UUID) bool {
	l.pairsMu.Lock()
	p, ok := l.pairs[id]
	if ok {
		delete(l.pairs, id)
	}
	l.pairsMu.Unlock()
	if !ok {
		return false
	}
	p.Local.Close()
	p.Remote.Close()
	return true
}
