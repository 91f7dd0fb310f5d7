// Package registry implements spec.md §4.I: the process-wide cache
// facade. Per spec.md §9's design note, this replaces the source's
// process-wide singleton (CacheLayerRegistry) with an explicitly
// constructed service the embedding process owns and threads through —
// "module-level statics are not required" — while cacheInit remains
// idempotent via sync.Once, matching the source's documented contract.
package registry

import (
	"context"
	"os"
	"sync"

	"github.com/DavidCohen17/ImpalaToGo/internal/cacheengine"
	"github.com/DavidCohen17/ImpalaToGo/internal/cacheerrors"
	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
	"github.com/DavidCohen17/ImpalaToGo/internal/executor"
	"github.com/DavidCohen17/ImpalaToGo/internal/fsbridge"
	"github.com/DavidCohen17/ImpalaToGo/internal/loader"
	"github.com/DavidCohen17/ImpalaToGo/internal/localpath"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/managedfile"
	"github.com/DavidCohen17/ImpalaToGo/internal/metadatacache"
	"github.com/DavidCohen17/ImpalaToGo/internal/metadatacache/persistent"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/tachyonfs"
)

// AdapterFactory builds the remotefs.Adapter for a resolved descriptor —
// the embedding process supplies one per dfsType (localfs.New, s3fs.New,
// azurefs.New, and so on) so this package stays free of cloud-SDK
// imports; only cmd/ wires concrete adapters.
type AdapterFactory func(d descriptor.Descriptor) (remotefs.Adapter, error)

// Cache is the facade spec.md §4.I names.
type Cache struct {
	once sync.Once

	cacheRoot      string
	sizeHardLimit  int64
	memLimitPct    int
	timeslice      int

	descriptors *descriptor.Registry
	meta        metadatacache.Store
	metaDB      *persistent.Cache
	engine      *cacheengine.Engine
	loaderSvc   *loader.Loader
	exec        *executor.Executor
	schedule    fsbridge.Schedule
	factory     AdapterFactory
	ls          logging.Service

	bridgesMu sync.Mutex
	bridges   map[descriptor.RoutingKey]*fsbridge.Bridge
}

// New constructs a Cache with its dependency graph wired but not yet
// configured; configuration happens through the cacheConfigure* calls
// below, per spec.md §6.
func New(factory AdapterFactory, ls logging.Service) *Cache {
	return &Cache{
		descriptors: descriptor.NewRegistry(),
		meta:        metadatacache.New(),
		factory:     factory,
		schedule:    fsbridge.DefaultSchedule(),
		ls:          ls.With("registry"),
		bridges:     make(map[descriptor.RoutingKey]*fsbridge.Bridge),
	}
}

// Init is cacheInit(): idempotent across repeated calls, per spec.md §6.
func (c *Cache) Init() {
	c.once.Do(func() {
		c.ls.Info(logging.Event{Message: "cache initialized"})
	})
}

// ConfigureLocalStorage is cacheConfigureLocalStorage(rootPath): the
// directory must exist and be writable.
func (c *Cache) ConfigureLocalStorage(rootPath string) error {
	info, err := os.Stat(rootPath)
	if err != nil {
		return cacheerrors.Wrap(cacheerrors.KindConfigError, "ConfigureLocalStorage", err)
	}
	if !info.IsDir() {
		return cacheerrors.New(cacheerrors.KindConfigError, "ConfigureLocalStorage", "cache root is not a directory")
	}
	probe := rootPath + "/.write_probe"
	f, err := os.Create(probe)
	if err != nil {
		return cacheerrors.Wrap(cacheerrors.KindConfigError, "ConfigureLocalStorage", err)
	}
	f.Close()
	os.Remove(probe)
	c.cacheRoot = rootPath
	return nil
}

// ConfigureFileSystem is cacheConfigureFileSystem(descriptor): repeated
// calls for the same (dfsType, host) are no-ops, per spec.md §6 (delegated
// to descriptor.Registry.Configure, which already implements this).
func (c *Cache) ConfigureFileSystem(d descriptor.Descriptor) {
	c.descriptors.Configure(d)
}

// ConfigureMetadataCache is cacheConfigureMetadataCache(variant, dir):
// selects the metadatacache.Store backing fsbridge.Bridge, per spec.md
// §4.D ("selected by configuration"). variant == "persistent" opens a
// github.com/cockroachdb/pebble-backed store rooted at dir; any other
// value (including the empty string) keeps the default in-memory one
// already installed by New. Must be called before the first bridgeFor,
// since existing bridges are not rebound.
func (c *Cache) ConfigureMetadataCache(variant, dir string) error {
	if variant != "persistent" {
		return nil
	}
	db, err := persistent.Open(dir)
	if err != nil {
		return cacheerrors.Wrap(cacheerrors.KindConfigError, "ConfigureMetadataCache", err)
	}
	c.metaDB = db
	c.meta = persistent.NewStore(db, c.ls)
	return nil
}

// ConfigureSizeLimits is cacheConfigureSizeLimits(memLimitPercent,
// sizeHardLimitBytes, timeslice): finalizes cache sizing and constructs
// the cacheengine.Engine and loader.Loader, which both need the final
// hard limit up front.
func (c *Cache) ConfigureSizeLimits(memLimitPercent int, sizeHardLimitBytes int64, timeslice int) {
	c.memLimitPct = memLimitPercent
	c.sizeHardLimit = sizeHardLimitBytes
	c.timeslice = timeslice
	c.engine = cacheengine.New(sizeHardLimitBytes, c.ls)
	c.loaderSvc = loader.New(c.engine, c.ls)
}

// SetExecutor installs the shared executor.Executor every fsbridge.Bridge
// runs its remote calls through, per spec.md §4.A ("shared process-wide").
func (c *Cache) SetExecutor(exec *executor.Executor) {
	c.exec = exec
}

// resolve implements spec.md §4.I's "resolve descriptors through (B) when
// host = 'default'; inserting resolved descriptors into a per-type
// routing map" — here resolution is a config lookup rather than a remote
// call, since "default" means "use the ambient fs_default_name", not
// "ask the filesystem who it is".
func (c *Cache) resolve(d descriptor.Descriptor, defaultFS descriptor.Descriptor) descriptor.Descriptor {
	if !d.NeedsResolution() {
		return d
	}
	resolved := defaultFS
	resolved.Effective = true
	c.descriptors.Resolve(d, resolved)
	return resolved
}

// bridgeFor returns (constructing if absent) the fsbridge.Bridge for a
// resolved descriptor, binding the Tachyon specialization of spec.md
// §4.K when the descriptor's dfsType is Tachyon.
func (c *Cache) bridgeFor(d descriptor.Descriptor) (*fsbridge.Bridge, error) {
	key := d.Key()
	c.bridgesMu.Lock()
	defer c.bridgesMu.Unlock()
	if b, ok := c.bridges[key]; ok {
		return b, nil
	}
	adapter, err := c.factory(d)
	if err != nil {
		return nil, cacheerrors.Wrap(cacheerrors.KindConfigError, "bridgeFor", err)
	}
	if d.DfsType == descriptor.Tachyon {
		adapter = tachyonfs.New(adapter, c.ls)
	}
	b := fsbridge.New(d, adapter, c.meta, c.exec, c.schedule, nil, c.ls)
	c.bridges[key] = b
	return b, nil
}

// Find is spec.md §4.G's find(), exposed at the facade.
func (c *Cache) Find(localPath string) *managedfile.File {
	return c.engine.Find(localPath)
}

// Open resolves desc, loads remotePath through the single-flight loader
// (admitting or joining as appropriate), and returns the winning
// ManagedFile — the facade-level entry point scanners call before opening
// a handle.Handle on the result.
func (c *Cache) Open(ctx context.Context, ctxDesc descriptor.Descriptor, remotePath string, transformCmd string, defaultFS descriptor.Descriptor) (*managedfile.File, *fsbridge.Bridge, error) {
	d := c.resolve(ctxDesc, defaultFS)
	local := localpath.Path(c.cacheRoot, d, remotePath, transformCmd)

	origin := managedfile.Origin{Descriptor: d, RemotePath: remotePath, TransformCmd: transformCmd}

	if existing := c.engine.Find(local); existing != nil && existing.State() == managedfile.Ready {
		bridge, err := c.bridgeFor(d)
		if err != nil {
			return nil, nil, err
		}
		if !existing.Dirty() {
			return existing, bridge, nil
		}
		// spec.md §3: dirtyFlag's contract is "next open triggers
		// re-download" — a cached-but-dirty file is served like a miss.
		file, err := c.loaderSvc.Reload(ctx, existing, local, origin, bridge)
		if err != nil {
			return nil, nil, err
		}
		return file, bridge, nil
	}

	bridge, err := c.bridgeFor(d)
	if err != nil {
		return nil, nil, err
	}
	file, err := c.loaderSvc.Load(ctx, local, origin, bridge)
	if err != nil {
		return nil, nil, err
	}
	return file, bridge, nil
}

// DeleteFile is spec.md §4.G's remove(), exposed at the facade.
func (c *Cache) DeleteFile(localPath string, physical bool) bool {
	return c.engine.Remove(localPath, physical)
}

// DeletePath is spec.md §4.G's deletePath(), exposed at the facade.
func (c *Cache) DeletePath(localPrefix string) bool {
	return c.engine.DeletePath(localPrefix)
}

// Loader exposes the loader, whose RegisterPair/UnregisterPair hold
// spec.md §4.H's CREATE_FROM_SELECT side table, at the facade.
func (c *Cache) Loader() *loader.Loader {
	return c.loaderSvc
}

// Close releases resources ConfigureMetadataCache opened — namely the
// persistent variant's pebble handle, when selected.
func (c *Cache) Close() error {
	if c.metaDB != nil {
		return c.metaDB.Close()
	}
	return nil
}

// Sweep runs one background eviction pass, meant to be called by the
// embedding process on a periodic cadence parameterized by the
// configured timeslice, per spec.md §4.G.
func (c *Cache) Sweep() {
	c.engine.Sweep()
}
