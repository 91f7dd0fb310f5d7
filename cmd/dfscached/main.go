// Command dfscached is a sample embedding process wiring the cache facade
// end to end, grounded on the teacher's cmd/mcp/main.go: load config,
// construct the dependency graph, run a single demo open. This is a demonstration of the
// wiring, not a standalone service — spec.md's Non-goals exclude the SQL
// frontend and scanner-operator byte format that would actually drive it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DavidCohen17/ImpalaToGo/internal/config"
	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
	"github.com/DavidCohen17/ImpalaToGo/internal/executor"
	"github.com/DavidCohen17/ImpalaToGo/internal/handle"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging/zaplog"
	"github.com/DavidCohen17/ImpalaToGo/internal/registry"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/aliyunfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/azurefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/gcsfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/localfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/s3fs"
)

func newAdapterFactory() registry.AdapterFactory {
	return func(d descriptor.Descriptor) (remotefs.Adapter, error) {
		switch d.DfsType {
		case descriptor.Local:
			return localfs.New(), nil
		case descriptor.S3N, descriptor.S3A:
			return s3fs.New(d.Host, d.CredentialsKey), nil
		case descriptor.Other:
			// "other" is a catch-all for the remaining object-store
			// backends; the credentials key carries which one.
			switch d.CredentialsKey {
			case "azure":
				return azurefs.New(d.Host, d.Label, d.Credentials), nil
			case "gcs":
				return gcsfs.New(d.Host), nil
			case "aliyun":
				return aliyunfs.New(d.Host, d.Label, d.CredentialsKey, d.Credentials), nil
			}
		}
		return nil, fmt.Errorf("dfscached: no adapter registered for dfsType %q", d.DfsType)
	}
}

func main() {
	configPath := flag.String("config", "/etc/impalatogo/cache.yaml", "path to cache configuration")
	logPath := flag.String("log", "", "path to log file (empty = stderr)")
	flag.Parse()

	ls, err := zaplog.New(*logPath, logging.InfoLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dfscached: failed to init logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dfscached: failed to load config: %v\n", err)
		os.Exit(1)
	}

	cache := registry.New(newAdapterFactory(), ls)
	cache.Init()

	if err := cache.ConfigureLocalStorage(cfg.CacheRoot); err != nil {
		fmt.Fprintf(os.Stderr, "dfscached: %v\n", err)
		os.Exit(1)
	}
	if err := cache.ConfigureMetadataCache(cfg.MetadataCacheVariant, cfg.MetadataCacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "dfscached: %v\n", err)
		os.Exit(1)
	}
	cache.ConfigureSizeLimits(cfg.CacheMemLimitPercent, cfg.CacheSizeHardLimit, cfg.CacheEvictionTimeslice)
	cache.SetExecutor(executor.New(64, ls))

	cache.ConfigureFileSystem(descriptor.Descriptor{DfsType: descriptor.Local})

	go sweepLoop(cache, time.Duration(cfg.CacheEvictionTimeslice)*time.Second)

	ls.Info(logging.Event{Message: "dfscached started", Metadata: map[string]any{"cache_root": cfg.CacheRoot}})

	demo(context.Background(), cache)
}

func sweepLoop(cache *registry.Cache, period time.Duration) {
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		cache.Sweep()
	}
}

// demo exercises the facade end to end against the local filesystem, the
// one descriptor any machine running this binary can actually reach
// without credentials.
func demo(ctx context.Context, cache *registry.Cache) {
	local := descriptor.Descriptor{DfsType: descriptor.Local}
	file, bridge, err := cache.Open(ctx, local, "/etc/hostname", "", local)
	if err != nil {
		return
	}
	h, err := handle.Open(file, bridge)
	if err != nil {
		return
	}
	defer h.Close()
}
