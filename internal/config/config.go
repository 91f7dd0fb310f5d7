// Package config loads the cache's YAML configuration, grounded on the
// teacher's cmd/mcp/main.go LoadConfig: write a generated default file if
// absent, otherwise read and unmarshal with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DescriptorOverride lets a specific (dfsType, host) override the
// process-wide FS bridge timings, per spec.md §6.
type DescriptorOverride struct {
	DfsType       string `yaml:"dfs_type"`
	Host          string `yaml:"host"`
	TimeoutBaseMs int64  `yaml:"fs_timeout_base_ms"`
	Retries       int    `yaml:"fs_retries"`
	BackoffBaseMs int64  `yaml:"fs_backoff_base_ms"`
}

// Config covers every key spec.md §6 names.
type Config struct {
	CacheRoot            string                `yaml:"cache_root"`
	CacheSizeHardLimit    int64                 `yaml:"cache_size_hard_limit"`
	CacheMemLimitPercent  int                   `yaml:"cache_mem_limit_percent"`
	CacheEvictionTimeslice int                  `yaml:"cache_eviction_timeslice"`
	FSDefaultName        string                `yaml:"fs_default_name"`
	FSTimeoutBaseMs      int64                 `yaml:"fs_timeout_base_ms"`
	FSRetries            int                   `yaml:"fs_retries"`
	FSBackoffBaseMs      int64                 `yaml:"fs_backoff_base_ms"`
	DescriptorOverrides  []DescriptorOverride  `yaml:"descriptor_overrides"`

	// MetadataCacheVariant selects internal/registry.Cache's metadata-cache
	// backing store, per spec.md §4.D ("selected by configuration"). The
	// empty string (and any value other than "persistent") keeps the
	// default in-memory variant; "persistent" backs it with
	// github.com/cockroachdb/pebble at MetadataCacheDir.
	MetadataCacheVariant string `yaml:"metadata_cache_variant"`
	MetadataCacheDir     string `yaml:"metadata_cache_dir"`
}

func defaultConfig() *Config {
	return &Config{
		CacheRoot:              "/var/lib/impalatogo/cache",
		CacheSizeHardLimit:     10 << 30, // 10 GiB
		CacheMemLimitPercent:   80,
		CacheEvictionTimeslice: 60,
		FSDefaultName:          "hdfs://nn1:8020",
		FSTimeoutBaseMs:        20000,
		FSRetries:              5,
		FSBackoffBaseMs:        2000,
		MetadataCacheVariant:   "memory",
		MetadataCacheDir:       "/var/lib/impalatogo/metadata",
		DescriptorOverrides:    []DescriptorOverride{},
	}
}

// Load reads path, writing out a generated default (and creating its
// parent directory) when the file does not yet exist, matching the
// teacher's write-default-if-absent LoadConfig behavior.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: failed to create directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("config: failed to write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
