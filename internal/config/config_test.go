package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadWritesDefaultConfigWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Equal(t, *defaultConfig(), onDisk)
}

func TestLoadReadsExistingFileAndKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_root: /custom/root\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/custom/root", cfg.CacheRoot)
	assert.Equal(t, defaultConfig().FSRetries, cfg.FSRetries, "keys absent from the file must keep their default value")
}

func TestLoadParsesDescriptorOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	body := "descriptor_overrides:\n  - dfs_type: s3a\n    host: bucket1\n    fs_retries: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.DescriptorOverrides, 1)
	assert.Equal(t, "s3a", cfg.DescriptorOverrides[0].DfsType)
	assert.Equal(t, "bucket1", cfg.DescriptorOverrides[0].Host)
	assert.Equal(t, 2, cfg.DescriptorOverrides[0].Retries)
}

func TestLoadReturnsErrorOnMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_root: [this is not a string\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
