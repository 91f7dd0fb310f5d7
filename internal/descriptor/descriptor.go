// Package descriptor models spec.md §3's FilesystemDescriptor and its
// routing table, grounded on the teacher's small identity-struct-routed-
// through-a-map idiom (internal/node_registry.Node,
// internal/cluster_service.ClusterNode).
package descriptor

import (
	"fmt"
	"sync"
)

// DfsType is one of the filesystem kinds spec.md §3 names.
type DfsType string

const (
	Local             DfsType = "local"
	HDFS              DfsType = "hdfs"
	S3N               DfsType = "s3n"
	S3A               DfsType = "s3a"
	Tachyon           DfsType = "tachyon"
	DefaultFromConfig DfsType = "default_from_config"
	Other             DfsType = "other"
)

// Descriptor is the tuple (dfsType, host, port, credentials,
// credentialsKey, effectiveFlag) of spec.md §3. Identity for routing is
// (DfsType, Host); Port participates in URI construction only.
type Descriptor struct {
	DfsType        DfsType
	Host           string
	Port           int
	Credentials    string
	CredentialsKey string
	Effective      bool

	// Label is a free-form operator-supplied descriptive string used only
	// in logging, grounded on original_source's NameNodeDescriptor
	// carrying a free-text field beyond its routing tuple.
	Label string
}

// RoutingKey returns the (dfsType, host) tuple that identifies this
// descriptor for routing purposes, per spec.md §3.
type RoutingKey struct {
	DfsType DfsType
	Host    string
}

func (d Descriptor) Key() RoutingKey {
	return RoutingKey{DfsType: d.DfsType, Host: d.Host}
}

// IsLocal reports whether this descriptor denotes the local filesystem: a
// descriptor with no host, per spec.md §3.
func (d Descriptor) IsLocal() bool {
	return d.Host == "" || d.DfsType == Local
}

// NeedsResolution reports whether this descriptor must be resolved against
// ambient configuration before first use, per spec.md §3: host="default"
// and port=0.
func (d Descriptor) NeedsResolution() bool {
	return d.Host == "default" && d.Port == 0
}

func (d Descriptor) URI(remotePath string) string {
	if d.IsLocal() {
		return remotePath
	}
	return fmt.Sprintf("%s://%s:%d%s", d.DfsType, d.Host, d.Port, remotePath)
}

// Registry is the routing table of resolved descriptors, keyed by
// (dfsType, host). Decided Open Question (b)/(c) from spec.md §9: both
// Remove and Contains key by RoutingKey throughout — there is no
// alternate, wrongly-keyed lookup path to reproduce.
type Registry struct {
	mu    sync.RWMutex
	byKey map[RoutingKey]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[RoutingKey]Descriptor)}
}

// Configure registers a descriptor. Repeated calls for the same
// (dfsType, host) are no-ops, per spec.md §6 cacheConfigureFileSystem.
func (r *Registry) Configure(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := d.Key()
	if _, exists := r.byKey[key]; exists {
		return
	}
	r.byKey[key] = d
}

// Resolve rewrites and re-registers a previously "default" descriptor with
// its resolved host/port, per spec.md §3.
func (r *Registry) Resolve(original Descriptor, resolved Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, original.Key())
	r.byKey[resolved.Key()] = resolved
}

func (r *Registry) Lookup(key RoutingKey) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key]
	return d, ok
}

func (r *Registry) Contains(key RoutingKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

func (r *Registry) Remove(key RoutingKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[key]; !ok {
		return false
	}
	delete(r.byKey, key)
	return true
}

func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byKey))
	for _, d := range r.byKey {
		out = append(out, d)
	}
	return out
}
