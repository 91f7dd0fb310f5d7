// Package localpath implements spec.md §4.F: a deterministic, pure-function
// mapping from (fsType, host, port, remotePath, transform) to a unique
// local path, collision-free, stable across processes, not dependent on
// wall-clock time, process id, or access order.
package localpath

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
)

// escape turns an absolute remote path into a filesystem-safe relative
// path segment: the leading slash is dropped and any remaining slash is
// kept as a directory separator (remote directory structure survives
// locally), while segments are percent-escaped to rule out traversal and
// reserved characters.
func escape(remotePath string) string {
	clean := path.Clean("/" + remotePath)
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// transformHash returns the hex BLAKE3 digest of a transform command, or
// "" when no transform is present — grounded on SPEC_FULL.md §4.F's
// decision to use a strong hash (rather than the transform string itself)
// for the optional path segment, since transform commands can contain
// characters that are not filesystem-safe.
func transformHash(transformCmd string) string {
	if transformCmd == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(transformCmd))
	return hex.EncodeToString(sum[:])
}

// Path computes the local path for a cacheable artifact, per spec.md §4.F:
// cacheRoot / fsType / hostPort / escapedRemotePath [ / transformHash ].
func Path(cacheRoot string, desc descriptor.Descriptor, remotePath string, transformCmd string) string {
	hostPort := desc.Host
	if !desc.IsLocal() {
		hostPort = desc.Host + "_" + strconv.Itoa(desc.Port)
	} else {
		hostPort = "_local"
	}

	segments := []string{cacheRoot, string(desc.DfsType), hostPort, escape(remotePath)}
	if h := transformHash(transformCmd); h != "" {
		segments = append(segments, h)
	}
	return path.Join(segments...)
}

// Fingerprint is the (dfsType, host, remotePath, transform) tuple the
// GLOSSARY names as identifying a cacheable artifact.
type Fingerprint struct {
	DfsType      descriptor.DfsType
	Host         string
	RemotePath   string
	TransformCmd string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s://%s%s#%s", f.DfsType, f.Host, f.RemotePath, transformHash(f.TransformCmd))
}
