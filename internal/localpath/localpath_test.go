package localpath

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
)

func TestPathIsDeterministic(t *testing.T) {
	d := descriptor.Descriptor{DfsType: descriptor.HDFS, Host: "nn1", Port: 8020}
	p1 := Path("/cache", d, "/warehouse/t/part-0.parquet", "")
	p2 := Path("/cache", d, "/warehouse/t/part-0.parquet", "")
	assert.Equal(t, p1, p2)
}

func TestPathDistinguishesHosts(t *testing.T) {
	a := descriptor.Descriptor{DfsType: descriptor.HDFS, Host: "nn1", Port: 8020}
	b := descriptor.Descriptor{DfsType: descriptor.HDFS, Host: "nn2", Port: 8020}
	pa := Path("/cache", a, "/x", "")
	pb := Path("/cache", b, "/x", "")
	assert.NotEqual(t, pa, pb)
}

func TestPathDistinguishesTransform(t *testing.T) {
	d := descriptor.Descriptor{DfsType: descriptor.HDFS, Host: "nn1", Port: 8020}
	plain := Path("/cache", d, "/x", "")
	withTransform := Path("/cache", d, "/x", "gunzip")
	assert.NotEqual(t, plain, withTransform)

	again := Path("/cache", d, "/x", "gunzip")
	assert.Equal(t, withTransform, again, "identical transform commands hash identically")
}

func TestPathLocalUsesDedicatedSegment(t *testing.T) {
	local := descriptor.Descriptor{DfsType: descriptor.Local}
	p := Path("/cache", local, "/etc/hostname", "")
	assert.Contains(t, p, "/cache/local/_local/")
}

func TestPathEscapesTraversalAndReservedCharacters(t *testing.T) {
	d := descriptor.Descriptor{DfsType: descriptor.HDFS, Host: "nn1", Port: 8020}
	p := Path("/cache", d, "/../../etc/passwd", "")
	assert.NotContains(t, p, "..")
}

func TestFingerprintStringIncludesTransformHash(t *testing.T) {
	fp := Fingerprint{DfsType: descriptor.S3A, Host: "bucket1", RemotePath: "/x", TransformCmd: "gunzip"}
	s := fp.String()
	assert.Contains(t, s, "s3a://bucket1/x#")
	assert.NotContains(t, s, "gunzip", "the transform command itself must not leak into the fingerprint string")
}
