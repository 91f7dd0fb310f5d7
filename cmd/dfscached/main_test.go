package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/aliyunfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/azurefs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/gcsfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/localfs"
	"github.com/DavidCohen17/ImpalaToGo/internal/remotefs/s3fs"
)

func TestNewAdapterFactoryDispatchesByDfsTypeAndCredentialsKey(t *testing.T) {
	factory := newAdapterFactory()

	cases := []struct {
		name string
		d    descriptor.Descriptor
		want any
	}{
		{"local", descriptor.Descriptor{DfsType: descriptor.Local}, &localfs.Adapter{}},
		{"s3n", descriptor.Descriptor{DfsType: descriptor.S3N, Host: "b"}, &s3fs.Adapter{}},
		{"s3a", descriptor.Descriptor{DfsType: descriptor.S3A, Host: "b"}, &s3fs.Adapter{}},
		{"other-azure", descriptor.Descriptor{DfsType: descriptor.Other, CredentialsKey: "azure", Host: "a", Label: "c"}, &azurefs.Adapter{}},
		{"other-gcs", descriptor.Descriptor{DfsType: descriptor.Other, CredentialsKey: "gcs", Host: "b"}, &gcsfs.Adapter{}},
		{"other-aliyun", descriptor.Descriptor{DfsType: descriptor.Other, CredentialsKey: "aliyun", Host: "e", Label: "b"}, &aliyunfs.Adapter{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter, err := factory(tc.d)
			require.NoError(t, err)
			assert.IsType(t, tc.want, adapter)
		})
	}
}

func TestNewAdapterFactoryRejectsUnknownCombinations(t *testing.T) {
	factory := newAdapterFactory()

	_, err := factory(descriptor.Descriptor{DfsType: descriptor.Other, CredentialsKey: "unknown"})
	assert.Error(t, err)

	_, err = factory(descriptor.Descriptor{DfsType: descriptor.DfsType("bogus")})
	assert.Error(t, err)
}
