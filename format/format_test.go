package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByVersionKnown(t *testing.T) {
	for _, v := range []Version{VersionJet3, VersionJet4, VersionAccess2007} {
		f, ok := ByVersion(v)
		require.True(t, ok)
		assert.Equal(t, v, f.Version)
		assert.Greater(t, f.PageSize, 0)
	}
}

func TestByVersionUnknown(t *testing.T) {
	_, ok := ByVersion(Version(99))
	assert.False(t, ok)
}

func TestWriteVersionDetectVersionRoundTrip(t *testing.T) {
	for _, v := range []Version{VersionJet3, VersionJet4, VersionAccess2007} {
		header := make([]byte, 32)
		WriteVersion(header, v)
		f, err := DetectVersion(header)
		require.NoError(t, err)
		assert.Equal(t, v, f.Version)
	}
}

func TestDetectVersionRejectsShortHeader(t *testing.T) {
	_, err := DetectVersion(make([]byte, 4))
	assert.Error(t, err)
}

func TestDetectVersionRejectsUnknownByte(t *testing.T) {
	header := make([]byte, 32)
	header[versionByteOffset] = 0xFF
	_, err := DetectVersion(header)
	assert.Error(t, err)
}

func TestComplexColumnSupportByVersion(t *testing.T) {
	jet3, _ := ByVersion(VersionJet3)
	jet4, _ := ByVersion(VersionJet4)
	access2007, _ := ByVersion(VersionAccess2007)

	assert.False(t, jet3.SupportsComplexColumns)
	assert.False(t, jet4.SupportsComplexColumns)
	assert.True(t, access2007.SupportsComplexColumns)
}

func TestPageTypeString(t *testing.T) {
	assert.Equal(t, "DATA", PageTypeData.String())
	assert.Equal(t, "TABLE_DEF", PageTypeTableDef.String())
	assert.Contains(t, PageType(0x7f).String(), "PageType")
}
