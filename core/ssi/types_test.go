package ssi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableReplicationAndHomeSite(t *testing.T) {
	assert.True(t, IsReplicated("x2"))
	assert.True(t, IsReplicated("x20"))
	assert.False(t, IsReplicated("x1"))
	assert.False(t, IsReplicated("x19"))

	assert.Equal(t, SiteID(2), HomeSite("x1"))
	assert.Equal(t, SiteID(4), HomeSite("x3"))
	assert.Equal(t, SiteID(1), HomeSite("x10")) // 1 + (10 mod 10) = 1, though x10 is replicated
}

func TestInitialValue(t *testing.T) {
	assert.Equal(t, 10, InitialValue("x1"))
	assert.Equal(t, 200, InitialValue("x20"))
}

func TestHostingSitesReplicatedCoversAllTen(t *testing.T) {
	sites := HostingSites("x2")
	assert.Len(t, sites, 10)
	assert.Equal(t, SiteID(1), sites[0])
	assert.Equal(t, SiteID(10), sites[9])
}

func TestHostingSitesNonReplicatedIsSingleSite(t *testing.T) {
	sites := HostingSites("x3")
	assert.Equal(t, []SiteID{HomeSite("x3")}, sites)
}

func TestIsValidVarAndSite(t *testing.T) {
	assert.True(t, IsValidVar("x1"))
	assert.True(t, IsValidVar("x20"))
	assert.False(t, IsValidVar("x0"))
	assert.False(t, IsValidVar("x21"))
	assert.False(t, IsValidVar("y1"))

	assert.True(t, IsValidSite(1))
	assert.True(t, IsValidSite(10))
	assert.False(t, IsValidSite(0))
	assert.False(t, IsValidSite(11))
}
