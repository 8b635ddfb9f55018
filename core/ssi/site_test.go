package ssi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSite(id SiteID, vars ...VarID) *Site {
	return NewSite(id, vars, zap.NewNop())
}

func TestSiteFailRecoverTogglesStatus(t *testing.T) {
	s := newTestSite(1, "x2")
	assert.Equal(t, Up, s.Status())

	require.NoError(t, s.Fail(5))
	assert.Equal(t, Down, s.Status())
	assert.ErrorIs(t, s.Fail(6), ErrSiteAlreadyDown)

	require.NoError(t, s.Recover(10))
	assert.Equal(t, Up, s.Status())
	assert.ErrorIs(t, s.Recover(11), ErrSiteAlreadyUp)
}

func TestReplicatedUnreadableUntilPostRecoveryCommit(t *testing.T) {
	s := newTestSite(1, "x2")
	s.ApplyCommit(GenesisTxID, 0, "x2", 20)

	require.NoError(t, s.Fail(5))
	require.NoError(t, s.Recover(10))

	_, ok := s.ReadCommitted("x2", 12)
	assert.False(t, ok, "replicated var must stay unreadable after recovery until a new commit lands")

	require.True(t, s.ApplyCommit("T1", 13, "x2", 99))
	v, ok := s.ReadCommitted("x2", 14)
	require.True(t, ok)
	assert.Equal(t, 99, v.Value)
}

func TestNonReplicatedReadableImmediatelyAfterRecovery(t *testing.T) {
	s := newTestSite(4, "x3")
	s.ApplyCommit(GenesisTxID, 0, "x3", 30)

	require.NoError(t, s.Fail(5))
	require.NoError(t, s.Recover(10))

	v, ok := s.ReadCommitted("x3", 12)
	require.True(t, ok)
	assert.Equal(t, 30, v.Value)
}

func TestContinuityRuleRejectsDiscontinuousRead(t *testing.T) {
	s := newTestSite(1, "x2")
	s.ApplyCommit(GenesisTxID, 0, "x2", 20)

	require.NoError(t, s.Fail(5))
	require.NoError(t, s.Recover(10))
	require.True(t, s.ApplyCommit("T1", 10, "x2", 50))

	// A reader whose snapshot predates the post-recovery commit must not
	// be served the pre-fail version, since continuity over [0, S] is
	// broken by the fail at tick 5.
	_, ok := s.ReadCommitted("x2", 7)
	assert.False(t, ok)
}

func TestApplyCommitRefusedWhileDown(t *testing.T) {
	s := newTestSite(1, "x2")
	require.NoError(t, s.Fail(5))
	ok := s.ApplyCommit("T1", 6, "x2", 1)
	assert.False(t, ok, "a site must not accept writes while down")
}

func TestDumpValueSurvivesFailure(t *testing.T) {
	s := newTestSite(1, "x2")
	s.ApplyCommit(GenesisTxID, 0, "x2", 20)
	require.NoError(t, s.Fail(5))

	v, ok := s.DumpValue("x2")
	require.True(t, ok)
	assert.Equal(t, 20, v, "dump shows the last-known commit even while the site is down")
}

func TestFailedSinceWindow(t *testing.T) {
	s := newTestSite(1, "x2")
	require.NoError(t, s.Fail(5))
	require.NoError(t, s.Recover(8))

	assert.True(t, s.FailedSince(3, 6))
	assert.False(t, s.FailedSince(6, 7))
	assert.True(t, s.FailedSince(5, 5))
}
