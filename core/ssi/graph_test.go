package ssi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasAbortingCycleDetectsConsecutiveRW(t *testing.T) {
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeRW)
	g.AddEdge("T2", "T1", EdgeRW)

	assert.True(t, g.HasAbortingCycle("T1"))
	assert.True(t, g.HasAbortingCycle("T2"))
}

func TestHasAbortingCycleIgnoresSingleRWEdge(t *testing.T) {
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeRW)

	assert.False(t, g.HasAbortingCycle("T1"))
	assert.False(t, g.HasAbortingCycle("T2"))
}

func TestHasAbortingCycleIgnoresNonConsecutiveRW(t *testing.T) {
	// T1 -RW-> T2 -WW-> T3 -RW-> T4 -WW-> T1: a 4-cycle with two RW
	// edges, but a WW edge separates them on both sides of the cycle
	// walk (including the wraparound), so neither RW edge has an
	// adjacent RW partner and the abort rule must not trip.
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeRW)
	g.AddEdge("T2", "T3", EdgeWW)
	g.AddEdge("T3", "T4", EdgeRW)
	g.AddEdge("T4", "T1", EdgeWW)

	assert.False(t, g.HasAbortingCycle("T1"))
	assert.False(t, g.HasAbortingCycle("T2"))
	assert.False(t, g.HasAbortingCycle("T3"))
	assert.False(t, g.HasAbortingCycle("T4"))
}

func TestHasAbortingCycleThreeNodeRWChain(t *testing.T) {
	// T1 -RW-> T2 -RW-> T3 -WW-> T1: two consecutive RW edges closing a
	// cycle via a WW edge back to T1.
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeRW)
	g.AddEdge("T2", "T3", EdgeRW)
	g.AddEdge("T3", "T1", EdgeWW)

	assert.True(t, g.HasAbortingCycle("T1"))
	assert.True(t, g.HasAbortingCycle("T2"))
	assert.True(t, g.HasAbortingCycle("T3"))
}

func TestRemoveNodeStripsAllEdges(t *testing.T) {
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeWR)
	g.AddEdge("T2", "T1", EdgeRW)

	g.RemoveNode("T1")

	assert.Empty(t, g.out["T1"])
	assert.Empty(t, g.in["T1"])
	assert.Empty(t, g.out["T2"])
	assert.Empty(t, g.in["T2"])
}

func TestGCRetainsNodesTouchingActive(t *testing.T) {
	g := NewSerializationGraph()
	g.EnsureNode("T1")
	g.EnsureNode("T2")
	g.AddEdge("T1", "T2", EdgeWR)

	g.GC(map[TxID]struct{}{"T2": {}})

	_, present := g.present["T1"]
	assert.True(t, present, "T1 feeds an edge into the still-active T2 and must survive GC")
}

func TestGCDropsFullySettledNodes(t *testing.T) {
	g := NewSerializationGraph()
	g.EnsureNode("T1")

	g.GC(map[TxID]struct{}{})

	_, present := g.present["T1"]
	assert.False(t, present)
}

func TestAddEdgeDeduplicates(t *testing.T) {
	g := NewSerializationGraph()
	g.AddEdge("T1", "T2", EdgeWW)
	g.AddEdge("T1", "T2", EdgeWW)

	require.Len(t, g.out["T1"], 1)
}

func TestAddEdgeIgnoresSelfLoop(t *testing.T) {
	g := NewSerializationGraph()
	g.AddEdge("T1", "T1", EdgeRW)

	assert.Empty(t, g.out["T1"])
}
