package ssi

import "sync"

// EdgeLabel tags a SerializationGraph edge.
type EdgeLabel int

const (
	EdgeWR EdgeLabel = iota
	EdgeWW
	EdgeRW
)

func (l EdgeLabel) String() string {
	switch l {
	case EdgeWR:
		return "WR"
	case EdgeWW:
		return "WW"
	default:
		return "RW"
	}
}

type edge struct {
	From, To TxID
	Label    EdgeLabel
}

// SerializationGraph is a directed multigraph over transaction ids, with
// edges stored as (from, to, label) tuples it alone owns — Transaction
// records never hold pointers into it, only their own id. Cycle search
// is restricted to the RW/RW adjacency SSI abort rule.
type SerializationGraph struct {
	mu sync.RWMutex

	present map[TxID]struct{}
	out     map[TxID][]edge
	in      map[TxID][]edge

	// fast pre-filters, per spec.md §9.
	hasOutRW map[TxID]bool
	hasInRW  map[TxID]bool

	seen map[edge]struct{}
}

// NewSerializationGraph returns an empty graph.
func NewSerializationGraph() *SerializationGraph {
	return &SerializationGraph{
		present:  make(map[TxID]struct{}),
		out:      make(map[TxID][]edge),
		in:       make(map[TxID][]edge),
		hasOutRW: make(map[TxID]bool),
		hasInRW:  make(map[TxID]bool),
		seen:     make(map[edge]struct{}),
	}
}

// EnsureNode adds id as a node with no edges if it isn't present yet.
func (g *SerializationGraph) EnsureNode(id TxID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.present[id] = struct{}{}
}

// AddEdge records from->to labeled l, deduplicating identical tuples.
func (g *SerializationGraph) AddEdge(from, to TxID, l EdgeLabel) {
	if from == to {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	e := edge{From: from, To: to, Label: l}
	if _, dup := g.seen[e]; dup {
		return
	}
	g.seen[e] = struct{}{}
	g.present[from] = struct{}{}
	g.present[to] = struct{}{}
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	if l == EdgeRW {
		g.hasOutRW[from] = true
		g.hasInRW[to] = true
	}
}

// RemoveNode deletes id and every edge touching it. Used when a
// transaction aborts: it contributes no committed versions and no reads
// that anyone else should be able to see.
func (g *SerializationGraph) RemoveNode(id TxID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeNodeLocked(id)
}

func (g *SerializationGraph) removeNodeLocked(id TxID) {
	for _, e := range g.out[id] {
		g.in[e.To] = removeEdge(g.in[e.To], e)
		delete(g.seen, e)
	}
	for _, e := range g.in[id] {
		g.out[e.From] = removeEdge(g.out[e.From], e)
		delete(g.seen, e)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.present, id)
	delete(g.hasOutRW, id)
	delete(g.hasInRW, id)
}

func removeEdge(edges []edge, target edge) []edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

// HasAbortingCycle reports whether t participates in a cycle containing
// two consecutive RW edges, per spec.md §3/§4.4. It only needs to check
// t itself: any such cycle not touching t was already resolved when its
// own participants committed (aborted transactions are removed from the
// graph immediately, committed ones never retroactively aborted).
func (g *SerializationGraph) HasAbortingCycle(t TxID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasOutRW[t] && !g.hasInRW[t] {
		return false
	}

	// t as the middle node B of A-RW->B-RW->C: check both t's outgoing
	// RW edges paired with its incoming RW edges (t==B), and pairs where
	// t is an endpoint of exactly one of the two edges (t==A or t==C).
	for _, e1 := range g.allRWEdges() {
		for _, e2 := range g.allRWEdges() {
			if e1.To != e2.From {
				continue
			}
			a, b, c := e1.From, e1.To, e2.To
			if a != t && b != t && c != t {
				continue
			}
			if g.reachableLocked(c, a) {
				return true
			}
		}
	}
	return false
}

func (g *SerializationGraph) allRWEdges() []edge {
	var edges []edge
	for _, es := range g.out {
		for _, e := range es {
			if e.Label == EdgeRW {
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// reachableLocked reports whether to is reachable from from via any
// edges (any label), including the trivial case from == to. Callers
// hold g.mu.
func (g *SerializationGraph) reachableLocked(from, to TxID) bool {
	if from == to {
		return true
	}
	visited := map[TxID]bool{from: true}
	stack := []TxID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.out[cur] {
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				visited[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// GC drops every node that is not in active and has no edge to or from
// a node in active. TransactionManager passes its active transactions
// together with every committed transaction whose commit tick is after
// the earliest active start tick, so a committed transaction stays in the
// graph while some active transaction began before its commit.
// active lists the transactions GC must not disturb or disconnect from.
func (g *SerializationGraph) GC(active map[TxID]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range g.present {
		if _, isActive := active[id]; isActive {
			continue
		}
		if g.touchesActiveLocked(id, active) {
			continue
		}
		g.removeNodeLocked(id)
	}
}

func (g *SerializationGraph) touchesActiveLocked(id TxID, active map[TxID]struct{}) bool {
	for _, e := range g.out[id] {
		if _, ok := active[e.To]; ok {
			return true
		}
	}
	for _, e := range g.in[id] {
		if _, ok := active[e.From]; ok {
			return true
		}
	}
	return false
}
