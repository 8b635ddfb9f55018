package ssi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// commitRecord is one entry in the per-variable commit log TM keeps for
// the first-committer-wins check, independent of any Site: TM needs to
// know who committed a write to x and when, not what site served it.
type commitRecord struct {
	Tick   int
	Writer TxID
}

// readEntry records that reader read x as of a version committed at
// CommitTick, kept so that a later commit of x can materialize the RW
// edge "reader -> later committer" per spec.md §4.2/§4.4.
type readEntry struct {
	Reader     TxID
	CommitTick int
}

// TransactionManager orchestrates every transaction, site, and edge in
// the system. It is the single owned value the driver threads through
// the whole run — there is no package-level state, mirroring spec.md
// §9's "no process-wide singletons".
type TransactionManager struct {
	// mu serializes every public method. The deterministic driver and
	// the admin HTTP surface (which drives Fail/Recover/Dump/SiteStatuses
	// from its own goroutine) both hold references to the same TM, so
	// "single-threaded" is an invariant this lock enforces rather than
	// one the caller can be trusted to preserve on its own; it is not
	// part of the deterministic tick semantics, which remain owned
	// entirely by whichever goroutine calls Advance.
	mu sync.Mutex

	sites map[SiteID]*Site
	txs   map[TxID]*Transaction
	order []TxID // creation order, for deterministic wait-retry scans

	graph     *SerializationGraph
	commitLog map[VarID][]commitRecord
	readIdx   map[VarID][]readEntry

	emit    Emitter
	log     *zap.Logger
	metrics *Metrics

	now int
}

// NewTransactionManager builds a TM with all 20 variables seeded at
// tick 0 under the synthetic genesis writer, per spec.md §3. emit must
// not be nil; log and metrics may be (a nop logger / nil metrics are
// substituted).
func NewTransactionManager(emit Emitter, log *zap.Logger, metrics *Metrics) *TransactionManager {
	if log == nil {
		log = zap.NewNop()
	}
	tm := &TransactionManager{
		sites:     make(map[SiteID]*Site, numSites),
		txs:       make(map[TxID]*Transaction),
		graph:     NewSerializationGraph(),
		commitLog: make(map[VarID][]commitRecord),
		readIdx:   make(map[VarID][]readEntry),
		emit:      emit,
		log:       log.Named("tm"),
		metrics:   metrics,
	}

	hosted := make(map[SiteID][]VarID, numSites)
	for _, s := range AllSites() {
		hosted[s] = nil
	}
	for _, v := range AllVariables() {
		for _, s := range HostingSites(v) {
			hosted[s] = append(hosted[s], v)
		}
	}
	for _, s := range AllSites() {
		tm.sites[s] = NewSite(s, hosted[s], tm.log)
	}

	tm.graph.EnsureNode(GenesisTxID)
	for _, v := range AllVariables() {
		val := InitialValue(v)
		for _, s := range HostingSites(v) {
			tm.sites[s].ApplyCommit(GenesisTxID, 0, v, val)
		}
		tm.commitLog[v] = append(tm.commitLog[v], commitRecord{Tick: 0, Writer: GenesisTxID})
	}
	return tm
}

// Now returns the current logical tick.
func (tm *TransactionManager) Now() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.now
}

// Advance moves the tick counter forward by one, as the driver does for
// every input line including blank ones, and retries any transaction
// currently waiting on a read.
func (tm *TransactionManager) Advance() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.now++
	tm.retryWaits()
	return tm.now
}

func (tm *TransactionManager) retryWaits() {
	for _, id := range tm.order {
		tx := tm.txs[id]
		if tx == nil || tx.Status != Active || tx.BlockedOn == nil {
			continue
		}
		tm.attemptAndRecord(tx, *tx.BlockedOn)
	}
}

// Begin creates a read-write transaction. A still-active transaction
// reusing id is superseded (aborted) first, mirroring the original
// prototype's duplicate-id handling.
func (tm *TransactionManager) Begin(id TxID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.supersedeIfActive(id)
	tx := newTransaction(id, ReadWrite, tm.now)
	tm.register(tx)
	tm.emit.Begin(id, false)
}

// BeginReadOnly creates a read-only transaction (the beginRO supplement).
func (tm *TransactionManager) BeginReadOnly(id TxID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.supersedeIfActive(id)
	tx := newTransaction(id, ReadOnly, tm.now)
	tm.register(tx)
	tm.emit.Begin(id, true)
}

func (tm *TransactionManager) supersedeIfActive(id TxID) {
	if tx, ok := tm.txs[id]; ok && tx.Status == Active {
		tm.abortTransaction(tx, ReasonSuperseded)
	}
}

func (tm *TransactionManager) register(tx *Transaction) {
	tm.txs[tx.ID] = tx
	tm.order = append(tm.order, tx.ID)
	tm.graph.EnsureNode(tx.ID)
}

// Read serves R(T, x), per spec.md §4.2.
func (tm *TransactionManager) Read(id TxID, x VarID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tx, err := tm.activeTx(id)
	if err != nil {
		return err
	}
	if !IsValidVar(x) {
		return ErrUnknownVariable
	}
	if v, ok := tx.pendingValue(x); ok {
		tx.BlockedOn = nil
		tx.Reads = append(tx.Reads, readRecord{Var: x, Value: v, ReadTick: tm.now})
		tm.emit.Read(x, v)
		tm.metrics.read(context.Background())
		return nil
	}
	tm.attemptAndRecord(tx, x)
	return nil
}

type readOutcome int

const (
	outcomeServed readOutcome = iota
	outcomeWaiting
	outcomeAborted
)

// attemptAndRecord runs the read algorithm for x against tx's snapshot
// and applies whichever outcome results: serve, wait, or abort. Shared
// between Read and the per-tick wait retry.
func (tm *TransactionManager) attemptAndRecord(tx *Transaction, x VarID) {
	outcome, v, site, why, reason := tm.attemptRead(tx, x)
	switch outcome {
	case outcomeServed:
		tx.BlockedOn = nil
		tx.Reads = append(tx.Reads, readRecord{Var: x, SourceSite: site, Value: v.Value, ReadTick: tm.now, CommitTick: v.CommitTick})
		tm.readIdx[x] = append(tm.readIdx[x], readEntry{Reader: tx.ID, CommitTick: v.CommitTick})
		if v.Writer != tx.ID {
			tm.graph.AddEdge(v.Writer, tx.ID, EdgeWR)
		}
		// tx's snapshot missed every writer that had already committed a
		// later version of x by this point — an outgoing RW edge per
		// spec.md §4.2, independent of whether tx ever writes x itself.
		for _, rec := range tm.commitLog[x] {
			if rec.Writer != tx.ID && rec.Tick > v.CommitTick {
				tm.graph.AddEdge(tx.ID, rec.Writer, EdgeRW)
			}
		}
		tm.emit.Read(x, v.Value)
		tm.metrics.read(context.Background())
	case outcomeWaiting:
		tx.BlockedOn = &x
		tm.emit.Wait(tx.ID, why)
		tm.metrics.wait(context.Background())
	case outcomeAborted:
		tm.abortTransaction(tx, reason)
	}
}

// attemptRead implements §4.1/§4.2's routing: home-site lookup for a
// non-replicated variable, ascending-site-id continuity scan for a
// replicated one, distinguishing a transient block from a permanently
// unservable snapshot.
func (tm *TransactionManager) attemptRead(tx *Transaction, x VarID) (readOutcome, Version, SiteID, string, AbortReason) {
	start := tx.StartTick

	if !IsReplicated(x) {
		site := tm.sites[HomeSite(x)]
		if site.Status() != Up {
			return outcomeWaiting, Version{}, 0, fmt.Sprintf("site %d down, holds %s", site.ID(), x), ""
		}
		v, ok := site.ReadCommitted(x, start)
		if !ok {
			// Unreachable in practice: genesis guarantees a version at
			// tick 0 for every variable.
			return outcomeWaiting, Version{}, 0, fmt.Sprintf("no version of %s yet", x), ""
		}
		return outcomeServed, v, site.ID(), "", ""
	}

	for _, sid := range HostingSites(x) {
		site := tm.sites[sid]
		if v, ok := site.ReadCommitted(x, start); ok {
			return outcomeServed, v, sid, "", ""
		}
	}
	for _, sid := range HostingSites(x) {
		if _, ok := tm.sites[sid].CanEverServe(x, start); ok {
			return outcomeWaiting, Version{}, 0, fmt.Sprintf("no available version of %s at any site", x), ""
		}
	}
	return outcomeAborted, Version{}, 0, "", ReasonSnapshotUnavailable
}

// Write buffers W(T, x, v), per spec.md §4.3.
func (tm *TransactionManager) Write(id TxID, x VarID, value int) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tx, err := tm.activeTx(id)
	if err != nil {
		return err
	}
	if !IsValidVar(x) {
		return ErrUnknownVariable
	}
	if tx.Kind == ReadOnly {
		return ErrReadOnlyWrite
	}

	var targets []SiteID
	for _, sid := range HostingSites(x) {
		if tm.sites[sid].Status() == Up {
			targets = append(targets, sid)
		}
	}
	tx.Writes[x] = &pendingWrite{Value: value, WriteTick: tm.now, TargetSites: targets}
	for _, sid := range targets {
		tx.SitesWritten[sid] = struct{}{}
	}
	if len(targets) == 0 {
		tx.noTargetAbort = true
	}
	tm.emit.Write(id, x, value, targets)
	return nil
}

// End validates and commits or aborts T, per spec.md §4.4.
func (tm *TransactionManager) End(id TxID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tx, ok := tm.txs[id]
	if !ok {
		return ErrUnknownTransaction
	}
	if tx.Status != Active {
		return ErrTransactionDone
	}

	if tx.Kind == ReadOnly || len(tx.Writes) == 0 {
		tm.commitTransaction(tx)
		return nil
	}

	if tx.noTargetAbort {
		tm.abortTransaction(tx, ReasonAvailableCopiesNoTarget)
		return nil
	}
	for _, x := range tx.writtenVars() {
		w := tx.Writes[x]
		for _, sid := range w.TargetSites {
			if tm.sites[sid].FailedSince(w.WriteTick, tm.now) {
				tm.abortTransaction(tx, ReasonSiteFailedAfterWrite)
				return nil
			}
		}
	}

	for _, x := range tx.writtenVars() {
		for _, rec := range tm.commitLog[x] {
			if rec.Writer != id && rec.Tick > tx.StartTick && rec.Tick <= tm.now {
				tm.abortTransaction(tx, ReasonWWConflict)
				return nil
			}
		}
	}

	tm.materializeCommitEdges(tx)
	if tm.graph.HasAbortingCycle(id) {
		tm.abortTransaction(tx, ReasonSSIRWRWCycle)
		return nil
	}

	tm.commitTransaction(tx)
	return nil
}

// materializeCommitEdges adds the WW and RW edges tx's about-to-happen
// commit creates: WW against every already-committed writer of the
// same variables, RW against every transaction (active or committed)
// that read a now-superseded version. This is the incoming half of
// §4.2's RW rule; the outgoing half (tx's own reads against writers
// that had already committed a later version) is materialized as each
// read is served, in attemptAndRecord. Run before the cycle search so
// the new edges are visible to it; if tx ends up aborting, abortTransaction
// strips them again via graph.RemoveNode.
func (tm *TransactionManager) materializeCommitEdges(tx *Transaction) {
	for _, x := range tx.writtenVars() {
		for _, rec := range tm.commitLog[x] {
			if rec.Writer != tx.ID {
				tm.graph.AddEdge(rec.Writer, tx.ID, EdgeWW)
			}
		}
		for _, re := range tm.readIdx[x] {
			if re.Reader == tx.ID {
				continue
			}
			reader, ok := tm.txs[re.Reader]
			if !ok || reader.Status == Aborted {
				continue
			}
			if re.CommitTick < tm.now {
				tm.graph.AddEdge(re.Reader, tx.ID, EdgeRW)
			}
		}
	}
}

func (tm *TransactionManager) commitTransaction(tx *Transaction) {
	commitTick := tm.now
	tx.CommitTick = commitTick
	tx.Status = Committed

	for _, x := range tx.writtenVars() {
		w := tx.Writes[x]
		for _, sid := range HostingSites(x) {
			tm.sites[sid].ApplyCommit(tx.ID, commitTick, x, w.Value)
		}
		tm.commitLog[x] = append(tm.commitLog[x], commitRecord{Tick: commitTick, Writer: tx.ID})
	}

	tm.emit.Commit(tx.ID)
	tm.metrics.commit(context.Background())

	// Keep every active transaction, plus every committed one whose commit
	// tick is after the earliest active start tick.
	keep := tm.activeIDs()
	minStart := -1
	for id := range keep {
		if s := tm.txs[id].StartTick; minStart < 0 || s < minStart {
			minStart = s
		}
	}
	for _, t := range tm.txs {
		if t.Status == Committed && minStart >= 0 && t.CommitTick > minStart {
			keep[t.ID] = struct{}{}
		}
	}
	tm.graph.GC(keep)
}

func (tm *TransactionManager) abortTransaction(tx *Transaction, reason AbortReason) {
	tx.Status = Aborted
	tx.Reason = reason
	tx.Writes = make(map[VarID]*pendingWrite)
	tx.BlockedOn = nil
	tm.graph.RemoveNode(tx.ID)
	tm.emit.Abort(tx.ID, reason)
	tm.metrics.abort(context.Background(), reason)
}

func (tm *TransactionManager) activeIDs() map[TxID]struct{} {
	out := make(map[TxID]struct{})
	for _, id := range tm.order {
		if tx := tm.txs[id]; tx != nil && tx.Status == Active {
			out[id] = struct{}{}
		}
	}
	return out
}

// Fail fails site s, per spec.md §4.5.
func (tm *TransactionManager) Fail(s SiteID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	site, ok := tm.sites[s]
	if !ok {
		return ErrUnknownSite
	}
	if err := site.Fail(tm.now); err != nil {
		return err
	}
	tm.emit.SiteFail(s)
	tm.metrics.siteFailed(context.Background())
	return nil
}

// Recover recovers site s, per spec.md §4.5.
func (tm *TransactionManager) Recover(s SiteID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	site, ok := tm.sites[s]
	if !ok {
		return ErrUnknownSite
	}
	if err := site.Recover(tm.now); err != nil {
		return err
	}
	tm.emit.SiteRecover(s)
	tm.metrics.siteRecovered(context.Background())
	return nil
}

// Dump renders dump(), per spec.md §6: one line per site, sorted by
// variable index, including down sites at their last-known commit.
func (tm *TransactionManager) Dump() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	lines := make([]string, 0, numSites)
	for _, sid := range AllSites() {
		site := tm.sites[sid]
		var parts []string
		for _, v := range site.HostedVars() {
			if val, ok := site.DumpValue(v); ok {
				parts = append(parts, fmt.Sprintf("%s: %d", v, val))
			}
		}
		lines = append(lines, fmt.Sprintf("site %d - %s", sid, strings.Join(parts, ", ")))
	}
	tm.emit.Dump(lines)
	return lines
}

func (tm *TransactionManager) activeTx(id TxID) (*Transaction, error) {
	tx, ok := tm.txs[id]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	if tx.Status != Active {
		return nil, ErrTransactionDone
	}
	return tx, nil
}

// Status reports a transaction's current state, for the admin API.
func (tm *TransactionManager) Status(id TxID) (*Transaction, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tx, ok := tm.txs[id]
	return tx, ok
}

// SiteStatuses reports every site's up/down state, keyed by site id,
// for the admin API.
func (tm *TransactionManager) SiteStatuses() map[SiteID]SiteStatus {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make(map[SiteID]SiteStatus, numSites)
	for _, s := range AllSites() {
		out[s] = tm.sites[s].Status()
	}
	return out
}
