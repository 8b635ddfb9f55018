package ssi

import (
	"sync"

	"go.uber.org/zap"
)

// SiteStatus is the up/down state of a Site.
type SiteStatus int

const (
	Up SiteStatus = iota
	Down
)

func (s SiteStatus) String() string {
	if s == Up {
		return "up"
	}
	return "down"
}

// failInterval is a half-open [FailTick, RecoverTick) span of downtime.
// RecoverTick is openRecoverTick while the site is still down.
type failInterval struct {
	FailTick    int
	RecoverTick int
}

const openRecoverTick = -1

func (fi failInterval) open() bool { return fi.RecoverTick == openRecoverTick }

// Site is one Data Manager: it owns the version chains of every variable
// it hosts, its own up/down status, per-variable read availability after
// recovery, and its failure history. Mirrors the BTreeIndexManager shape
// in the teacher: a mutex-guarded struct with no knowledge of any other
// component.
type Site struct {
	mu sync.RWMutex

	id       SiteID
	status   SiteStatus
	chains   map[VarID][]Version
	readable map[VarID]bool
	history  []failInterval

	log *zap.Logger
}

// NewSite builds a Site hosting vars, Up, with no failure history.
func NewSite(id SiteID, vars []VarID, log *zap.Logger) *Site {
	s := &Site{
		id:       id,
		status:   Up,
		chains:   make(map[VarID][]Version, len(vars)),
		readable: make(map[VarID]bool, len(vars)),
		log:      log.Named("site").With(zap.Int("site", int(id))),
	}
	for _, v := range vars {
		s.chains[v] = nil
		s.readable[v] = true
	}
	return s
}

// HostsVar reports whether this site carries a chain for x.
func (s *Site) HostsVar(x VarID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chains[x]
	return ok
}

// Status returns the site's current up/down state.
func (s *Site) Status() SiteStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Fail transitions the site Down at tick, opening a new failure interval.
// Precondition: site is Up.
func (s *Site) Fail(tick int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == Down {
		return ErrSiteAlreadyDown
	}
	s.status = Down
	s.history = append(s.history, failInterval{FailTick: tick, RecoverTick: openRecoverTick})
	for x := range s.readable {
		if IsReplicated(x) {
			s.readable[x] = false
		}
	}
	s.log.Info("site failed", zap.Int("tick", tick))
	return nil
}

// Recover transitions the site Up at tick, closing its open failure
// interval. Replicated variables remain unreadable until a post-recovery
// commit; non-replicated variables become immediately available again.
// Precondition: site is Down.
func (s *Site) Recover(tick int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == Up {
		return ErrSiteAlreadyUp
	}
	s.status = Up
	if n := len(s.history); n > 0 && s.history[n-1].open() {
		s.history[n-1].RecoverTick = tick
	}
	for x := range s.readable {
		if !IsReplicated(x) {
			s.readable[x] = true
		}
	}
	s.log.Info("site recovered", zap.Int("tick", tick))
	return nil
}

// versionAsOf returns the latest version of x with CommitTick <= asOf,
// and its ok flag. Callers hold the lock.
func (s *Site) versionAsOf(x VarID, asOf int) (Version, bool) {
	chain := s.chains[x]
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].CommitTick <= asOf {
			return chain[i], true
		}
	}
	return Version{}, false
}

// continuityHolds reports whether this site's failure history preserves
// continuity over [commitTick, asOf]: no fail occurred strictly after the
// version committed and at or before asOf. This is a fact about
// immutable history, independent of current up/down status, which is
// exactly what lets TransactionManager distinguish "currently blocked but
// will work once unblocked" from "permanently impossible". Callers hold
// the lock.
func (s *Site) continuityHolds(commitTick, asOf int) bool {
	for _, fi := range s.history {
		if fi.FailTick > commitTick && fi.FailTick <= asOf {
			return false
		}
	}
	return true
}

// CanEverServe reports whether, independent of the site's current status
// or readable flag, there exists a version of x with CommitTick <= asOf
// for which this site's failure history never breaks continuity. A false
// result can never become true later: failure history only grows, and
// only with fail ticks at or after "now", which is always > asOf once a
// transaction has started waiting on a fixed snapshot bound. Returns the
// qualifying version when true.
func (s *Site) CanEverServe(x VarID, asOf int) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versionAsOf(x, asOf)
	if !ok {
		return Version{}, false
	}
	if !IsReplicated(x) {
		return v, true
	}
	return v, s.continuityHolds(v.CommitTick, asOf)
}

// ReadCommitted serves a read of x as of the requester's start tick,
// honoring the continuity rule for replicated variables. Returns false
// if this site cannot currently serve the read (down, not readable, or
// continuity broken).
func (s *Site) ReadCommitted(x VarID, startTick int) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != Up {
		return Version{}, false
	}
	if !s.readable[x] {
		return Version{}, false
	}
	v, ok := s.versionAsOf(x, startTick)
	if !ok {
		return Version{}, false
	}
	if IsReplicated(x) && !s.continuityHolds(v.CommitTick, startTick) {
		return Version{}, false
	}
	return v, true
}

// ApplyCommit appends a new committed version of x if this site is Up
// and hosts x, marking it readable. Returns false without effect
// otherwise (the site failed between the write and the commit).
func (s *Site) ApplyCommit(writer TxID, tick int, x VarID, value int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Up {
		return false
	}
	if _, hosts := s.chains[x]; !hosts {
		return false
	}
	s.chains[x] = append(s.chains[x], Version{Value: value, CommitTick: tick, Writer: writer})
	s.readable[x] = true
	return true
}

// FailedSince reports whether the site has recorded any failure with
// FailTick in [from, to] — used by the available-copies abort rule for
// writes.
func (s *Site) FailedSince(from, to int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fi := range s.history {
		if fi.FailTick >= from && fi.FailTick <= to {
			return true
		}
	}
	return false
}

// DumpValue returns the latest committed value of x in this site's chain
// regardless of current status, matching dump()'s "last-known commit"
// behavior for down sites.
func (s *Site) DumpValue(x VarID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, hosts := s.chains[x]
	if !hosts || len(chain) == 0 {
		return 0, false
	}
	return chain[len(chain)-1].Value, true
}

// HostedVars returns the variables this site carries, in index order.
func (s *Site) HostedVars() []VarID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VarID, 0, len(s.chains))
	for _, v := range AllVariables() {
		if _, ok := s.chains[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// ID returns the site's identifier.
func (s *Site) ID() SiteID { return s.id }
