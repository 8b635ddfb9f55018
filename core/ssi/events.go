package ssi

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Emitter is the deterministic stdout event stream mandated by spec.md
// §6, kept entirely separate from the *zap.Logger diagnostic channel
// TransactionManager and Site log through. TransactionManager depends
// only on this interface, never on an io.Writer directly, so a driver
// can substitute a buffering or test double.
type Emitter interface {
	Begin(id TxID, readOnly bool)
	Read(x VarID, value int)
	Write(id TxID, x VarID, value int, sites []SiteID)
	Wait(id TxID, why string)
	Commit(id TxID)
	Abort(id TxID, reason AbortReason)
	SiteFail(s SiteID)
	SiteRecover(s SiteID)
	Dump(lines []string)
}

// StreamEmitter writes the event stream to w, one line per event,
// exactly in the shapes spec.md §6 specifies (or, where §6 leaves the
// wording open, in the terse style the original prototype used).
type StreamEmitter struct {
	w io.Writer
}

// NewStreamEmitter wraps w. A nil w defaults to os.Stdout.
func NewStreamEmitter(w io.Writer) *StreamEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamEmitter{w: w}
}

func (e *StreamEmitter) Begin(id TxID, readOnly bool) {
	if readOnly {
		fmt.Fprintf(e.w, "beginRO %s\n", id)
		return
	}
	fmt.Fprintf(e.w, "begin %s\n", id)
}

func (e *StreamEmitter) Read(x VarID, value int) {
	fmt.Fprintf(e.w, "%s: %d\n", x, value)
}

func (e *StreamEmitter) Write(id TxID, x VarID, value int, sites []SiteID) {
	strs := make([]string, len(sites))
	for i, s := range sites {
		strs[i] = fmt.Sprintf("%d", s)
	}
	fmt.Fprintf(e.w, "%s writes %s: %d [to sites %s]\n", id, x, value, strings.Join(strs, ", "))
}

func (e *StreamEmitter) Wait(id TxID, why string) {
	fmt.Fprintf(e.w, "%s waits - %s\n", id, why)
}

func (e *StreamEmitter) Commit(id TxID) {
	fmt.Fprintf(e.w, "%s commits\n", id)
}

func (e *StreamEmitter) Abort(id TxID, reason AbortReason) {
	fmt.Fprintf(e.w, "%s aborts (%s)\n", id, reason)
}

func (e *StreamEmitter) SiteFail(s SiteID) {
	fmt.Fprintf(e.w, "site %d fails\n", s)
}

func (e *StreamEmitter) SiteRecover(s SiteID) {
	fmt.Fprintf(e.w, "site %d recovers\n", s)
}

func (e *StreamEmitter) Dump(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(e.w, l)
	}
}
