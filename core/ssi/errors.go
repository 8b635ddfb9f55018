package ssi

import "errors"

// AbortReason tags why a transaction aborted. Aborts are outcomes, not Go
// errors: they are reported on the Transaction and through the Emitter,
// never returned up a call stack.
type AbortReason string

const (
	ReasonWWConflict           AbortReason = "ww-conflict"
	ReasonSSIRWRWCycle         AbortReason = "ssi-rw-rw-cycle"
	ReasonSiteFailedAfterWrite AbortReason = "site-failed-after-write"
	ReasonSnapshotUnavailable  AbortReason = "snapshot-unavailable"
	ReasonAvailableCopiesNoTarget AbortReason = "available-copies-no-target"
	// ReasonSuperseded marks a transaction implicitly discarded because a
	// later begin() reused its still-active id, mirroring the original
	// prototype's duplicate-id handling.
	ReasonSuperseded AbortReason = "superseded"
)

// Protocol violations (§7): malformed references to transactions or
// sites that the driver reports and ignores. These are ordinary Go
// errors returned by TransactionManager methods; they never mutate
// transaction or site state.
var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrUnknownSite        = errors.New("unknown site")
	ErrUnknownVariable    = errors.New("unknown variable")
	ErrSiteAlreadyUp      = errors.New("site already up")
	ErrSiteAlreadyDown    = errors.New("site already down")
	ErrTransactionDone    = errors.New("transaction already committed or aborted")
	ErrReadOnlyWrite      = errors.New("write issued against a read-only transaction")
)
