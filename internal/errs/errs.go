// Package errs re-exports github.com/cockroachdb/errors and defines the
// sentinel errors the engine uses to tell posting-local failures from
// run-fatal ones.
//
//	if err := ledger.Append(entry); err != nil {
//	    return errs.Wrap(err, "record rejection")
//	}
//
//	if errs.Is(err, errs.ErrSessionExpired) {
//	    // abort the run
//	}
package errs

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	Mark         = crdb.Mark
	FlattenHints = crdb.FlattenHints
)

var (
	// ErrServiceUnavailable means the scoring service gave no usable answer.
	ErrServiceUnavailable = New("scoring service unavailable")

	// ErrSessionExpired means the marketplace redirected to login mid-run.
	ErrSessionExpired = New("session expired")

	// ErrManualLoginRequired means no stored session works and nobody logged in.
	ErrManualLoginRequired = New("manual login required")

	// ErrCapReached means a per-run, daily or weekly cap stops the run.
	ErrCapReached = New("proposal cap reached")

	// ErrLedgerLocked means another engine instance holds the ledger.
	ErrLedgerLocked = New("ledger locked by another instance")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")
)

// IsRunFatal reports whether err should stop the remaining candidates.
func IsRunFatal(err error) bool {
	return err != nil && IsAny(err, ErrSessionExpired, ErrManualLoginRequired, ErrCapReached)
}
