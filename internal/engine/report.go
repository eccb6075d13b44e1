package engine

import (
	"time"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/store"
)

// Stop reasons recorded on a RunReport.
const (
	StopCompleted      = ""
	StopCapReached     = "cap_reached"
	StopAuthFailed     = "auth_failed"
	StopSessionExpired = "session_expired"
	StopNoPostings     = "no_postings"
	StopListingFailed  = "listing_failed"
	StopLedgerFailed   = "ledger_write_failed"
	StopCancelled      = "cancelled"
	StopPanic          = "panic"
)

type RunReport struct {
	RunID         string                 `json:"runId"`
	Started       time.Time              `json:"started"`
	Finished      time.Time              `json:"finished"`
	Candidates    int                    `json:"candidates"`
	Sent          int                    `json:"sent"`
	Rejected      int                    `json:"rejected"`
	AlreadyBid    int                    `json:"alreadyBid"`
	Indeterminate int                    `json:"indeterminate"`
	Skipped       int                    `json:"skipped"`
	StopReason    string                 `json:"stopReason,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Outcomes      map[domain.Outcome]int `json:"outcomes,omitempty"`
}

func (r RunReport) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// count folds one candidate outcome into the totals. Sent includes
// indeterminate submissions since both consume a run slot.
func (r *RunReport) count(o domain.Outcome) {
	if r.Outcomes == nil {
		r.Outcomes = map[domain.Outcome]int{}
	}
	r.Outcomes[o]++
	switch o {
	case domain.OutcomeSent:
		r.Sent++
	case domain.OutcomeIndeterminate:
		r.Sent++
		r.Indeterminate++
	case domain.OutcomeRejected:
		r.Rejected++
	case domain.OutcomeAlreadyBid:
		r.AlreadyBid++
	case domain.OutcomeSessionExpired:
	default:
		r.Skipped++
	}
}

func (r RunReport) storeRun() store.Run {
	return store.Run{
		RunID:         r.RunID,
		Started:       r.Started,
		Finished:      r.Finished,
		Candidates:    r.Candidates,
		Sent:          r.Sent,
		Rejected:      r.Rejected,
		AlreadyBid:    r.AlreadyBid,
		Indeterminate: r.Indeterminate,
		Skipped:       r.Skipped,
		StopReason:    r.StopReason,
	}
}
