package domain

// Outcome is the terminal classification of one candidate in a run.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeIndeterminate  Outcome = "indeterminate"
	OutcomeRejected       Outcome = "rejected"
	OutcomeAlreadyBid     Outcome = "already_bid"
	OutcomeUnavailable    Outcome = "scoring_unavailable"
	OutcomeFormMissing    Outcome = "form_element_missing"
	OutcomeSubmitRefused  Outcome = "submit_refused"
	OutcomeSessionExpired Outcome = "session_expired"
	OutcomeAborted        Outcome = "aborted"
)

// RecordsLedger reports whether the outcome is final for the posting.
// Everything else leaves the posting eligible for a future run.
func (o Outcome) RecordsLedger() bool {
	switch o {
	case OutcomeSent, OutcomeIndeterminate, OutcomeRejected, OutcomeAlreadyBid:
		return true
	}
	return false
}

// CountsAsSend reports whether the outcome consumed a per-run slot.
func (o Outcome) CountsAsSend() bool {
	return o == OutcomeSent || o == OutcomeIndeterminate
}
