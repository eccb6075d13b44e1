// Package submit drives the bid form of one posting from navigation to a
// classified outcome.
//
//	NotStarted -> Navigated -> BidFormOpened -> PriceFilled -> DeliveryFilled
//	  -> ProposalTextFilled -> ExtrasCleared -> Submitted -> Confirmed | Indeterminate
//
// Any step may exit early with SessionExpired, FormElementMissing,
// AlreadyBid, Refused or Aborted.
package submit

import "bidbot-engine/internal/domain"

type State int

const (
	NotStarted State = iota
	Navigated
	BidFormOpened
	PriceFilled
	DeliveryFilled
	ProposalTextFilled
	ExtrasCleared
	Submitted
	Confirmed
	Indeterminate
	SessionExpired
	FormElementMissing
	AlreadyBid
	Refused
	Aborted
)

var stateNames = [...]string{
	NotStarted:         "not_started",
	Navigated:          "navigated",
	BidFormOpened:      "bid_form_opened",
	PriceFilled:        "price_filled",
	DeliveryFilled:     "delivery_filled",
	ProposalTextFilled: "proposal_text_filled",
	ExtrasCleared:      "extras_cleared",
	Submitted:          "submitted",
	Confirmed:          "confirmed",
	Indeterminate:      "indeterminate",
	SessionExpired:     "session_expired",
	FormElementMissing: "form_element_missing",
	AlreadyBid:         "already_bid",
	Refused:            "refused",
	Aborted:            "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) Terminal() bool { return s >= Confirmed }

// Outcome maps a terminal state to the run-level outcome.
func (s State) Outcome() domain.Outcome {
	switch s {
	case Confirmed:
		return domain.OutcomeSent
	case Indeterminate:
		return domain.OutcomeIndeterminate
	case AlreadyBid:
		return domain.OutcomeAlreadyBid
	case SessionExpired:
		return domain.OutcomeSessionExpired
	case Refused:
		return domain.OutcomeSubmitRefused
	case FormElementMissing:
		return domain.OutcomeFormMissing
	default:
		return domain.OutcomeAborted
	}
}

type Request struct {
	URL          string
	Title        string
	Price        int
	DeliveryDays int
	ProposalText string
}

type Result struct {
	// State is terminal; Reached is the last step completed before it.
	State   State
	Reached State
	// Step names the form step that failed, if any.
	Step   string
	Price  int
	Extras int
	Err    error
}

func (r Result) Outcome() domain.Outcome { return r.State.Outcome() }
