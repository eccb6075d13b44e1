package domain

// Evaluation is what the scoring service returns for one posting.
type Evaluation struct {
	Relevant       bool
	Score          int
	Reason         string
	DeliveryDays   int
	ProposalText   string
	SuggestedPrice *int // absent when the service gave no usable price
}

// Decision is an Evaluation after the acceptance threshold was applied.
// It only lives for one pipeline pass; the ledger keeps the outcome.
type Decision struct {
	Evaluation
	Accepted bool
}

func (d Decision) HasSuggestedPrice() bool {
	return d.SuggestedPrice != nil && *d.SuggestedPrice > 0
}
