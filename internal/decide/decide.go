// Package decide applies the acceptance threshold to the scoring service's
// evaluation of a posting.
package decide

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/logger"
)

const DefaultMinScore = 65

// Scorer evaluates one posting. Any error means the service had no usable
// answer; model fallback and retries are the scorer's own business.
type Scorer interface {
	Evaluate(ctx context.Context, p domain.Posting) (domain.Evaluation, error)
}

type Verdict int

const (
	Unavailable Verdict = iota
	Rejected
	Accepted
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

type Result struct {
	Verdict  Verdict
	Decision domain.Decision
	Err      error
}

type Engine struct {
	Scorer   Scorer
	MinScore int
	Log      *zap.SugaredLogger
}

// Decide calls the scorer exactly once.
func (e Engine) Decide(ctx context.Context, p domain.Posting) Result {
	log := logger.OrNop(e.Log).With("title", p.ShortTitle(40), "url", p.URL)

	ev, err := e.Scorer.Evaluate(ctx, p)
	if err != nil {
		if !errs.Is(err, errs.ErrServiceUnavailable) {
			err = errs.Mark(errs.Wrap(err, "evaluate posting"), errs.ErrServiceUnavailable)
		}
		log.Warnw("scoring unavailable, skipping for this run", "error", err)
		return Result{Verdict: Unavailable, Err: err}
	}

	ev = normalize(ev)
	d := domain.Decision{Evaluation: ev, Accepted: ev.Score >= e.MinScore}
	if !d.Accepted {
		log.Infow("rejected", "score", ev.Score, "reason", ev.Reason)
		return Result{Verdict: Rejected, Decision: d}
	}
	if strings.TrimSpace(ev.ProposalText) == "" {
		err := errs.Wrap(errs.ErrServiceUnavailable, "accepted evaluation has no proposal text")
		log.Warnw("scoring returned no proposal, skipping for this run", "score", ev.Score)
		return Result{Verdict: Unavailable, Err: err}
	}
	log.Infow("accepted", "score", ev.Score, "reason", ev.Reason)
	return Result{Verdict: Accepted, Decision: d}
}

func normalize(ev domain.Evaluation) domain.Evaluation {
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 100 {
		ev.Score = 100
	}
	if ev.DeliveryDays <= 0 {
		ev.DeliveryDays = 1
	}
	if ev.SuggestedPrice != nil && *ev.SuggestedPrice <= 0 {
		ev.SuggestedPrice = nil
	}
	ev.ProposalText = strings.TrimSpace(ev.ProposalText)
	return ev
}
