// Package discover turns the marketplace listing page into candidate
// postings and drops the ones the engine must not look at again.
package discover

import (
	"go.uber.org/zap"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/logger"
)

const (
	ReasonSeen      = "already_processed"
	ReasonLowRating = "low_rating"
	ReasonDuplicate = "duplicate_in_listing"
)

// MinRatingTenths is the default client rating floor (3.5 stars).
const MinRatingTenths = 35

// Seen answers ledger membership.
type Seen interface {
	ContainsURL(url string) bool
}

type Skip struct {
	Posting domain.Posting
	Reason  string
}

type Filter struct {
	Seen            Seen
	MinRatingTenths int
	Log             *zap.SugaredLogger
}

func ShouldKeep(f Filter, p domain.Posting) (keep bool, reason string) {
	// 1) Already in the ledger
	if f.Seen != nil && f.Seen.ContainsURL(p.URL) {
		return false, ReasonSeen
	}
	// 2) Toxic clients; postings without a rating pass
	if p.HasRating() && *p.RatingTenths < f.MinRatingTenths {
		return false, ReasonLowRating
	}
	return true, ""
}

// Apply runs every posting through ShouldKeep, preserving order, and
// normalizes the bid count of the survivors. A URL listed twice is kept
// once.
func (f Filter) Apply(in []domain.Posting) (kept []domain.Posting, skipped []Skip) {
	log := logger.OrNop(f.Log)
	batch := make(map[string]struct{}, len(in))
	for _, p := range in {
		keep, reason := ShouldKeep(f, p)
		if _, dup := batch[p.URL]; keep && dup {
			keep, reason = false, ReasonDuplicate
		}
		if !keep {
			log.Infow("posting skipped", "title", p.ShortTitle(30), "url", p.URL, "reason", reason)
			skipped = append(skipped, Skip{Posting: p, Reason: reason})
			continue
		}
		batch[p.URL] = struct{}{}
		p.BidsCount = ParseBids(p.BidsText)
		kept = append(kept, p)
	}
	return kept, skipped
}
