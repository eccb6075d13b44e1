// Package pricing picks the bid amount for an accepted posting.
//
// Tiers, in order:
//  1. fewer than MinBidsForInsight bids: the scorer's suggested price, else the client budget average
//  2. otherwise: the marketplace insight value times Percentage
//  3. insight unavailable: the client budget average
package pricing

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/logger"
)

const (
	DefaultBudget            = 50000
	DefaultPercentage        = 0.70
	DefaultMinBidsForInsight = 5
)

type Tier string

const (
	TierSuggested Tier = "suggested"
	TierBudget    Tier = "client_budget"
	TierInsight   Tier = "insight"
	TierFallback  Tier = "budget_fallback"
)

// InsightSource returns the aggregate price signal for a posting. ok is
// false when the page has no numeric value.
type InsightSource interface {
	InsightValue(ctx context.Context, postingURL string) (value int, ok bool, err error)
}

type Quote struct {
	Price   int
	Tier    Tier
	Insight int // raw insight value when Tier is TierInsight
}

type Strategy struct {
	MinBidsForInsight int
	Percentage        float64
	DefaultBudget     int
	Insight           InsightSource
	Log               *zap.SugaredLogger
}

var reInt = regexp.MustCompile(`\d+`)

// ParseBudgetAverage averages every integer in text after removing thousands
// separators. Text without digits yields def.
func ParseBudgetAverage(text string, def int) int {
	clean := strings.NewReplacer(".", "", ",", "").Replace(text)
	nums := reInt.FindAllString(clean, -1)
	sum, n := 0, 0
	for _, s := range nums {
		v, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return def
	}
	return sum / n
}

func (s Strategy) budget(p domain.Posting) int {
	def := s.DefaultBudget
	if def <= 0 {
		def = DefaultBudget
	}
	return ParseBudgetAverage(p.BudgetText, def)
}

// Price never fails; every error path ends in the budget average.
func (s Strategy) Price(ctx context.Context, p domain.Posting, d domain.Decision) Quote {
	log := logger.OrNop(s.Log).With("url", p.URL)

	if p.BidsCount < s.MinBidsForInsight {
		if d.HasSuggestedPrice() {
			log.Infow("few bids, using suggested price", "bids", p.BidsCount, "price", *d.SuggestedPrice)
			return Quote{Price: *d.SuggestedPrice, Tier: TierSuggested}
		}
		avg := s.budget(p)
		log.Infow("few bids and no suggested price, using client budget", "bids", p.BidsCount, "price", avg)
		return Quote{Price: avg, Tier: TierBudget}
	}

	if s.Insight != nil {
		v, ok, err := s.Insight.InsightValue(ctx, p.URL)
		switch {
		case err != nil:
			log.Warnw("insight unavailable", "error", err)
		case ok:
			pct := s.Percentage
			if pct <= 0 {
				pct = DefaultPercentage
			}
			price := int(math.Round(float64(v) * pct))
			log.Infow("insight price", "insight", v, "percentage", pct, "price", price)
			return Quote{Price: price, Tier: TierInsight, Insight: v}
		default:
			log.Infow("insight page has no numeric value")
		}
	}

	avg := s.budget(p)
	log.Infow("falling back to client budget", "price", avg)
	return Quote{Price: avg, Tier: TierFallback}
}
