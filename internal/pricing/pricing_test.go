package pricing

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/browser/browsertest"
	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/humanize"
)

type stubInsight struct {
	value int
	ok    bool
	err   error
	calls int
}

func (s *stubInsight) InsightValue(context.Context, string) (int, bool, error) {
	s.calls++
	return s.value, s.ok, s.err
}

func strategy(in InsightSource) Strategy {
	return Strategy{MinBidsForInsight: 5, Percentage: 0.70, DefaultBudget: DefaultBudget, Insight: in}
}

func TestPriceTiers(t *testing.T) {
	ctx := context.Background()

	t.Run("few bids uses suggested price", func(t *testing.T) {
		in := &stubInsight{value: 1000, ok: true}
		q := strategy(in).Price(ctx,
			domain.Posting{BidsCount: 3, BudgetText: "$800 - $1000"},
			domain.Decision{Evaluation: domain.Evaluation{SuggestedPrice: domain.IntPtr(450)}})
		assert.Equal(t, Quote{Price: 450, Tier: TierSuggested}, q)
		assert.Zero(t, in.calls)
	})

	t.Run("few bids without suggestion uses budget mean", func(t *testing.T) {
		q := strategy(nil).Price(ctx, domain.Posting{BidsCount: 3, BudgetText: "$800 - $1000"}, domain.Decision{})
		assert.Equal(t, Quote{Price: 900, Tier: TierBudget}, q)
	})

	t.Run("zero suggested price counts as absent", func(t *testing.T) {
		q := strategy(nil).Price(ctx,
			domain.Posting{BidsCount: 0, BudgetText: "USD 100"},
			domain.Decision{Evaluation: domain.Evaluation{SuggestedPrice: domain.IntPtr(0)}})
		assert.Equal(t, 100, q.Price)
	})

	t.Run("many bids uses insight percentage", func(t *testing.T) {
		in := &stubInsight{value: 1000, ok: true}
		q := strategy(in).Price(ctx,
			domain.Posting{BidsCount: 12, BudgetText: "$800 - $1000"},
			domain.Decision{Evaluation: domain.Evaluation{SuggestedPrice: domain.IntPtr(450)}})
		assert.Equal(t, Quote{Price: 700, Tier: TierInsight, Insight: 1000}, q)
	})

	t.Run("threshold is inclusive for insight", func(t *testing.T) {
		in := &stubInsight{value: 333, ok: true}
		q := strategy(in).Price(ctx, domain.Posting{BidsCount: 5}, domain.Decision{})
		assert.Equal(t, 233, q.Price)
		assert.Equal(t, 1, in.calls)
	})

	t.Run("insight error falls back to budget", func(t *testing.T) {
		in := &stubInsight{err: errors.New("timeout")}
		q := strategy(in).Price(ctx, domain.Posting{BidsCount: 12, BudgetText: "$800 - $1000"}, domain.Decision{})
		assert.Equal(t, Quote{Price: 900, Tier: TierFallback}, q)
	})

	t.Run("non numeric insight falls back to default budget", func(t *testing.T) {
		in := &stubInsight{ok: false}
		q := strategy(in).Price(ctx, domain.Posting{BidsCount: 12, BudgetText: "A convenir"}, domain.Decision{})
		assert.Equal(t, Quote{Price: 50000, Tier: TierFallback}, q)
	})
}

func TestParseBudgetAverage(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"$800 - $1000", 900},
		{"USD 1.000 - 3.000", 2000},
		{"USD 1,000 - 2,001", 1500},
		{"Menos de USD 50", 50},
		{"N/A", 50000},
		{"", 50000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseBudgetAverage(tc.in, 50000), tc.in)
	}
}

func TestExtractInsight(t *testing.T) {
	v, ok := ExtractInsight(strings.NewReader(`<div class="col-sm-3 text-right"><span>-</span></div><h4 id="appH4">USD 1.250</h4>`))
	require.True(t, ok)
	assert.Equal(t, 1250, v)

	_, ok = ExtractInsight(strings.NewReader(`<h4 class="abig">Sin datos</h4>`))
	assert.False(t, ok)
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestBrowserInsightVisitsInsightPage(t *testing.T) {
	fake := browsertest.New(map[string]browsertest.Page{
		"https://www.workana.com/job/insight/x": {HTML: `<div class="col-sm-3 text-right"><span>USD 2000</span></div>`},
	})
	src := BrowserInsight{
		Driver: fake,
		Pacer:  humanize.NewPacer(humanize.ProfileFor(humanize.SpeedFast), noSleep{}, rand.New(rand.NewPCG(1, 2))),
	}

	v, ok, err := src.InsightValue(context.Background(), "https://www.workana.com/job/x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2000, v)
	assert.Equal(t, []string{"https://www.workana.com/job/insight/x"}, fake.Navigations)
	assert.Equal(t, []int{300}, fake.Scrolls)
}
