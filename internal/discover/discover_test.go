package discover

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/domain"
)

const listingHTML = `<html><body>
<div class="project-item js-project">
  <h2 class="project-title"><span><a href="/job/scraper-python" title="Scraper en Python">Scraper...</a></span></h2>
  <span class="budget">USD 800 - 1.000</span>
  <span class="bids">Propuestas: 3</span>
  <span class="date">Hace 2 horas</span>
  <div class="html-desc">Necesito   un scraper
  para tiendas.</div>
  <span class="stars-rating stars-45"></span>
</div>
<div class="project-item js-project">
  <h2 class="project-title"><span><a href="https://www.workana.com/job/toxic">Cliente dificil</a></span></h2>
  <span class="values">USD 50</span>
  <span class="bids">12</span>
  <span class="stars-rating stars-30"></span>
</div>
<div class="project-item js-project">
  <h2 class="project-title"><span><a href="/job/no-rating">Sin rating</a></span></h2>
</div>
<div class="project-item js-project"><p>no link here</p></div>
<div class="project-item"><h2 class="project-title"><span><a href="/job/not-a-card">x</a></span></h2></div>
</body></html>`

func TestParseListing(t *testing.T) {
	ps, err := ParseListing(strings.NewReader(listingHTML), "https://www.workana.com/jobs?page=1")
	require.NoError(t, err)
	require.Len(t, ps, 3)

	first := ps[0]
	assert.Equal(t, "https://www.workana.com/job/scraper-python", first.URL)
	assert.Equal(t, "Scraper en Python", first.Title)
	assert.Equal(t, "USD 800 - 1.000", first.BudgetText)
	assert.Equal(t, 3, first.BidsCount)
	assert.Equal(t, "Hace 2 horas", first.PostedAtText)
	assert.Equal(t, "Necesito un scraper para tiendas.", first.Description)
	require.NotNil(t, first.RatingTenths)
	assert.Equal(t, 45, *first.RatingTenths)

	second := ps[1]
	assert.Equal(t, "Cliente dificil", second.Title)
	assert.Equal(t, "USD 50", second.BudgetText)
	assert.Equal(t, 30, *second.RatingTenths)

	third := ps[2]
	assert.Nil(t, third.RatingTenths)
	assert.Equal(t, "N/A", third.BudgetText)
	assert.Equal(t, "0", third.BidsText)
	assert.Equal(t, "Sin descripción previa", third.Description)
}

func TestParseBids(t *testing.T) {
	cases := map[string]int{
		"Propuestas: 12": 12,
		"0":              0,
		"":               0,
		"muchas":         0,
		"1.234":          1234,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseBids(in), in)
	}
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, 35, *ParseRating("stars-rating stars-35"))
	assert.Nil(t, ParseRating("stars-rating"))
}

type seenSet map[string]bool

func (s seenSet) ContainsURL(u string) bool { return s[u] }

func TestFilterApply(t *testing.T) {
	in := []domain.Posting{
		{URL: "u1", Title: "seen", RatingTenths: domain.IntPtr(50)},
		{URL: "u2", Title: "rating 30", RatingTenths: domain.IntPtr(30)},
		{URL: "u3", Title: "rating 35", RatingTenths: domain.IntPtr(35), BidsText: "Propuestas: 7"},
		{URL: "u4", Title: "no rating", BidsText: "n/a"},
		{URL: "u5", Title: "rating 49", RatingTenths: domain.IntPtr(49), BidsText: "2"},
	}
	f := Filter{Seen: seenSet{"u1": true}, MinRatingTenths: MinRatingTenths}

	kept, skipped := f.Apply(in)

	require.Len(t, kept, 3)
	assert.Equal(t, []string{"u3", "u4", "u5"}, []string{kept[0].URL, kept[1].URL, kept[2].URL})
	assert.Equal(t, 7, kept[0].BidsCount)
	assert.Equal(t, 0, kept[1].BidsCount)
	assert.Equal(t, 2, kept[2].BidsCount)

	require.Len(t, skipped, 2)
	assert.Equal(t, ReasonSeen, skipped[0].Reason)
	assert.Equal(t, ReasonLowRating, skipped[1].Reason)
}

func TestFilterApplyKeepsRepeatedURLOnce(t *testing.T) {
	in := []domain.Posting{
		{URL: "https://x/job/a", Title: "first", BidsText: "3"},
		{URL: "https://x/job/b", Title: "other"},
		{URL: "https://x/job/a", Title: "again", BidsText: "3"},
	}
	f := Filter{Seen: seenSet{}, MinRatingTenths: MinRatingTenths}

	kept, skipped := f.Apply(in)

	require.Len(t, kept, 2)
	assert.Equal(t, "first", kept[0].Title)
	assert.Equal(t, "https://x/job/b", kept[1].URL)
	require.Len(t, skipped, 1)
	assert.Equal(t, ReasonDuplicate, skipped[0].Reason)
	assert.Equal(t, "again", skipped[0].Posting.Title)
}
