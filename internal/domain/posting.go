package domain

import "strings"

// Posting is one listing card scraped from the marketplace search page.
// It is built once per scrape and never mutated afterwards.
type Posting struct {
	URL          string
	Title        string
	Description  string
	BudgetText   string
	BidsText     string
	BidsCount    int
	RatingTenths *int // nil when the card carries no rating
	PostedAtText string
}

func (p Posting) HasRating() bool { return p.RatingTenths != nil }

// ShortTitle trims the title for log lines.
func (p Posting) ShortTitle(n int) string {
	t := strings.TrimSpace(p.Title)
	r := []rune(t)
	if n <= 0 || len(r) <= n {
		return t
	}
	return string(r[:n]) + "..."
}
