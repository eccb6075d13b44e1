package discover

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
)

// Listing page selectors.
const (
	CardSelector    = "div.project-item.js-project"
	titleSelector   = "h2.project-title > span > a"
	budgetSelector  = "span.budget"
	valuesSelector  = "span.values"
	bidsSelector    = "span.bids"
	dateSelector    = "span.date"
	descSelector    = "div.html-desc"
	ratingSelector  = "span.stars-rating"
	defaultBudget   = "N/A"
	defaultBids     = "0"
	defaultDate     = "N/A"
	defaultDescText = "Sin descripción previa"
)

var (
	reStars    = regexp.MustCompile(`stars-(\d+)`)
	reNonDigit = regexp.MustCompile(`\D`)
)

// ParseListing extracts one Posting per card, in page order. Cards without a
// link are dropped. Relative links resolve against base.
func ParseListing(r io.Reader, base string) ([]domain.Posting, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errs.Wrap(err, "parse listing html")
	}
	baseURL, _ := url.Parse(base)

	var out []domain.Posting
	doc.Find(CardSelector).Each(func(_ int, card *goquery.Selection) {
		a := card.Find(titleSelector).First()
		if a.Length() == 0 {
			return
		}
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}

		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = cleanText(a.Text())
		}

		budget := card.Find(budgetSelector).First()
		if budget.Length() == 0 {
			budget = card.Find(valuesSelector).First()
		}

		bidsText := textOr(card.Find(bidsSelector).First(), defaultBids)
		p := domain.Posting{
			URL:          resolve(baseURL, href),
			Title:        title,
			Description:  textOr(card.Find(descSelector).First(), defaultDescText),
			BudgetText:   textOr(budget, defaultBudget),
			BidsText:     bidsText,
			BidsCount:    ParseBids(bidsText),
			PostedAtText: textOr(card.Find(dateSelector).First(), defaultDate),
		}
		if stars := card.Find(ratingSelector).First(); stars.Length() > 0 {
			p.RatingTenths = ParseRating(stars.AttrOr("class", ""))
		}
		out = append(out, p)
	})
	return out, nil
}

// ParseRating reads the "stars-NN" class (tenths of a star, 0..50).
func ParseRating(class string) *int {
	m := reStars.FindStringSubmatch(class)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// ParseBids keeps only digits; anything unparseable is zero.
func ParseBids(s string) int {
	digits := reNonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	return cleanText(sel.Text())
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(u).String()
}
