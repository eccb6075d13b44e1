package pricing

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/discover"
	"bidbot-engine/internal/humanize"
)

var insightSelectors = []string{
	"div.col-sm-3.text-right span",
	"#appH4",
	"h4.abig",
}

// BrowserInsight reads the insight page through the shared browser tab.
type BrowserInsight struct {
	Driver browser.Driver
	Pacer  *humanize.Pacer
}

func (b BrowserInsight) InsightValue(ctx context.Context, postingURL string) (int, bool, error) {
	if err := b.Driver.Navigate(ctx, browser.InsightURL(postingURL)); err != nil {
		return 0, false, err
	}
	if err := b.Pacer.AfterPage(ctx); err != nil {
		return 0, false, err
	}
	if err := b.Driver.ScrollTo(ctx, 300); err != nil {
		return 0, false, err
	}
	if err := b.Pacer.AfterScroll(ctx); err != nil {
		return 0, false, err
	}

	html, err := b.Driver.HTML(ctx)
	if err != nil {
		return 0, false, err
	}
	v, ok := ExtractInsight(strings.NewReader(html))
	return v, ok, nil
}

// ExtractInsight returns the digits of the first selector whose first match
// contains any digit.
func ExtractInsight(r io.Reader) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return 0, false
	}
	for _, sel := range insightSelectors {
		text := doc.Find(sel).First().Text()
		if !strings.ContainsAny(text, "0123456789") {
			continue
		}
		return discover.ParseBids(text), true
	}
	return 0, false
}
