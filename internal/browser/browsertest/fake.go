// Package browsertest provides an in-memory browser.Driver backed by static
// HTML pages, for exercising page workflows without Chrome.
package browsertest

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/errs"
)

type Page struct {
	HTML string
	// RedirectTo, when set, sends the navigation to another URL instead.
	RedirectTo string
}

type Elem struct {
	Sel   string
	Index int
}

func (e Elem) Selector() string { return e.Sel }

// Fake serves Pages by URL and records every interaction.
type Fake struct {
	mu sync.Mutex

	Pages map[string]Page
	// OnClick runs after a click on an element matching the selector. Hooks
	// hold the fake's lock, so they may only use SetHTML and Remove.
	OnClick map[string]func(f *Fake, el Elem)
	// Blocked selectors report browser.Blocked when clicked.
	Blocked map[string]bool
	// FailKeys selectors return an error from SendKeys.
	FailKeys map[string]bool
	Hidden   map[string]bool

	Current     string
	Navigations []string
	Clicks      []string
	Typed       map[string]string
	Evals       []string
	Scrolls     []int
	Session     []byte
	Stealthed   bool
	Closed      bool

	html string
}

func New(pages map[string]Page) *Fake {
	return &Fake{
		Pages:    pages,
		OnClick:  map[string]func(*Fake, Elem){},
		Blocked:  map[string]bool{},
		FailKeys: map[string]bool{},
		Hidden:   map[string]bool{},
		Typed:    map[string]string{},
		html:     "<html><body></body></html>",
	}
}

var _ browser.Driver = (*Fake)(nil)

// SetHTML replaces the current document, as if the page changed in place.
func (f *Fake) SetHTML(html string) {
	f.html = html
}

// Remove deletes the idx-th match of sel from the current document.
func (f *Fake) Remove(sel string, idx int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return
	}
	doc.Find(sel).Eq(idx).Remove()
	if out, err := doc.Html(); err == nil {
		f.html = out
	}
}

func (f *Fake) doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Navigations = append(f.Navigations, url)
	for hops := 0; hops < 5; hops++ {
		p, ok := f.Pages[url]
		if !ok {
			f.Current, f.html = url, "<html><body></body></html>"
			return nil
		}
		if p.RedirectTo == "" {
			f.Current, f.html = url, p.HTML
			return nil
		}
		url = p.RedirectTo
	}
	return errs.New("too many redirects")
}

func (f *Fake) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Current, nil
}

func (f *Fake) HTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, nil
}

func (f *Fake) Find(ctx context.Context, selector string) (browser.Lookup, error) {
	els, err := f.FindAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return browser.NotFound(), err
	}
	return browser.Found(els[0]), nil
}

func (f *Fake) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.doc()
	if err != nil {
		return nil, err
	}
	n := doc.Find(selector).Length()
	out := make([]browser.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Elem{Sel: selector, Index: i})
	}
	return out, nil
}

func (f *Fake) Visible(_ context.Context, el browser.Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Hidden[el.Selector()], nil
}

func (f *Fake) OuterHTML(_ context.Context, el browser.Element) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.doc()
	if err != nil {
		return "", err
	}
	e := el.(Elem)
	sel := doc.Find(e.Sel).Eq(e.Index)
	if sel.Length() == 0 {
		return "", errs.Newf("stale element %s[%d]", e.Sel, e.Index)
	}
	return goquery.OuterHtml(sel)
}

func (f *Fake) Click(ctx context.Context, el browser.Element) (browser.ClickResult, error) {
	if err := ctx.Err(); err != nil {
		return browser.Blocked, err
	}
	f.mu.Lock()
	e := el.(Elem)
	f.Clicks = append(f.Clicks, e.Sel)
	if f.Blocked[e.Sel] {
		f.mu.Unlock()
		return browser.Blocked, nil
	}
	hook := f.OnClick[e.Sel]
	if hook != nil {
		hook(f, e)
	}
	f.mu.Unlock()
	return browser.Clicked, nil
}

func (f *Fake) Clear(_ context.Context, el browser.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Typed, el.Selector())
	return nil
}

func (f *Fake) SendKeys(ctx context.Context, el browser.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailKeys[el.Selector()] {
		return errs.Newf("element %s is not interactable", el.Selector())
	}
	f.Typed[el.Selector()] += text
	return nil
}

func (f *Fake) Backspace(_ context.Context, el browser.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := []rune(f.Typed[el.Selector()])
	if len(r) > 0 {
		f.Typed[el.Selector()] = string(r[:len(r)-1])
	}
	return nil
}

func (f *Fake) ScrollHeight(context.Context) (int, error) { return 900, nil }

func (f *Fake) ScrollTo(_ context.Context, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scrolls = append(f.Scrolls, y)
	return nil
}

func (f *Fake) Eval(_ context.Context, js string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Evals = append(f.Evals, js)
	return nil
}

func (f *Fake) InjectStealth(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stealthed = true
	return nil
}

func (f *Fake) ExportSession(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Session == nil {
		return []byte("[]"), nil
	}
	return append([]byte(nil), f.Session...), nil
}

func (f *Fake) ImportSession(_ context.Context, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Session = append([]byte(nil), blob...)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
