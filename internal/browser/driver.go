// Package browser is the engine's view of a controllable browser tab. The
// chrome subpackage implements it with chromedp; tests use fakes.
package browser

import (
	"context"
	"strings"
	"time"

	"bidbot-engine/internal/humanize"
)

// Element is an opaque handle to a DOM node owned by a Driver.
type Element interface {
	Selector() string
}

// Lookup is the result of Find: either Found with an element or not found.
type Lookup struct {
	Element Element
	Found   bool
}

func NotFound() Lookup        { return Lookup{} }
func Found(el Element) Lookup { return Lookup{Element: el, Found: true} }

type ClickResult int

const (
	Clicked ClickResult = iota
	// Blocked means neither a pointer click nor a scripted click took effect.
	Blocked
)

func (c ClickResult) String() string {
	if c == Clicked {
		return "clicked"
	}
	return "blocked"
}

// Driver is one authenticated browser tab. It is not safe for concurrent use.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// HTML returns the serialized document of the current page.
	HTML(ctx context.Context) (string, error)

	Find(ctx context.Context, selector string) (Lookup, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Visible(ctx context.Context, el Element) (bool, error)
	OuterHTML(ctx context.Context, el Element) (string, error)

	Click(ctx context.Context, el Element) (ClickResult, error)
	Clear(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	Backspace(ctx context.Context, el Element) error

	ScrollHeight(ctx context.Context) (int, error)
	ScrollTo(ctx context.Context, y int) error

	// Eval runs js in the page and decodes its result into out (may be nil).
	Eval(ctx context.Context, js string, out any) error
	InjectStealth(ctx context.Context) error

	// ExportSession and ImportSession move the cookie jar as an opaque blob.
	ExportSession(ctx context.Context) ([]byte, error)
	ImportSession(ctx context.Context, blob []byte) error

	Close() error
}

// PageContains reports whether the current page text holds any needle,
// compared case-insensitively.
func PageContains(ctx context.Context, d Driver, needles ...string) (bool, error) {
	html, err := d.HTML(ctx)
	if err != nil {
		return false, err
	}
	return ContainsAny(html, needles...), nil
}

func ContainsAny(haystack string, needles ...string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if n != "" && strings.Contains(h, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

type keyboard struct {
	d  Driver
	el Element
}

func (k keyboard) SendKeys(ctx context.Context, text string) error { return k.d.SendKeys(ctx, k.el, text) }
func (k keyboard) Backspace(ctx context.Context) error             { return k.d.Backspace(ctx, k.el) }

// Keyboard adapts a focused element to the typist.
func Keyboard(d Driver, el Element) humanize.Keyboard { return keyboard{d: d, el: el} }

var clearPause = humanize.Range{Min: 200 * time.Millisecond, Max: 400 * time.Millisecond}

// Type clears el and types text character by character at pace.
func Type(ctx context.Context, d Driver, p *humanize.Pacer, el Element, text string, pace humanize.Range) error {
	if err := d.Clear(ctx, el); err != nil {
		return err
	}
	if err := p.Pause(ctx, clearPause); err != nil {
		return err
	}
	return p.Type(ctx, Keyboard(d, el), text, pace)
}

// HumanClick pauses around a click the way a person moving a mouse would.
func HumanClick(ctx context.Context, d Driver, p *humanize.Pacer, el Element) (ClickResult, error) {
	if err := p.AfterClick(ctx); err != nil {
		return Blocked, err
	}
	res, err := d.Click(ctx, el)
	if err != nil || res == Blocked {
		return res, err
	}
	return res, p.AfterClick(ctx)
}

// Page adapts a driver to the humanize scroller.
func Page(d Driver) humanize.Scroller { return d }
