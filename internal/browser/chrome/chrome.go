// Package chrome drives a real Chrome through the DevTools protocol.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/logger"
)

type Options struct {
	Headless   bool
	ProfileDir string
	ExecPath   string
	// NavTimeout bounds a single page load. Zero means 60s.
	NavTimeout time.Duration
	Log        *zap.SugaredLogger
}

const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.navigator.chrome = { runtime: {} };
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['es-ES', 'es', 'en'] });
`

type Driver struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	navTimeout  time.Duration
	log         *zap.SugaredLogger
}

var _ browser.Driver = (*Driver)(nil)

type node struct {
	sel string
	n   *cdp.Node
}

func (e node) Selector() string { return e.sel }

func allocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "es-ES,es"),
		chromedp.Flag("accept-lang", "es-ES,es;q=0.9"),
		chromedp.Flag("profile-directory", "Default"),
		chromedp.Flag("enable-automation", false),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
	)
	if o.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"), chromedp.DisableGPU)
	} else {
		opts = append(opts, chromedp.Flag("headless", false), chromedp.Flag("start-maximized", true))
	}
	if o.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(o.ProfileDir))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Launch starts Chrome and opens one tab. The browser lives until Close,
// independent of ctx.
func Launch(ctx context.Context, o Options) (*Driver, error) {
	log := logger.OrNop(o.Log)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(o)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf), chromedp.WithErrorf(log.Debugf))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errs.WithHint(errs.Wrap(err, "start chrome"),
			"check browser.exec_path, or close other windows using the same profile directory")
	}

	d := &Driver{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  o.NavTimeout,
		log:         log,
	}
	if d.navTimeout <= 0 {
		d.navTimeout = 60 * time.Second
	}
	log.Infow("chrome started", "headless", o.Headless, "profile", o.ProfileDir)
	return d, nil
}

// run executes actions on the tab, aborting when the caller's ctx ends.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	tctx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()
	if err := d.run(tctx, chromedp.Navigate(url)); err != nil {
		return errs.Wrapf(err, "navigate %s", url)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := d.run(ctx, chromedp.Location(&u))
	return u, err
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *Driver) nodes(ctx context.Context, sel string) ([]*cdp.Node, error) {
	var ns []*cdp.Node
	err := d.run(ctx, chromedp.Nodes(sel, &ns, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return ns, err
}

func (d *Driver) Find(ctx context.Context, sel string) (browser.Lookup, error) {
	ns, err := d.nodes(ctx, sel)
	if err != nil || len(ns) == 0 {
		return browser.NotFound(), err
	}
	return browser.Found(node{sel: sel, n: ns[0]}), nil
}

func (d *Driver) FindAll(ctx context.Context, sel string) ([]browser.Element, error) {
	ns, err := d.nodes(ctx, sel)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(ns))
	for _, n := range ns {
		out = append(out, node{sel: sel, n: n})
	}
	return out, nil
}

func nodeOf(el browser.Element) (*cdp.Node, error) {
	n, ok := el.(node)
	if !ok || n.n == nil {
		return nil, errs.Newf("element %q does not belong to this browser", el.Selector())
	}
	return n.n, nil
}

// callOn runs fn with this bound to el.
func (d *Driver) callOn(ctx context.Context, el browser.Element, fn string, out any) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, n, fn, out)
	}))
}

const visibleFn = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`

func (d *Driver) Visible(ctx context.Context, el browser.Element) (bool, error) {
	var ok bool
	err := d.callOn(ctx, el, visibleFn, &ok)
	return ok, err
}

func (d *Driver) OuterHTML(ctx context.Context, el browser.Element) (string, error) {
	n, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var html string
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(n.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

// Click tries a real mouse click first and falls back to a script click
// when something overlays the element.
func (d *Driver) Click(ctx context.Context, el browser.Element) (browser.ClickResult, error) {
	n, err := nodeOf(el)
	if err != nil {
		return browser.Blocked, err
	}
	err = d.run(ctx, chromedp.MouseClickNode(n))
	if err == nil {
		return browser.Clicked, nil
	}
	if ctx.Err() != nil {
		return browser.Blocked, ctx.Err()
	}
	d.log.Debugw("mouse click failed, trying script click", "selector", el.Selector(), "error", err)
	if err := d.callOn(ctx, el, `function() { this.click(); }`, nil); err != nil {
		if ctx.Err() != nil {
			return browser.Blocked, ctx.Err()
		}
		d.log.Warnw("element not clickable", "selector", el.Selector(), "error", err)
		return browser.Blocked, nil
	}
	return browser.Clicked, nil
}

func (d *Driver) Clear(ctx context.Context, el browser.Element) error {
	return d.callOn(ctx, el, `function() {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
	}`, nil)
}

func (d *Driver) SendKeys(ctx context.Context, el browser.Element, text string) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.KeyEventNode(n, text))
}

func (d *Driver) Backspace(ctx context.Context, el browser.Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.KeyEventNode(n, kb.Backspace))
}

func (d *Driver) ScrollHeight(ctx context.Context) (int, error) {
	var h int
	err := d.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &h))
	return h, err
}

func (d *Driver) ScrollTo(ctx context.Context, y int) error {
	return d.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil))
}

func (d *Driver) Eval(ctx context.Context, js string, out any) error {
	return d.run(ctx, chromedp.Evaluate(js, out))
}

func (d *Driver) InjectStealth(ctx context.Context) error {
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
}

type storedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

func (d *Driver) ExportSession(ctx context.Context) ([]byte, error) {
	var cookies []*network.Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, errs.Wrap(err, "read cookies")
	}
	out := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

func (d *Driver) ImportSession(ctx context.Context, blob []byte) error {
	var stored []storedCookie
	if err := json.Unmarshal(blob, &stored); err != nil {
		return errs.Wrap(err, "decode cookies")
	}
	params := make([]*network.CookieParam, 0, len(stored))
	for _, c := range stored {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return d.run(ctx, network.SetCookies(params))
}

func (d *Driver) Close() error {
	d.cancelTab()
	d.cancelAlloc()
	d.log.Infow("chrome closed")
	return nil
}
