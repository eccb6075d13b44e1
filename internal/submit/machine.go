package submit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/logger"
)

// Page selectors and text markers of the bid workflow.
const (
	BidButtonSelector = "#bid_button"
	AmountSelector    = "#Amount"
	DeliverySelector  = "#BidDeliveryTime"
	ContentSelector   = "#BidContent"
	SubmitSelector    = "#bidForm > div.row > div.col-md-9 > div.wk-submit-block > input"
)

var (
	CookieSelectors = []string{
		"button.ot-sdk-button-primary",
		"button#onetrust-accept-btn-handler",
		"a.ot-close-icon",
		"button.cookie-accept",
	}
	ExtrasSelectors = []string{
		"#bidForm > div.row > div.col-md-9 > div:nth-child(5) > div > section > div:nth-child(1) > div > button",
		"#bidForm button[type='button']",
		"section button",
	}

	AlreadyBidMarkers = []string{"ya has enviado", "already sent"}
	SuccessMarkers    = []string{"gracias", "enviada", "success"}
	RefusalMarkers    = []string{"forbidden", "prohibido", "error 403"}
)

const DefaultExtrasMaxAttempts = 15

var (
	focusPause   = humanize.Range{Min: 500 * time.Millisecond, Max: 1000 * time.Millisecond}
	afterText    = humanize.Range{Min: 1 * time.Second, Max: 2 * time.Second}
	extrasPause  = humanize.Range{Min: 500 * time.Millisecond, Max: 1000 * time.Millisecond}
	settleSubmit = humanize.Range{Min: 4 * time.Second, Max: 6 * time.Second}
)

type Machine struct {
	Driver            browser.Driver
	Pacer             *humanize.Pacer
	Confirmer         Confirmer
	ExtrasMaxAttempts int
	Log               *zap.SugaredLogger
}

type run struct {
	m     *Machine
	ctx   context.Context
	req   Request
	log   *zap.SugaredLogger
	state State
	res   Result
}

// Submit walks the form for req. It never panics on page drift; every
// failure lands in a terminal State.
func (m *Machine) Submit(ctx context.Context, req Request) Result {
	r := &run{
		m:   m,
		ctx: ctx,
		req: req,
		log: logger.OrNop(m.Log).With("url", req.URL, "price", req.Price),
		res: Result{Price: req.Price},
	}
	r.exec()
	r.res.Reached = r.state
	if r.res.State == NotStarted {
		r.res.State = Aborted
	}
	return r.res
}

func (r *run) advance(s State) {
	r.state = s
	r.log.Debugw("state", "state", s.String())
}

// exit records a terminal state. A cancelled context always wins.
func (r *run) exit(s State, step string, err error) {
	if cerr := r.ctx.Err(); cerr != nil {
		s, err = Aborted, cerr
	}
	r.res.State, r.res.Step, r.res.Err = s, step, err
}

func (r *run) exec() {
	d, p := r.m.Driver, r.m.Pacer

	// NotStarted -> Navigated
	target := browser.CanonicalURL(r.req.URL)
	if err := d.Navigate(r.ctx, target); err != nil {
		r.exit(FormElementMissing, "navigate", errs.Wrap(err, "navigate"))
		return
	}
	if err := p.AfterPage(r.ctx); err != nil {
		r.exit(Aborted, "navigate", err)
		return
	}
	if cur, err := d.CurrentURL(r.ctx); err == nil && browser.IsLoginURL(cur) {
		r.exit(SessionExpired, "navigate", errs.Wrapf(errs.ErrSessionExpired, "redirected to %s", cur))
		return
	}
	r.advance(Navigated)

	if err := p.ReadPage(r.ctx, browser.Page(d)); err != nil && r.ctx.Err() != nil {
		r.exit(Aborted, "read", err)
		return
	}
	r.dismissCookies()

	// Navigated -> BidFormOpened
	already, err := browser.PageContains(r.ctx, d, AlreadyBidMarkers...)
	if err != nil {
		r.exit(FormElementMissing, "bid_button", err)
		return
	}
	if already {
		r.exit(AlreadyBid, "bid_button", nil)
		return
	}
	if !r.click(BidButtonSelector, "bid_button") {
		return
	}
	if err := p.AfterPage(r.ctx); err != nil {
		r.exit(Aborted, "bid_button", err)
		return
	}
	r.advance(BidFormOpened)
	if err := p.AfterPage(r.ctx); err != nil {
		r.exit(Aborted, "bid_button", err)
		return
	}

	// BidFormOpened -> PriceFilled -> DeliveryFilled -> ProposalTextFilled
	prof := p.Profile
	if !r.fill(AmountSelector, "price", strconv.Itoa(r.req.Price), prof.Click, prof.Type, prof.Click) {
		return
	}
	r.advance(PriceFilled)

	days := strconv.Itoa(r.req.DeliveryDays) + " Días"
	if !r.fill(DeliverySelector, "delivery", days, prof.Click, prof.Type, prof.Click) {
		return
	}
	r.advance(DeliveryFilled)

	if !r.fill(ContentSelector, "proposal", r.req.ProposalText, focusPause, humanize.ProposalPace, afterText) {
		return
	}
	r.advance(ProposalTextFilled)

	// ProposalTextFilled -> ExtrasCleared
	r.res.Extras = r.clearExtras()
	if r.ctx.Err() != nil {
		r.exit(Aborted, "extras", r.ctx.Err())
		return
	}
	r.advance(ExtrasCleared)

	// ExtrasCleared -> Submitted
	if err := p.AfterPage(r.ctx); err != nil {
		r.exit(Aborted, "submit", err)
		return
	}
	submitBtn, ok := r.find(SubmitSelector, "submit")
	if !ok {
		return
	}
	confirm := r.m.Confirmer
	if confirm == nil {
		confirm = AutoConfirm{}
	}
	yes, err := confirm.Confirm(r.ctx, r.req)
	if err != nil || !yes {
		r.exit(Aborted, "confirm", err)
		return
	}
	res, err := browser.HumanClick(r.ctx, d, r.m.Pacer, submitBtn)
	if err != nil || res == browser.Blocked {
		r.exit(FormElementMissing, "submit", clickErr(SubmitSelector, res, err))
		return
	}
	r.advance(Submitted)
	if err := p.Pause(r.ctx, settleSubmit); err != nil {
		r.exit(Aborted, "verify", err)
		return
	}

	// Submitted -> Refused | Confirmed | Indeterminate, judged on visible text
	html, err := d.HTML(r.ctx)
	text := visibleText(html)
	switch {
	case err != nil:
		r.exit(Indeterminate, "verify", err)
	case browser.ContainsAny(text, RefusalMarkers...):
		r.exit(Refused, "verify", errs.New("marketplace refused the bid"))
	case browser.ContainsAny(text, SuccessMarkers...):
		r.exit(Confirmed, "", nil)
	default:
		r.exit(Indeterminate, "verify", nil)
	}
}

func (r *run) find(sel, step string) (browser.Element, bool) {
	lk, err := r.m.Driver.Find(r.ctx, sel)
	if err != nil {
		r.exit(FormElementMissing, step, errs.Wrapf(err, "find %s", sel))
		return nil, false
	}
	if !lk.Found {
		r.exit(FormElementMissing, step, errs.Newf("%s not found", sel))
		return nil, false
	}
	return lk.Element, true
}

func (r *run) click(sel, step string) bool {
	el, ok := r.find(sel, step)
	if !ok {
		return false
	}
	res, err := browser.HumanClick(r.ctx, r.m.Driver, r.m.Pacer, el)
	if err != nil || res == browser.Blocked {
		r.exit(FormElementMissing, step, clickErr(sel, res, err))
		return false
	}
	return true
}

// fill focuses sel, clears it and types text.
func (r *run) fill(sel, step, text string, before, pace, after humanize.Range) bool {
	el, ok := r.find(sel, step)
	if !ok {
		return false
	}
	if res, err := r.m.Driver.Click(r.ctx, el); err != nil || res == browser.Blocked {
		r.exit(FormElementMissing, step, clickErr(sel, res, err))
		return false
	}
	if err := r.m.Pacer.Pause(r.ctx, before); err != nil {
		r.exit(Aborted, step, err)
		return false
	}
	if err := browser.Type(r.ctx, r.m.Driver, r.m.Pacer, el, text, pace); err != nil {
		r.exit(FormElementMissing, step, errs.Wrapf(err, "type into %s", sel))
		return false
	}
	if err := r.m.Pacer.Pause(r.ctx, after); err != nil {
		r.exit(Aborted, step, err)
		return false
	}
	return true
}

func (r *run) dismissCookies() {
	for _, sel := range CookieSelectors {
		lk, err := r.m.Driver.Find(r.ctx, sel)
		if err != nil || !lk.Found {
			continue
		}
		if vis, err := r.m.Driver.Visible(r.ctx, lk.Element); err != nil || !vis {
			continue
		}
		if res, err := browser.HumanClick(r.ctx, r.m.Driver, r.m.Pacer, lk.Element); err == nil && res == browser.Clicked {
			return
		}
	}
}

// clearExtras removes auxiliary form rows one click at a time. It stops when
// nothing removable is left or after ExtrasMaxAttempts removals.
func (r *run) clearExtras() int {
	max := r.m.ExtrasMaxAttempts
	if max <= 0 {
		max = DefaultExtrasMaxAttempts
	}
	removed := 0
	for attempt := 0; attempt < max; attempt++ {
		if r.ctx.Err() != nil || !r.removeOneExtra() {
			break
		}
		removed++
		_ = r.m.Pacer.Pause(r.ctx, extrasPause)
	}
	r.log.Debugw("extras cleared", "removed", removed)
	return removed
}

func (r *run) removeOneExtra() bool {
	d := r.m.Driver
	for _, sel := range ExtrasSelectors {
		buttons, err := d.FindAll(r.ctx, sel)
		if err != nil {
			continue
		}
		for _, btn := range buttons {
			if vis, err := d.Visible(r.ctx, btn); err != nil || !vis {
				continue
			}
			html, err := d.OuterHTML(r.ctx, btn)
			if err != nil || !hasIcon(html) {
				continue
			}
			if res, err := browser.HumanClick(r.ctx, d, r.m.Pacer, btn); err == nil && res == browser.Clicked {
				return true
			}
		}
	}
	return false
}

// visibleText is the body text of a page, without markup or scripts.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	body := doc.Find("body")
	body.Find("script, style, noscript").Remove()
	return body.Text()
}

// hasIcon reports whether a button's markup wraps an <i> icon.
func hasIcon(outer string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
	if err != nil {
		return false
	}
	return doc.Find("i").Length() > 0
}

func clickErr(sel string, res browser.ClickResult, err error) error {
	if err != nil {
		return errs.Wrapf(err, "click %s", sel)
	}
	return errs.Newf("click %s: %s", sel, res)
}
