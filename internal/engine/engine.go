// Package engine runs one bidding cycle: caps, session, listing, and then
// decide, price and submit for each surviving posting, writing the ledger
// on every terminal outcome.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidbot-engine/internal/auth"
	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/decide"
	"bidbot-engine/internal/discover"
	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/logger"
	"bidbot-engine/internal/metrics"
	"bidbot-engine/internal/pricing"
	"bidbot-engine/internal/quota"
	"bidbot-engine/internal/store"
	"bidbot-engine/internal/submit"
)

var ErrRunInProgress = errs.New("a run is already in progress")

// Launcher opens the browser for one run. The engine closes it.
type Launcher func(ctx context.Context) (browser.Driver, error)

type Settings struct {
	BaseURL   string
	LoginURL  string
	SearchURL string

	Caps            quota.Caps
	MinScore        int
	MinRatingTenths int

	MinBidsForInsight int
	PricePercentage   float64
	DefaultBudget     int
	ExtrasMaxAttempts int

	Profile humanize.Profile
	// NavPerSecond paces page loads per host; 0 disables it.
	NavPerSecond float64
}

type Engine struct {
	Settings Settings
	Launch   Launcher
	Scorer   decide.Scorer
	Ledger   *ledger.Store

	Session     auth.SessionStore
	Waiter      auth.Waiter
	Credentials auth.Credentials
	Confirmer   submit.Confirmer

	Audit  Auditor
	Events events.Publisher

	Sleeper humanize.Sleeper
	Rand    *rand.Rand
	Now     func() time.Time
	Log     *zap.SugaredLogger

	running atomic.Bool
	mu      sync.Mutex
	last    *RunReport
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) Running() bool { return e.running.Load() }

// Last returns the most recent finished run.
func (e *Engine) Last() (RunReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return RunReport{}, false
	}
	return *e.last, true
}

// cycle holds everything scoped to a single RunOnce.
type cycle struct {
	e       *Engine
	rep     *RunReport
	log     *zap.SugaredLogger
	limiter *quota.Limiter
	driver  browser.Driver
	pacer   *humanize.Pacer
	decider decide.Engine
	pricer  pricing.Strategy
	machine *submit.Machine
}

// RunOnce executes one cycle. Cap exhaustion and an empty listing end the
// run normally; authentication loss, ledger failures and panics return an
// error. The browser is always closed before returning.
func (e *Engine) RunOnce(ctx context.Context) (rep RunReport, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInProgress
	}
	defer e.running.Store(false)

	rep = RunReport{RunID: uuid.NewString(), Started: e.now()}
	log := logger.OrNop(e.Log).With("run_id", rep.RunID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("run panicked", "panic", r, "stack", string(debug.Stack()))
			err = errs.Newf("run panicked: %v", r)
			rep.StopReason = StopPanic
		}
		rep.Finished = e.now()
		if err != nil {
			rep.Error = err.Error()
		}
		e.finish(ctx, rep, err, log)
	}()

	limiter := quota.NewLimiterWithClock(e.Ledger, e.Settings.Caps, e.now)
	if capErr := limiter.Check(0, e.now()); capErr != nil {
		log.Warnw("cap reached, not starting", "error", capErr)
		rep.StopReason = StopCapReached
		return rep, nil
	}

	log.Infow("run started", "search_url", e.Settings.SearchURL, "profile", e.Settings.Profile.Name)
	events.Emit(e.Events, rep.RunID, events.RunStarted, limiter.Usage(e.now()))

	d, err := e.Launch(ctx)
	if err != nil {
		rep.StopReason = StopListingFailed
		return rep, errs.Wrap(err, "launch browser")
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.Warnw("closing browser", "error", cerr)
		}
	}()
	if err := d.InjectStealth(ctx); err != nil {
		log.Errorw("stealth script not injected", "error", err)
	}
	if e.Settings.NavPerSecond > 0 {
		d = browser.Limited(d, browser.NewHostLimiter(e.Settings.NavPerSecond, 1))
	}

	c := e.newCycle(&rep, log, limiter, d)
	err = c.run(ctx)
	return rep, err
}

func (e *Engine) newCycle(rep *RunReport, log *zap.SugaredLogger, limiter *quota.Limiter, d browser.Driver) *cycle {
	pacer := humanize.NewPacer(e.Settings.Profile, e.Sleeper, e.Rand)
	s := e.Settings
	return &cycle{
		e:       e,
		rep:     rep,
		log:     log,
		limiter: limiter,
		driver:  d,
		pacer:   pacer,
		decider: decide.Engine{Scorer: e.Scorer, MinScore: s.MinScore, Log: log.Named("decide")},
		pricer: pricing.Strategy{
			MinBidsForInsight: s.MinBidsForInsight,
			Percentage:        s.PricePercentage,
			DefaultBudget:     s.DefaultBudget,
			Insight:           pricing.BrowserInsight{Driver: d, Pacer: pacer},
			Log:               log.Named("pricing"),
		},
		machine: &submit.Machine{
			Driver:            d,
			Pacer:             pacer,
			Confirmer:         e.Confirmer,
			ExtrasMaxAttempts: s.ExtrasMaxAttempts,
			Log:               log.Named("submit"),
		},
	}
}

func (c *cycle) run(ctx context.Context) error {
	s := c.e.Settings
	a := &auth.Authenticator{
		Driver:      c.driver,
		Pacer:       c.pacer,
		BaseURL:     s.BaseURL,
		LoginURL:    s.LoginURL,
		Session:     c.e.Session,
		Waiter:      c.e.Waiter,
		Credentials: c.e.Credentials,
		Log:         c.log.Named("auth"),
	}
	if _, err := a.EnsureAuthenticated(ctx); err != nil {
		c.rep.StopReason = StopAuthFailed
		return err
	}

	candidates, err := c.listing(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}
	c.log.Infow("viable postings", "count", len(candidates))

	for i, p := range candidates {
		if ctx.Err() != nil {
			c.rep.StopReason = StopCancelled
			return ctx.Err()
		}
		if capErr := c.limiter.Check(c.rep.Sent, c.e.now()); capErr != nil {
			c.log.Warnw("cap reached, stopping", "error", capErr)
			c.rep.StopReason = StopCapReached
			return nil
		}

		o, err := c.process(ctx, p)
		c.rep.count(o)
		metrics.ObserveOutcome(string(o))
		if err != nil {
			return err
		}

		if o.CountsAsSend() && i < len(candidates)-1 {
			if err := c.cooldown(ctx); err != nil {
				c.rep.StopReason = StopCancelled
				return err
			}
		}
	}
	return nil
}

// listing loads the search page and returns the postings that survive the
// filter, in page order.
func (c *cycle) listing(ctx context.Context) ([]domain.Posting, error) {
	s := c.e.Settings
	c.log.Infow("scanning postings")
	if err := c.driver.Navigate(ctx, s.SearchURL); err != nil {
		c.rep.StopReason = StopListingFailed
		return nil, errs.Wrap(err, "open search page")
	}
	if err := c.pacer.AfterPage(ctx); err != nil {
		c.rep.StopReason = StopCancelled
		return nil, err
	}
	cur, err := c.driver.CurrentURL(ctx)
	if err != nil {
		c.rep.StopReason = StopListingFailed
		return nil, err
	}
	if browser.IsLoginURL(cur) {
		c.rep.StopReason = StopSessionExpired
		return nil, errs.Wrap(errs.ErrSessionExpired, "search page redirected to login")
	}
	html, err := c.driver.HTML(ctx)
	if err != nil {
		c.rep.StopReason = StopListingFailed
		return nil, err
	}
	postings, err := discover.ParseListing(strings.NewReader(html), s.BaseURL)
	if err != nil {
		c.rep.StopReason = StopListingFailed
		return nil, err
	}
	c.rep.Candidates = len(postings)
	if len(postings) == 0 {
		c.log.Warnw("no postings on the search page")
		c.rep.StopReason = StopNoPostings
		return nil, nil
	}

	f := discover.Filter{Seen: c.e.Ledger, MinRatingTenths: s.MinRatingTenths, Log: c.log.Named("discover")}
	kept, skipped := f.Apply(postings)
	for _, sk := range skipped {
		c.rep.Skipped++
		metrics.ObserveSkip(sk.Reason)
		events.Emit(c.e.Events, c.rep.RunID, events.PostingSkipped, map[string]string{
			"url": sk.Posting.URL, "title": sk.Posting.Title, "reason": sk.Reason,
		})
	}
	return kept, nil
}

// attempt collects what one posting went through, for logs and audit.
type attempt struct {
	p      domain.Posting
	score  *int
	reason string
	quote  *pricing.Quote
	state  string
	err    error
}

// process takes one posting to a terminal outcome. A non-nil error is
// run-fatal.
func (c *cycle) process(ctx context.Context, p domain.Posting) (domain.Outcome, error) {
	log := c.log.With("title", p.ShortTitle(40), "url", p.URL)
	log.Infow("evaluating posting", "bids", p.BidsCount)
	at := &attempt{p: p}

	res := c.decider.Decide(ctx, p)
	if res.Verdict != decide.Unavailable {
		at.score, at.reason = domain.IntPtr(res.Decision.Score), res.Decision.Reason
		metrics.ObserveScore(res.Decision.Score)
	}
	events.Emit(c.e.Events, c.rep.RunID, events.PostingDecided, map[string]any{
		"url": p.URL, "verdict": res.Verdict.String(), "score": at.score,
	})

	switch res.Verdict {
	case decide.Unavailable:
		at.err = res.Err
		if ctx.Err() != nil {
			c.rep.StopReason = StopCancelled
			return c.done(ctx, log, at, domain.OutcomeAborted), ctx.Err()
		}
		return c.done(ctx, log, at, domain.OutcomeUnavailable), nil
	case decide.Rejected:
		err := c.record(p.URL, nil)
		return c.done(ctx, log, at, domain.OutcomeRejected), err
	}

	q := c.pricer.Price(ctx, p, res.Decision)
	at.quote = &q
	metrics.ObservePrice(string(q.Tier), q.Price)

	sr := c.machine.Submit(ctx, submit.Request{
		URL:          p.URL,
		Title:        p.Title,
		Price:        q.Price,
		DeliveryDays: res.Decision.DeliveryDays,
		ProposalText: res.Decision.ProposalText,
	})
	at.state, at.err = sr.State.String(), sr.Err
	o := sr.Outcome()

	switch sr.State {
	case submit.Confirmed, submit.Indeterminate:
		if err := c.record(p.URL, domain.IntPtr(q.Price)); err != nil {
			return c.done(ctx, log, at, o), err
		}
	case submit.AlreadyBid:
		if err := c.record(p.URL, nil); err != nil {
			return c.done(ctx, log, at, o), err
		}
	case submit.SessionExpired:
		c.rep.StopReason = StopSessionExpired
		return c.done(ctx, log, at, o), errs.Wrapf(errs.ErrSessionExpired, "while bidding on %s", p.URL)
	case submit.Aborted:
		if ctx.Err() != nil {
			c.rep.StopReason = StopCancelled
			return c.done(ctx, log, at, o), ctx.Err()
		}
	}
	return c.done(ctx, log, at, o), nil
}

// record appends to the ledger. A failed write stops the run: the caps and
// dedup guarantees depend on it.
func (c *cycle) record(url string, price *int) error {
	if _, err := c.e.Ledger.Append(domain.NewLedgerEntry(url, c.e.now(), price)); err != nil {
		c.rep.StopReason = StopLedgerFailed
		return errs.Wrapf(err, "record %s", url)
	}
	return nil
}

// done logs, audits and publishes the outcome of one posting.
func (c *cycle) done(ctx context.Context, log *zap.SugaredLogger, at *attempt, o domain.Outcome) domain.Outcome {
	var price *int
	tier := ""
	if at.quote != nil {
		price = domain.IntPtr(at.quote.Price)
		tier = string(at.quote.Tier)
	}
	kv := []any{"score", at.score, "price", price, "state", at.state, "outcome", string(o)}

	switch o {
	case domain.OutcomeSent:
		log.Infow("proposal sent", kv...)
	case domain.OutcomeIndeterminate:
		log.Warnw("submission unconfirmed, recorded as sent", append(kv, "verify", "manual")...)
	case domain.OutcomeRejected:
		log.Infow("posting rejected", append(kv, "reason", at.reason)...)
	case domain.OutcomeAlreadyBid:
		log.Infow("already bid on posting", kv...)
	case domain.OutcomeUnavailable:
		log.Warnw("scoring unavailable, will retry next run", append(kv, "error", at.err)...)
	case domain.OutcomeSessionExpired:
		log.Errorw("session expired mid-run", append(kv, "error", at.err)...)
	default:
		log.Warnw("posting not submitted, will retry next run", append(kv, "error", at.err)...)
	}

	if c.e.Audit != nil {
		a := store.Attempt{
			RunID:     c.rep.RunID,
			URL:       at.p.URL,
			Title:     at.p.Title,
			Score:     at.score,
			Price:     price,
			PriceTier: tier,
			State:     at.state,
			Outcome:   string(o),
			Reason:    at.reason,
			CreatedAt: c.e.now(),
		}
		if at.err != nil {
			a.Error = at.err.Error()
		}
		if err := c.e.Audit.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
			log.Warnw("audit write failed", "error", err)
		}
	}
	events.Emit(c.e.Events, c.rep.RunID, events.PostingOutcome, events.Outcome{
		URL: at.p.URL, Title: at.p.Title, Score: at.score, Price: price, State: at.state, Outcome: string(o),
	})
	return o
}

func (c *cycle) cooldown(ctx context.Context) error {
	_, err := c.pacer.Cooldown(ctx, func(d time.Duration) {
		wait := d.Round(time.Second).String()
		c.log.Infow("cooling down before next posting", "wait", wait)
		events.Emit(c.e.Events, c.rep.RunID, events.Cooldown, map[string]string{"wait": wait})
	})
	return err
}

func (e *Engine) finish(ctx context.Context, rep RunReport, err error, log *zap.SugaredLogger) {
	kv := []any{
		"candidates", rep.Candidates, "sent", rep.Sent, "rejected", rep.Rejected,
		"already_bid", rep.AlreadyBid, "indeterminate", rep.Indeterminate, "skipped", rep.Skipped,
		"stop_reason", rep.StopReason, "duration", rep.Duration().Round(time.Second).String(),
	}
	if err != nil {
		log.Errorw("run finished with error", append(kv, "error", fmt.Sprintf("%+v", err))...)
	} else {
		log.Infow("run finished", kv...)
	}

	metrics.ObserveRun(rep.StopReason, rep.Duration())
	metrics.SetWeeklySent(quota.NewLimiterWithClock(e.Ledger, e.Settings.Caps, e.now).WeeklyCount(e.now()))
	if e.Audit != nil {
		if aerr := e.Audit.RecordRun(context.WithoutCancel(ctx), rep.storeRun()); aerr != nil {
			log.Warnw("audit write failed", "error", aerr)
		}
	}
	events.Emit(e.Events, rep.RunID, events.RunFinished, rep)

	e.mu.Lock()
	e.last = &rep
	e.mu.Unlock()
}
