package engine

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/browser/browsertest"
	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/quota"
	"bidbot-engine/internal/store"
	"bidbot-engine/internal/submit"
)

const (
	base      = "https://www.workana.com"
	searchURL = base + "/jobs?category=it-programming"
)

func card(slug, title, bids, stars string) string {
	return `<div class="project-item js-project">
  <h2 class="project-title"><span><a href="/job/` + slug + `" title="` + title + `">` + title + `</a></span></h2>
  <span class="budget">USD 800 - 1.000</span>
  <span class="bids">` + bids + `</span>
  <span class="stars-rating stars-` + stars + `"></span>
</div>`
}

var listing = `<html><body>` +
	card("seen", "Ya procesado", "2", "50") +
	card("a", "Scraper en Python", "3", "45") +
	card("toxic", "Cliente dificil", "1", "30") +
	card("b", "Logo para cafeteria", "4", "40") +
	card("c", "API en Go", "12", "48") +
	`</body></html>`

const bidPage = `<html><body>
<h1>Proyecto</h1>
<button id="bid_button">Ofertar</button>
<form id="bidForm"><div class="row"><div class="col-md-9">
  <input id="Amount"><input id="BidDeliveryTime"><textarea id="BidContent"></textarea>
  <div class="wk-submit-block"><input type="submit" value="Enviar"></div>
</div></div></form>
</body></html>`

func job(slug string) string { return base + "/job/" + slug }

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeScorer struct {
	mu     sync.Mutex
	byURL  map[string]domain.Evaluation
	fail   map[string]error
	panics bool
	calls  []string
}

func (s *fakeScorer) Evaluate(_ context.Context, p domain.Posting) (domain.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p.URL)
	if s.panics {
		panic("scorer exploded")
	}
	if err := s.fail[p.URL]; err != nil {
		return domain.Evaluation{}, err
	}
	return s.byURL[p.URL], nil
}

type memAudit struct {
	attempts []store.Attempt
	runs     []store.Run
}

func (m *memAudit) RecordAttempt(_ context.Context, a store.Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memAudit) RecordRun(_ context.Context, r store.Run) error {
	m.runs = append(m.runs, r)
	return nil
}

type eventLog struct {
	mu  sync.Mutex
	all []events.Event
}

func (l *eventLog) Publish(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, e)
}

func (l *eventLog) count(typ string) int {
	n := 0
	for _, e := range l.all {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	eng    *Engine
	fake   *browsertest.Fake
	ledger *ledger.Store
	scorer *fakeScorer
	audit  *memAudit
	events *eventLog
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local) // a Wednesday

	fake := browsertest.New(map[string]browsertest.Page{
		base:                    {HTML: `<a>Mi perfil</a>`},
		searchURL:               {HTML: listing},
		job("a"):                {HTML: bidPage},
		job("c"):                {HTML: bidPage},
		base + "/job/insight/c": {HTML: `<h4 class="abig">USD 1.000</h4>`},
	})
	fake.OnClick[submit.SubmitSelector] = func(f *browsertest.Fake, _ browsertest.Elem) {
		if f.Current == job("c") {
			f.SetHTML(`<html><body><p>Procesando...</p></body></html>`)
			return
		}
		f.SetHTML(`<html><body><p>¡Gracias! Tu propuesta fue enviada.</p></body></html>`)
	}

	led := ledger.Open(filepath.Join(t.TempDir(), "ledger.json"), nil)
	_, err := led.Append(domain.NewLedgerEntry(job("seen"), now.AddDate(0, 0, -10), nil))
	require.NoError(t, err)

	scorer := &fakeScorer{
		byURL: map[string]domain.Evaluation{
			job("a"): {Relevant: true, Score: 80, DeliveryDays: 3, ProposalText: "Puedo hacerlo con Scrapy.", SuggestedPrice: domain.IntPtr(450)},
			job("b"): {Score: 20, Reason: "diseño grafico"},
			job("c"): {Relevant: true, Score: 90, DeliveryDays: 5, ProposalText: "Tengo experiencia con APIs en Go."},
		},
		fail: map[string]error{},
	}
	audit, evs := &memAudit{}, &eventLog{}

	eng := &Engine{
		Settings: Settings{
			BaseURL:           base,
			LoginURL:          base + "/login",
			SearchURL:         searchURL,
			Caps:              quota.Caps{PerRun: 6, PerDay: 7, PerWeek: 52},
			MinScore:          65,
			MinRatingTenths:   35,
			MinBidsForInsight: 5,
			PricePercentage:   0.70,
			DefaultBudget:     50000,
			ExtrasMaxAttempts: 15,
			Profile:           humanize.ProfileFor(humanize.SpeedFast),
		},
		Launch:    func(context.Context) (browser.Driver, error) { return fake, nil },
		Scorer:    scorer,
		Ledger:    led,
		Confirmer: submit.AutoConfirm{},
		Audit:     audit,
		Events:    evs,
		Sleeper:   noSleep{},
		Rand:      rand.New(rand.NewPCG(5, 6)),
		Now:       func() time.Time { return now },
	}
	return &harness{eng: eng, fake: fake, ledger: led, scorer: scorer, audit: audit, events: evs, now: now}
}

func priceOf(t *testing.T, l *ledger.Store, url string) *int {
	t.Helper()
	for _, e := range l.Entries() {
		if e.URL == url {
			return e.Price
		}
	}
	t.Fatalf("%s not in ledger", url)
	return nil
}

func TestRunOnceFullCycle(t *testing.T) {
	h := newHarness(t)

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 5, rep.Candidates)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, 1, rep.Indeterminate)
	assert.Equal(t, 1, rep.Rejected)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, StopCompleted, rep.StopReason)

	// the ledgered posting never reaches the scorer
	assert.Equal(t, []string{job("a"), job("b"), job("c")}, h.scorer.calls)

	assert.Equal(t, 4, h.ledger.Len())
	assert.Equal(t, 450, *priceOf(t, h.ledger, job("a")))
	assert.Nil(t, priceOf(t, h.ledger, job("b")))
	assert.Equal(t, 700, *priceOf(t, h.ledger, job("c")))
	assert.False(t, h.ledger.ContainsURL(job("toxic")))

	require.Len(t, h.audit.attempts, 3)
	assert.Equal(t, "sent", h.audit.attempts[0].Outcome)
	assert.Equal(t, "suggested", h.audit.attempts[0].PriceTier)
	assert.Equal(t, "rejected", h.audit.attempts[1].Outcome)
	assert.Equal(t, "indeterminate", h.audit.attempts[2].Outcome)
	assert.Equal(t, "insight", h.audit.attempts[2].PriceTier)
	require.Len(t, h.audit.runs, 1)
	assert.Equal(t, rep.RunID, h.audit.runs[0].RunID)

	assert.Equal(t, 1, h.events.count(events.RunStarted))
	assert.Equal(t, 1, h.events.count(events.RunFinished))
	assert.Equal(t, 3, h.events.count(events.PostingOutcome))
	assert.Equal(t, 1, h.events.count(events.Cooldown))

	assert.True(t, h.fake.Closed)
	assert.True(t, h.fake.Stealthed)
	last, ok := h.eng.Last()
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
}

func TestSecondRunSkipsEverythingLedgered(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	calls := len(h.scorer.calls)

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls, len(h.scorer.calls))
	assert.Zero(t, rep.Sent)
	assert.Equal(t, 5, rep.Skipped)
	assert.Equal(t, 4, h.ledger.Len())
}

func TestRunCapStopsBeforeNextCandidate(t *testing.T) {
	h := newHarness(t)
	h.eng.Settings.Caps.PerRun = 1

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, StopCapReached, rep.StopReason)
	assert.Equal(t, []string{job("a")}, h.scorer.calls)
}

func TestWeeklyCapBlocksStart(t *testing.T) {
	h := newHarness(t)
	h.eng.Settings.Caps.PerWeek = 1
	_, err := h.ledger.Append(domain.NewLedgerEntry(job("old"), h.now.Add(-time.Hour), domain.IntPtr(100)))
	require.NoError(t, err)
	launched := false
	h.eng.Launch = func(context.Context) (browser.Driver, error) { launched = true; return h.fake, nil }

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopCapReached, rep.StopReason)
	assert.False(t, launched)
	assert.Empty(t, h.scorer.calls)
}

func TestSessionExpiredAbortsRun(t *testing.T) {
	h := newHarness(t)
	h.fake.Pages[job("a")] = browsertest.Page{RedirectTo: base + "/login"}

	rep, err := h.eng.RunOnce(context.Background())
	assert.True(t, errs.Is(err, errs.ErrSessionExpired))
	assert.Equal(t, StopSessionExpired, rep.StopReason)
	assert.Equal(t, []string{job("a")}, h.scorer.calls)
	assert.False(t, h.ledger.ContainsURL(job("a")))
	assert.True(t, h.fake.Closed)
}

func TestScoringUnavailableLeavesPostingForLater(t *testing.T) {
	h := newHarness(t)
	h.scorer.fail[job("a")] = errs.New("all models failed")

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, h.ledger.ContainsURL(job("a")))
	assert.Equal(t, 1, rep.Outcomes[domain.OutcomeUnavailable])
	assert.Equal(t, 1, rep.Sent)
}

func TestFormDriftIsPostingLocal(t *testing.T) {
	h := newHarness(t)
	h.fake.Pages[job("a")] = browsertest.Page{HTML: `<html><body><button id="bid_button">Ofertar</button></body></html>`}

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, h.ledger.ContainsURL(job("a")))
	assert.Equal(t, 1, rep.Outcomes[domain.OutcomeFormMissing])
	assert.True(t, h.ledger.ContainsURL(job("c")))
}

func TestAlreadyBidIsRecordedWithoutPrice(t *testing.T) {
	h := newHarness(t)
	h.fake.Pages[job("a")] = browsertest.Page{HTML: `<p>Ya has enviado una propuesta</p>`}

	rep, err := h.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.AlreadyBid)
	assert.Nil(t, priceOf(t, h.ledger, job("a")))
}

func TestPanicIsRecoveredAndBrowserClosed(t *testing.T) {
	h := newHarness(t)
	h.scorer.panics = true

	rep, err := h.eng.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StopPanic, rep.StopReason)
	assert.True(t, h.fake.Closed)
	assert.False(t, h.eng.Running())
	require.Len(t, h.audit.runs, 1)
}

func TestAuthFailureStopsRun(t *testing.T) {
	h := newHarness(t)
	h.fake.Pages[base] = browsertest.Page{HTML: `<a>Iniciar sesión</a>`}
	h.fake.Pages[base+"/login"] = browsertest.Page{HTML: `<form></form>`}

	rep, err := h.eng.RunOnce(context.Background())
	assert.True(t, errs.Is(err, errs.ErrManualLoginRequired))
	assert.Equal(t, StopAuthFailed, rep.StopReason)
	assert.Empty(t, h.scorer.calls)
}

func TestConcurrentRunRefused(t *testing.T) {
	h := newHarness(t)
	h.eng.running.Store(true)
	_, err := h.eng.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}
