package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/config"
	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/engine"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/quota"
	"bidbot-engine/internal/store"
)

type fakeRunner struct {
	running atomic.Bool
	runs    atomic.Int32
	last    *engine.RunReport
}

func (f *fakeRunner) RunOnce(context.Context) (engine.RunReport, error) {
	f.runs.Add(1)
	return engine.RunReport{RunID: "r"}, nil
}
func (f *fakeRunner) Running() bool { return f.running.Load() }
func (f *fakeRunner) Last() (engine.RunReport, bool) {
	if f.last == nil {
		return engine.RunReport{}, false
	}
	return *f.last, true
}

type fixture struct {
	srv    *httptest.Server
	runner *fakeRunner
	db     *store.DB
	hub    *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCaps(t, quota.Caps{PerRun: 6, PerDay: 7, PerWeek: 52})
}

func newFixtureWithCaps(t *testing.T, caps quota.Caps) *fixture {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	led := ledger.Open(filepath.Join(dir, "ledger.json"), nil)
	_, err := led.Append(domain.NewLedgerEntry("https://x/job/a", now.Add(-time.Hour), domain.IntPtr(500)))
	require.NoError(t, err)
	_, err = led.Append(domain.NewLedgerEntry("https://x/job/b", now.Add(-48*time.Hour), nil))
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfgVal := &atomic.Value{}
	cfgVal.Store(config.Default())

	runner, hub := &fakeRunner{}, events.NewHub()
	h := NewRouter(Deps{
		DB:      db.Pool,
		Hub:     hub,
		Ledger:  led,
		Limiter: quota.NewLimiterWithClock(led, caps, func() time.Time { return now }),
		Runner:  runner,
		CfgVal:  cfgVal,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, runner: runner, db: db, hub: hub}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthCarriesRequestID(t *testing.T) {
	f := newFixture(t)
	var body map[string]any
	resp := getJSON(t, f.srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["running"])
	assert.EqualValues(t, 2, body["ledger_entries"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestLedgerStats(t *testing.T) {
	f := newFixture(t)
	var st LedgerStats
	getJSON(t, f.srv.URL+"/ledger/stats", &st)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Priced)
	assert.Equal(t, 2, st.Week) // Monday and Wednesday
	assert.Equal(t, 1, st.Day)
	assert.Equal(t, 52, st.Caps.PerWeek)
}

func TestStatusIncludesLastRun(t *testing.T) {
	f := newFixture(t)
	f.runner.last = &engine.RunReport{RunID: "abc", Sent: 2}

	var st StatusResponse
	getJSON(t, f.srv.URL+"/status", &st)
	require.NotNil(t, st.Last)
	assert.Equal(t, "abc", st.Last.RunID)
	assert.Equal(t, 2, st.Usage.Week)
}

func TestRunStartsAndRefusesWhenBusy(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, func() bool { return f.runner.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	f.runner.running.Store(true)
	resp, err = http.Post(f.srv.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, CodeAlreadyRunning, apiErr.Error.Code)
}

func TestRunRefusedWhenCapReached(t *testing.T) {
	f := newFixtureWithCaps(t, quota.Caps{PerRun: 6, PerDay: 1, PerWeek: 52})

	resp, err := http.Post(f.srv.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, CodeCapReached, apiErr.Error.Code)
	assert.Zero(t, f.runner.runs.Load())
}

func TestEventsReplayAfterLastEventID(t *testing.T) {
	f := newFixture(t)
	events.Emit(f.hub, "r1", events.RunStarted, nil)
	events.Emit(f.hub, "r1", events.PostingOutcome, events.Outcome{URL: "https://x/job/a", Outcome: "sent"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var seen []string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			seen = append(seen, strings.TrimPrefix(line, "event: "))
		}
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{events.Ping, events.PostingOutcome}, seen)
}

func TestAttemptsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, err := store.InsertAttempt(context.Background(), f.db.Pool, store.Attempt{
		RunID: "r1", URL: "https://x/job/a", Outcome: "sent", Price: domain.IntPtr(500),
	})
	require.NoError(t, err)

	var got []store.Attempt
	getJSON(t, f.srv.URL+"/attempts?outcome=sent", &got)
	require.Len(t, got, 1)
	assert.Equal(t, 500, *got[0].Price)

	getJSON(t, f.srv.URL+"/attempts?outcome=rejected", &got)
	assert.Empty(t, got)
}

func TestMethodNotAllowedIsJSON(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetricsExposed(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPutConfigRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPut, f.srv.URL+"/config", strings.NewReader(`{"Limits":{"MaxPerRun":-1}}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var vr config.Validation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vr))
	assert.NotEmpty(t, vr.Errors)
}
