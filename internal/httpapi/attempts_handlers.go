package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"bidbot-engine/internal/quota"
	"bidbot-engine/internal/store"
)

type AttemptsHandler struct {
	DB *sql.DB
}

func (h AttemptsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListAttemptsOpts{
		RunID:   q.Get("run_id"),
		Outcome: q.Get("outcome"),
		Window:  q.Get("window"),
		Limit:   queryInt(r, "limit", 100),
	}
	out, err := store.ListAttempts(r.Context(), h.DB, opts)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	if out == nil {
		out = []store.Attempt{}
	}
	WriteJSON(w, http.StatusOK, out)
}

// Summary counts this week's attempts by outcome.
func (h AttemptsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	since := quota.WeekStart(time.Now())
	counts, err := store.CountByOutcome(r.Context(), h.DB, since)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"since": since, "outcomes": counts})
}

func (h AttemptsHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns(r.Context(), h.DB, queryInt(r, "limit", 20))
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	WriteJSON(w, http.StatusOK, runs)
}
