package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bidbot-engine/internal/engine"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/quota"
)

type RunHandler struct {
	Runner  Runner
	Ledger  *ledger.Store
	Limiter *quota.Limiter
	RunCtx  context.Context
	Log     *zap.SugaredLogger
}

type StatusResponse struct {
	Running bool              `json:"running"`
	Last    *engine.RunReport `json:"last,omitempty"`
	Usage   quota.Usage       `json:"usage"`
}

func (h RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Running: h.Runner.Running()}
	if last, ok := h.Runner.Last(); ok {
		resp.Last = &last
	}
	resp.Usage = h.Limiter.Usage(h.Limiter.Now())
	WriteJSON(w, http.StatusOK, resp)
}

// Run starts a cycle in the background and returns at once.
func (h RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Running() {
		WriteErr(w, r, engine.ErrRunInProgress)
		return
	}
	if err := h.Limiter.Check(0, h.Limiter.Now()); err != nil {
		WriteErr(w, r, err)
		return
	}
	ctx := h.RunCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if _, err := h.Runner.RunOnce(ctx); err != nil && !errs.Is(err, engine.ErrRunInProgress) {
			h.Log.Errorw("run started over http failed", "error", err)
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type LedgerStats struct {
	Path      string     `json:"path"`
	Total     int        `json:"total"`
	Legacy    int        `json:"legacy"`
	Priced    int        `json:"priced"`
	Week      int        `json:"week"`
	Day       int        `json:"day"`
	WeekStart time.Time  `json:"week_start"`
	Caps      quota.Caps `json:"caps"`
	Last      *time.Time `json:"last,omitempty"`
}

// ComputeLedgerStats summarizes the ledger as of now.
func ComputeLedgerStats(l *ledger.Store, lim *quota.Limiter, now time.Time) LedgerStats {
	st := LedgerStats{Path: l.Path(), WeekStart: quota.WeekStart(now), Caps: lim.Caps()}
	for _, e := range l.Entries() {
		st.Total++
		if !e.Dated() {
			st.Legacy++
			continue
		}
		if e.Price != nil {
			st.Priced++
		}
		if st.Last == nil || e.Timestamp.After(*st.Last) {
			ts := *e.Timestamp
			st.Last = &ts
		}
	}
	st.Week = lim.WeeklyCount(now)
	st.Day = lim.DailyCount(now)
	return st
}

func (h RunHandler) LedgerStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ComputeLedgerStats(h.Ledger, h.Limiter, h.Limiter.Now()))
}
