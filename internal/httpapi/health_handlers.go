package httpapi

import (
	"net/http"
	"time"

	"bidbot-engine/internal/events"
	"bidbot-engine/internal/ledger"
)

type HealthHandler struct {
	Runner Runner
	Ledger *ledger.Store
	Hub    *events.Hub
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	}
	if h.Runner != nil {
		body["running"] = h.Runner.Running()
	}
	if h.Ledger != nil {
		body["ledger_entries"] = h.Ledger.Len()
	}
	if h.Hub != nil {
		body["subscribers"] = h.Hub.Subscribers()
	}
	WriteJSON(w, http.StatusOK, body)
}
