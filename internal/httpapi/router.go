package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bidbot-engine/internal/logger"
)

// NewRouter wires every operator endpoint behind the standard middleware.
func NewRouter(d Deps) http.Handler {
	log := logger.OrNop(d.Log)
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", HealthHandler{Runner: d.Runner, Ledger: d.Ledger, Hub: d.Hub}.Health).Methods(http.MethodGet)

	rh := RunHandler{Runner: d.Runner, Ledger: d.Ledger, Limiter: d.Limiter, RunCtx: d.RunCtx, Log: log}
	r.HandleFunc("/status", rh.Status).Methods(http.MethodGet)
	r.HandleFunc("/run", rh.Run).Methods(http.MethodPost)
	r.HandleFunc("/ledger/stats", rh.LedgerStats).Methods(http.MethodGet)

	ah := AttemptsHandler{DB: d.DB}
	r.HandleFunc("/attempts", ah.List).Methods(http.MethodGet)
	r.HandleFunc("/attempts/summary", ah.Summary).Methods(http.MethodGet)
	r.HandleFunc("/runs", ah.Runs).Methods(http.MethodGet)

	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config", localOnly(ch.Put)).Methods(http.MethodPut)
	r.HandleFunc("/config/path", ch.Path).Methods(http.MethodGet)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	r.HandleFunc("/secrets/{account}", localOnly(SecretsHandler{}.Set)).Methods(http.MethodPost)
	r.HandleFunc("/db/checkpoint", localOnly(DBHandler{DB: d.DB}.Checkpoint)).Methods(http.MethodPost)

	eh := EventsHandler{Hub: d.Hub}
	r.HandleFunc("/events", eh.ServeSSE).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "no such endpoint")
	})

	return Chain(r, RequestID, Recover(log), AccessLog(log))
}
