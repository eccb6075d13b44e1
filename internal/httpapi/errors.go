package httpapi

import (
	"encoding/json"
	"net/http"

	"bidbot-engine/internal/engine"
	"bidbot-engine/internal/errs"
)

// Error codes returned in APIError.Error.Code.
const (
	CodeInvalidJSON      = "invalid_json"
	CodeInvalidConfig    = "invalid_config"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeForbidden        = "forbidden"
	CodeAlreadyRunning   = "already_running"
	CodeCapReached       = "cap_reached"
	CodeLedgerLocked     = "ledger_locked"
	CodeNoDatabase       = "no_database"
	CodeInternal         = "internal_error"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Hint      string `json:"hint,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeAPIError(w, r, status, code, message, "")
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message, hint string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.Hint = hint
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// WriteErr maps the engine's sentinel errors to a status and code. Anything
// unrecognized is a 500.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errs.Is(err, engine.ErrRunInProgress):
		status, code = http.StatusConflict, CodeAlreadyRunning
	case errs.Is(err, errs.ErrCapReached):
		status, code = http.StatusTooManyRequests, CodeCapReached
	case errs.Is(err, errs.ErrLedgerLocked):
		status, code = http.StatusConflict, CodeLedgerLocked
	case errs.Is(err, errs.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	}
	writeAPIError(w, r, status, code, err.Error(), errs.FlattenHints(err))
}
