package httpapi

import (
	"database/sql"
	"net/http"

	"bidbot-engine/internal/errs"
)

type DBHandler struct {
	DB *sql.DB
}

// Checkpoint folds the WAL back into the audit database file.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusServiceUnavailable, CodeNoDatabase, "audit database not open")
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `PRAGMA wal_checkpoint(FULL);`); err != nil {
		WriteErr(w, r, errs.Wrap(err, "checkpoint"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
