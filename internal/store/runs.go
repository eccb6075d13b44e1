package store

import (
	"context"
	"database/sql"
	"time"

	"bidbot-engine/internal/errs"
)

type Run struct {
	RunID         string    `json:"runId"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	Candidates    int       `json:"candidates"`
	Sent          int       `json:"sent"`
	Rejected      int       `json:"rejected"`
	AlreadyBid    int       `json:"alreadyBid"`
	Indeterminate int       `json:"indeterminate"`
	Skipped       int       `json:"skipped"`
	StopReason    string    `json:"stopReason,omitempty"`
}

func InsertRun(ctx context.Context, db *sql.DB, r Run) error {
	_, err := db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (run_id, started_at, finished_at, candidates, sent, rejected, already_bid, indeterminate, skipped, stop_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.RunID, r.Started.UTC().Format(time.RFC3339), r.Finished.UTC().Format(time.RFC3339),
		r.Candidates, r.Sent, r.Rejected, r.AlreadyBid, r.Indeterminate, r.Skipped, r.StopReason,
	)
	if err != nil {
		return errs.Wrap(err, "insert run")
	}
	return nil
}

func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
SELECT run_id, started_at, finished_at, candidates, sent, rejected, already_bid, indeterminate, skipped, stop_reason
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Candidates, &r.Sent, &r.Rejected,
			&r.AlreadyBid, &r.Indeterminate, &r.Skipped, &r.StopReason); err != nil {
			return nil, errs.Wrap(err, "scan run")
		}
		r.Started, _ = time.Parse(time.RFC3339, started)
		r.Finished, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
