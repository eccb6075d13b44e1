package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bidbot-engine/internal/errs"
)

// Attempt is one candidate's trip through a run.
type Attempt struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Score     *int      `json:"score,omitempty"`
	Price     *int      `json:"price,omitempty"`
	PriceTier string    `json:"priceTier,omitempty"`
	State     string    `json:"state,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListAttemptsOpts struct {
	RunID   string
	Outcome string
	Window  string // 24h | 7d | all
	Limit   int
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func InsertAttempt(ctx context.Context, db *sql.DB, a Attempt) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO attempts (run_id, url, title, score, price, price_tier, state, outcome, reason, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		a.RunID, a.URL, a.Title, nullInt(a.Score), nullInt(a.Price), a.PriceTier,
		a.State, a.Outcome, a.Reason, a.Error, a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, errs.Wrap(err, "insert attempt")
	}
	return res.LastInsertId()
}

// WindowStart maps a window name to its lower bound; "all" has none.
func WindowStart(window string, now time.Time) (time.Time, bool) {
	switch window {
	case "all":
		return time.Time{}, false
	case "24h":
		return now.Add(-24 * time.Hour), true
	default:
		return now.AddDate(0, 0, -7), true
	}
}

func ListAttempts(ctx context.Context, db *sql.DB, opts ListAttemptsOpts) ([]Attempt, error) {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 100
	}

	var (
		where []string
		args  []any
	)
	if since, ok := WindowStart(opts.Window, time.Now()); ok {
		where = append(where, "created_at >= ?")
		args = append(args, since.UTC().Format(time.RFC3339))
	}
	if opts.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, opts.Outcome)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
SELECT id, run_id, url, title, score, price, price_tier, state, outcome, reason, error, created_at
FROM attempts
%s
ORDER BY created_at DESC, id DESC
LIMIT ?;`, clause)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list attempts")
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a            Attempt
			score, price sql.NullInt64
			created      string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.URL, &a.Title, &score, &price,
			&a.PriceTier, &a.State, &a.Outcome, &a.Reason, &a.Error, &created); err != nil {
			return nil, errs.Wrap(err, "scan attempt")
		}
		if score.Valid {
			v := int(score.Int64)
			a.Score = &v
		}
		if price.Valid {
			v := int(price.Int64)
			a.Price = &v
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByOutcome tallies attempts created at or after since.
func CountByOutcome(ctx context.Context, db *sql.DB, since time.Time) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
SELECT outcome, COUNT(*)
FROM attempts
WHERE created_at >= ?
GROUP BY outcome;`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, errs.Wrap(err, "count attempts")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// CleanupOldAttempts drops audit rows older than keep.
func CleanupOldAttempts(ctx context.Context, db *sql.DB, keep time.Duration) (deleted int64, err error) {
	cutoff := time.Now().Add(-keep).UTC().Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, errs.Wrap(err, "cleanup old attempts")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
