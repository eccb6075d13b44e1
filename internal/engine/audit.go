package engine

import (
	"context"

	"bidbot-engine/internal/store"
)

// Auditor receives a copy of every attempt and run for later inspection.
// Failures are logged by the engine and never stop a run.
type Auditor interface {
	RecordAttempt(ctx context.Context, a store.Attempt) error
	RecordRun(ctx context.Context, r store.Run) error
}

// SQLAudit writes to the SQLite audit database.
type SQLAudit struct {
	DB *store.DB
}

func (s SQLAudit) RecordAttempt(ctx context.Context, a store.Attempt) error {
	_, err := store.InsertAttempt(ctx, s.DB.Pool, a)
	return err
}

func (s SQLAudit) RecordRun(ctx context.Context, r store.Run) error {
	return store.InsertRun(ctx, s.DB.Pool, r)
}
