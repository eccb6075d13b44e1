package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"go.uber.org/zap"

	"bidbot-engine/internal/config"
	"bidbot-engine/internal/engine"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/quota"
)

// Runner is the slice of engine.Engine the API drives.
type Runner interface {
	RunOnce(ctx context.Context) (engine.RunReport, error)
	Running() bool
	Last() (engine.RunReport, bool)
}

type Deps struct {
	DB *sql.DB

	Hub     *events.Hub
	Ledger  *ledger.Store
	Limiter *quota.Limiter
	Runner  Runner

	// RunCtx bounds runs started over HTTP; cancel it on shutdown.
	RunCtx context.Context

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Log *zap.SugaredLogger
}
