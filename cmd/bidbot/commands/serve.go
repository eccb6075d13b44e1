package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bidbot-engine/internal/config"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/httpapi"
	"bidbot-engine/internal/metrics"
	"bidbot-engine/internal/scheduler"
	"bidbot-engine/internal/store"
)

// ServeCmd starts the local HTTP API, optionally with scheduled runs.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API",
	Long: `Start the HTTP API on 127.0.0.1:<app.port>. It exposes run status, ledger
stats, the audit trail, config, Prometheus metrics and a server-sent event
stream, and accepts POST /run to start a cycle.

Runs started here never prompt on the terminal; they follow run.auto_mode
with a timed login window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon(cmd, daemonOpts{HTTP: true, Schedule: serveScheduleFlag, Addr: serveAddrFlag})
	},
}

// ScheduleCmd runs cycles at the configured times without the HTTP API.
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run bidding cycles on the configured weekly schedule",
	Long: `Run a cycle at every schedule.times entry on every schedule.weekdays day
until interrupted. Caps are re-checked at every start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon(cmd, daemonOpts{Schedule: true})
	},
}

var (
	serveScheduleFlag bool
	serveAddrFlag     string
)

const (
	auditRetention = 90 * 24 * time.Hour
	cleanupEvery   = 24 * time.Hour
	shutdownGrace  = 10 * time.Second
)

func init() {
	ServeCmd.Flags().BoolVar(&serveScheduleFlag, "schedule", false, "Also run cycles on the configured schedule")
	ServeCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default 127.0.0.1:<app.port>)")
}

type daemonOpts struct {
	HTTP     bool
	Schedule bool
	Addr     string
}

func daemon(cmd *cobra.Command, o daemonOpts) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	log := app.Log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger, err := app.Cfg.Trigger()
	if err != nil {
		return err
	}

	l, release, err := app.openLedger()
	if err != nil {
		return err
	}
	defer release()

	db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	hub := events.NewHub()
	e, err := app.buildEngine(engineDeps{Ledger: l, DB: db, Events: hub})
	if err != nil {
		return err
	}
	limiter := app.limiter(l)
	metrics.SetWeeklySent(limiter.WeeklyCount(limiter.Now()))

	var ln net.Listener
	if o.HTTP {
		addr := o.Addr
		if addr == "" {
			addr = fmt.Sprintf("127.0.0.1:%d", app.Cfg.App.Port)
		}
		if ln, err = net.Listen("tcp", addr); err != nil {
			return errs.Wrapf(err, "listen %s", addr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Every(gctx, cleanupEvery, "audit-cleanup", func(ctx context.Context) error {
			n, err := store.CleanupOldAttempts(ctx, db.Pool, auditRetention)
			if err == nil && n > 0 {
				log.Infow("old attempts removed", "count", n)
			}
			return err
		})
		return nil
	})

	if o.Schedule {
		g.Go(func() error {
			scheduler.Run(gctx, trigger, "bidding-cycle", runTask(e))
			return nil
		})
	}

	if o.HTTP {
		var cfgVal atomic.Value
		cfgVal.Store(app.Cfg)

		handler := httpapi.NewRouter(httpapi.Deps{
			DB:          db.Pool,
			Hub:         hub,
			Ledger:      l,
			Limiter:     limiter,
			Runner:      e,
			RunCtx:      gctx,
			CfgVal:      &cfgVal,
			UserCfgPath: app.CfgPath,
			LoadCfg:     func() (config.Config, error) { return config.Load(app.CfgPath) },
			Log:         log.Named("http"),
		})
		srv := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}

		log.Infow("api listening", "addr", ln.Addr().String())
		fmt.Fprintf(cmd.OutOrStdout(), "BIDBOT_READY addr=%s\n", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errs.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	log.Infow("daemon started", "http", o.HTTP, "schedule", o.Schedule)
	err = g.Wait()
	// a run started over HTTP may still be closing its browser
	deadline := time.Now().Add(shutdownGrace)
	for e.Running() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	log.Infow("daemon stopped")
	return err
}
