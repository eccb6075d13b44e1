package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bidbot-engine/internal/engine"
)

// RunCmd runs a single bidding cycle in the foreground.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one bidding cycle now",
	Long: `Run one bidding cycle: check the caps, make sure the browser is logged in,
scan the listing and bid on every posting that passes the filters and the score
threshold, stopping at the first cap.

Without --auto (and with run.auto_mode=false) each bid waits for Enter on the
terminal before it is sent.`,
	RunE: runOnce,
}

var (
	runAutoFlag     bool
	runHeadlessFlag bool
	runNoAuditFlag  bool
)

func init() {
	RunCmd.Flags().BoolVar(&runAutoFlag, "auto", false, "Send without confirmation (overrides run.auto_mode)")
	RunCmd.Flags().BoolVar(&runHeadlessFlag, "headless", false, "Run Chrome headless (overrides browser.headless)")
	RunCmd.Flags().BoolVar(&runNoAuditFlag, "no-audit", false, "Do not write the SQLite audit trail")
}

func runOnce(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("auto") {
		app.Cfg.Run.AutoMode = runAutoFlag
	}
	if cmd.Flags().Changed("headless") {
		app.Cfg.Browser.Headless = runHeadlessFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, release, err := app.openLedger()
	if err != nil {
		return err
	}
	defer release()

	deps := engineDeps{Ledger: l, Interactive: true}
	if !runNoAuditFlag {
		db, err := app.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		deps.DB = db
	}

	e, err := app.buildEngine(deps)
	if err != nil {
		return err
	}

	rep, err := e.RunOnce(ctx)
	printReport(cmd.OutOrStdout(), rep)
	if err != nil && ctx.Err() != nil && rep.StopReason == engine.StopCancelled {
		return nil
	}
	return err
}

// runTask adapts RunOnce to the scheduler's task signature.
func runTask(e *engine.Engine) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := e.RunOnce(ctx)
		return err
	}
}

func printReport(w io.Writer, rep engine.RunReport) {
	stop := rep.StopReason
	if stop == engine.StopCompleted {
		stop = "completed"
	}
	fmt.Fprintf(w, "\nrun %s: %s in %s\n", rep.RunID, stop, rep.Duration().Round(time.Second))
	fmt.Fprintf(w, "  candidates     %d\n", rep.Candidates)
	fmt.Fprintf(w, "  sent           %d (indeterminate %d)\n", rep.Sent, rep.Indeterminate)
	fmt.Fprintf(w, "  rejected       %d\n", rep.Rejected)
	fmt.Fprintf(w, "  already bid    %d\n", rep.AlreadyBid)
	fmt.Fprintf(w, "  skipped        %d\n", rep.Skipped)
	if rep.Error != "" {
		fmt.Fprintf(w, "  error          %s\n", rep.Error)
	}
}
