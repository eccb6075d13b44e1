package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bidbot-engine/internal/store"
)

// AttemptsCmd lists the audit trail.
var AttemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List audited attempts",
	Long: `List what the engine did with each posting, newest first.

Examples:
  bidbot attempts                      # Last 7 days
  bidbot attempts --window 24h --outcome sent
  bidbot attempts --summary            # Counts per outcome
  bidbot attempts --runs               # One line per run`,
	RunE: runAttempts,
}

var (
	attemptsWindowFlag  string
	attemptsOutcomeFlag string
	attemptsRunFlag     string
	attemptsLimitFlag   int
	attemptsSummaryFlag bool
	attemptsRunsFlag    bool
)

func init() {
	AttemptsCmd.Flags().StringVar(&attemptsWindowFlag, "window", "7d", "24h, 7d or all")
	AttemptsCmd.Flags().StringVar(&attemptsOutcomeFlag, "outcome", "", "Only this outcome")
	AttemptsCmd.Flags().StringVar(&attemptsRunFlag, "run", "", "Only this run id")
	AttemptsCmd.Flags().IntVar(&attemptsLimitFlag, "limit", 50, "Maximum rows")
	AttemptsCmd.Flags().BoolVar(&attemptsSummaryFlag, "summary", false, "Counts per outcome instead of rows")
	AttemptsCmd.Flags().BoolVar(&attemptsRunsFlag, "runs", false, "List runs instead of attempts")
}

func runAttempts(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch {
	case attemptsRunsFlag:
		runs, err := store.ListRuns(ctx, db.Pool, attemptsLimitFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "STARTED\tRUN\tCANDIDATES\tSENT\tREJECTED\tSKIPPED\tSTOP")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", r.Started.Local().Format(time.DateTime),
				r.RunID, r.Candidates, r.Sent, r.Rejected, r.Skipped, r.StopReason)
		}

	case attemptsSummaryFlag:
		since, _ := store.WindowStart(attemptsWindowFlag, time.Now())
		counts, err := store.CountByOutcome(ctx, db.Pool, since)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(tw, "OUTCOME\tCOUNT")
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
		}

	default:
		rows, err := store.ListAttempts(ctx, db.Pool, store.ListAttemptsOpts{
			RunID:   attemptsRunFlag,
			Outcome: attemptsOutcomeFlag,
			Window:  attemptsWindowFlag,
			Limit:   attemptsLimitFlag,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "WHEN\tOUTCOME\tSCORE\tPRICE\tTITLE")
		for _, a := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.CreatedAt.Local().Format(time.DateTime),
				a.Outcome, optInt(a.Score, ""), optInt(a.Price, "$"), a.Title)
		}
	}
	return nil
}

func optInt(p *int, prefix string) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s%d", prefix, *p)
}
