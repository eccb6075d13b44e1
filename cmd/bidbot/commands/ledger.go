package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bidbot-engine/internal/httpapi"
)

// LedgerCmd groups the ledger inspection commands.
var LedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the proposal ledger",
	Long: `Inspect the proposal ledger (historial_propuestas.json in the data dir).

Examples:
  bidbot ledger stats            # Counts against the daily and weekly caps
  bidbot ledger list --limit 20  # Most recent entries`,
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger counts against the caps",
	RunE:  runLedgerStats,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent ledger entries",
	RunE:  runLedgerList,
}

var (
	ledgerJSONFlag  bool
	ledgerLimitFlag int
)

func init() {
	LedgerCmd.AddCommand(ledgerStatsCmd)
	LedgerCmd.AddCommand(ledgerListCmd)
	ledgerStatsCmd.Flags().BoolVar(&ledgerJSONFlag, "json", false, "Print JSON")
	ledgerListCmd.Flags().IntVar(&ledgerLimitFlag, "limit", 20, "Number of entries to show (0 = all)")
}

func runLedgerStats(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	l := app.openLedgerReadOnly()
	lim := app.limiter(l)
	st := httpapi.ComputeLedgerStats(l, lim, lim.Now())

	out := cmd.OutOrStdout()
	if ledgerJSONFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(out, "ledger      %s\n", st.Path)
	fmt.Fprintf(out, "entries     %d (%d legacy, %d priced)\n", st.Total, st.Legacy, st.Priced)
	fmt.Fprintf(out, "this week   %d / %d (since %s)\n", st.Week, st.Caps.PerWeek, st.WeekStart.Format("Mon 2006-01-02"))
	if st.Caps.PerDay > 0 {
		fmt.Fprintf(out, "today       %d / %d\n", st.Day, st.Caps.PerDay)
	} else {
		fmt.Fprintf(out, "today       %d (no daily cap)\n", st.Day)
	}
	fmt.Fprintf(out, "per run     %d\n", st.Caps.PerRun)
	if st.Last != nil {
		fmt.Fprintf(out, "last entry  %s\n", st.Last.Local().Format(time.DateTime))
	}
	return nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	entries := app.openLedgerReadOnly().Entries()

	// newest first; legacy entries sink to the bottom
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Dated() != b.Dated() {
			return a.Dated()
		}
		return a.Dated() && a.Timestamp.After(*b.Timestamp)
	})
	if ledgerLimitFlag > 0 && len(entries) > ledgerLimitFlag {
		entries = entries[:ledgerLimitFlag]
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tPRICE\tURL")
	for _, e := range entries {
		when, price := "legacy", "-"
		if e.Dated() {
			when = e.Timestamp.Local().Format(time.DateTime)
		}
		if e.Price != nil {
			price = fmt.Sprintf("$%d", *e.Price)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", when, price, e.URL)
	}
	return tw.Flush()
}
