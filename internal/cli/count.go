package cli

// count.go — coder-audit count command.
//
// Walks the whole audit window page by page and prints two tables: total
// count per action, and login count per user, plus the overall connection
// total. The walk follows the after_id cursor to exhaustion and bails out if
// the server ever hands back the same cursor twice in a row.

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/aggregate"
	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/state"
)

func newCountCmd(a *app) *cobra.Command {
	var (
		start     string
		end       string
		sinceLast bool
		pageSize  int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:     "count",
		Short:   "Count actions and logins over a date range",
		GroupID: "audit",
		Example: `  coder-audit count --start 2024-01-01 --end 2024-01-31
  coder-audit count --since-last
  coder-audit count --start 2024-01-01 --end 2024-01-31 --page-size 250 -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var startISO, endISO string
			runState, stateErr := state.Load()
			if stateErr != nil {
				runState = &state.Store{}
			}
			switch {
			case sinceLast:
				if start != "" || end != "" {
					return fmt.Errorf("--since-last cannot be combined with --start/--end")
				}
				if runState.LastCountEnd == "" {
					return fmt.Errorf("no previous count run recorded; use --start and --end")
				}
				startISO = runState.LastCountEnd
				endISO = time.Now().UTC().Format(time.RFC3339)
				start, end = startISO, endISO
			case start != "" && end != "":
				var err error
				startISO, err = dayStart(start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				endISO, err = dayEnd(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			default:
				return fmt.Errorf("either --start and --end, or --since-last, is required")
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = a.cfg.Audit.PageSize
			}

			res, err := client.FetchAuditLogs(cmd.Context(), coderd.AuditQuery{
				AfterTime:  startISO,
				BeforeTime: endISO,
				Limit:      pageSize,
			})
			if err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(a.stderr, "fetched %d events over %d page(s)\n", len(res.Logs), res.Pages)
			}
			if res.Truncated {
				fmt.Fprintf(a.stderr, "%swarning: pagination repeated cursor %s; counts cover a partial range%s\n", ansiYellow, res.Cursor, ansiReset)
			}

			counts := aggregate.Fold(res.Logs)
			a.printCountTable("Action Summary", "Action", counts.SortedActions())
			a.printCountTable("Login Summary", "User", counts.SortedLogins())
			fmt.Fprintf(a.stdout, "\nTotal connection count between %s and %s: %s%d%s\n",
				start, end, ansiBold, counts.Connections, ansiReset)

			if !res.Truncated && stateErr == nil {
				runState.MarkCountRun(endISO)
				if err := state.Save(runState); err != nil {
					fmt.Fprintf(a.stderr, "could not record run state: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&sinceLast, "since-last", false, "count from the end of the previous run to now")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "audit page size (default: audit.pageSize from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report per-page fetch progress")
	return cmd
}

func (a *app) printCountTable(title, nameHeader string, entries []aggregate.Entry) {
	fmt.Fprintf(a.stdout, "\n%s=== %s ===%s\n", ansiBold, title, ansiReset)
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "(none)")
		return
	}
	nameWidth := len(nameHeader)
	for _, e := range entries {
		if len(e.Name) > nameWidth {
			nameWidth = len(e.Name)
		}
	}
	fmt.Fprintf(a.stdout, "%-*s  %8s\n", nameWidth, nameHeader, "Count")
	fmt.Fprintf(a.stdout, "%s\n", strings.Repeat("─", nameWidth+10))
	for _, e := range entries {
		fmt.Fprintf(a.stdout, "%-*s  %8d\n", nameWidth, e.Name, e.Count)
	}
}

// dayStart converts YYYY-MM-DD to the ISO instant at the start of that day.
func dayStart(date string) (string, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return t.UTC().Format(time.RFC3339), nil
}

// dayEnd converts YYYY-MM-DD to the ISO instant at the end of that day.
func dayEnd(date string) (string, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return t.UTC().Add(24*time.Hour - time.Second).Format(time.RFC3339), nil
}
