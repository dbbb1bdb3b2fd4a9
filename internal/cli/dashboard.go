package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/terminal"
	"github.com/bjornrobertsson/coder-audit-simple/internal/ui"
)

func newDashboardCmd(a *app) *cobra.Command {
	var (
		refresh time.Duration
		since   time.Duration
	)

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Open the interactive session dashboard",
		Long:    "Open a terminal dashboard that reconstructs sessions from the audit log and refreshes on an interval.",
		GroupID: "audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !terminal.IsTTY(os.Stdout) {
				return fmt.Errorf("dashboard needs a terminal; use last or count for plain output")
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if refresh <= 0 {
				refresh = a.cfg.RefreshIntervalDuration()
			}
			if since <= 0 {
				since = a.cfg.WindowDuration()
			}
			return ui.Run(ui.Options{
				Client:   client,
				Window:   since,
				PageSize: a.cfg.Audit.PageSize,
				Refresh:  refresh,
			})
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 0, "refresh interval (default: dashboard.refreshInterval from config)")
	cmd.Flags().DurationVar(&since, "since", 0, "lookback window (default: audit.window from config)")
	return cmd
}
