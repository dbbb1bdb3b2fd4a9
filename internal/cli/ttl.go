package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/enrich"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

func newTTLCmd(a *app) *cobra.Command {
	var (
		since   time.Duration
		user    string
		workers int
	)

	cmd := &cobra.Command{
		Use:     "ttl",
		Short:   "Report workspace start activity alongside live TTL settings",
		GroupID: "workspace",
		Example: `  coder-audit ttl
  coder-audit ttl --user alice
  coder-audit ttl set 83a6a2e5-0b50-4c44-9f7a-3f84cbd4ab81 8h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if since <= 0 {
				since = a.cfg.WindowDuration()
			}

			after := time.Now().UTC().Add(-since).Format(time.RFC3339)
			res, err := client.FetchAuditLogs(cmd.Context(), coderd.AuditQuery{
				AfterTime: after,
				Q:         "resource_type:workspace_build",
				Limit:     a.cfg.Audit.PageSize,
			})
			if err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintf(a.stderr, "%swarning: pagination repeated cursor %s; report may be incomplete%s\n", ansiYellow, res.Cursor, ansiReset)
			}

			report := session.Reconstruct(res.Logs)
			if user != "" {
				report = report.FilterUser(user)
			}
			if len(report.Sessions) == 0 {
				fmt.Fprintln(a.stdout, "No workspace activity found")
				return nil
			}

			ids := make([]string, 0, len(report.Sessions))
			for _, s := range report.Sessions {
				if s.WorkspaceID != "" {
					ids = append(ids, s.WorkspaceID)
				}
			}
			details := enrich.New(client, workers).LookupAll(cmd.Context(), ids)

			fmt.Fprintf(a.stdout, "%s%-8s %-24s %-18s %-8s %-10s %-10s%s\n",
				ansiBold, "USER", "WORKSPACE", "LAST START", "TTL", "DEADLINE", "STATUS", ansiReset)
			for _, s := range report.Sessions {
				d, ok := details[s.WorkspaceID]
				ttl, deadline, status := "unknown", "unknown", "unknown"
				if ok && d.Found {
					ttl = formatTTL(d.TTL)
					deadline = formatDeadline(d.Deadline)
					status = d.Status
				}
				fmt.Fprintf(a.stdout, "%-8s %-24s %-18s %-8s %-10s %-10s\n",
					s.DisplayUsername(),
					s.DisplayWorkspace(),
					session.FormatStamp(s.StartTime),
					ttl, deadline, status,
				)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "lookback window (default: audit.window from config)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "only show activity for this user")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent workspace lookups (default 4)")

	cmd.AddCommand(newTTLSetCmd(a))
	return cmd
}

func newTTLSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <workspace-id> <ttl>",
		Short: "Update a workspace's TTL",
		Long:  "Update a workspace's time-to-live. The TTL is a Go duration (e.g. 8h, 90m); pass 0 to clear it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			workspaceID := args[0]
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid ttl %q: %w", args[1], err)
			}
			if ttl < 0 {
				return fmt.Errorf("ttl must not be negative")
			}

			var millis *int64
			if ttl > 0 {
				ms := ttl.Milliseconds()
				millis = &ms
			}
			if err := client.UpdateWorkspaceTTL(cmd.Context(), workspaceID, millis); err != nil {
				return err
			}

			if millis == nil {
				fmt.Fprintf(a.stdout, "%sCleared TTL%s for workspace %s\n", ansiGreen, ansiReset, workspaceID)
			} else {
				fmt.Fprintf(a.stdout, "%sSet TTL%s to %s for workspace %s\n", ansiGreen, ansiReset, formatTTL(ttl), workspaceID)
			}
			return nil
		},
	}
}
