package cli

// last.go — coder-audit last command.
//
// Emulates the Unix last command over Coder audit logs: workspace_build
// start events open a session for (user, workspace), the matching stop or
// delete event closes it. Sessions with no closing event are reported as
// still open.
//
// Usage:
//   coder-audit last [username] [-n 10] [-R] [--since 168h] [--details]
//   coder-audit last --system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/enrich"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
	"github.com/bjornrobertsson/coder-audit-simple/internal/state"
)

func newLastCmd(a *app) *cobra.Command {
	var (
		limit      int
		user       string
		noHostname bool
		since      time.Duration
		details    bool
		system     bool
		recent     bool
	)

	cmd := &cobra.Command{
		Use:     "last [username]",
		Short:   "Show user session history (like the Unix last command)",
		GroupID: "audit",
		Args:    cobra.MaximumNArgs(1),
		Example: `  coder-audit last
  coder-audit last -n 10
  coder-audit last alice
  coder-audit last -R
  coder-audit last --since 168h --details
  coder-audit last --system`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recent {
				return a.printRecentUsers()
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if system {
				return a.printSystemEvents(ctx, client, limit)
			}

			window := since
			if window <= 0 {
				window = a.cfg.WindowDuration()
			}
			if limit <= 0 {
				limit = a.cfg.Output.Limit
			}
			now := time.Now().UTC()
			res, err := client.FetchAuditLogs(ctx, coderd.AuditQuery{
				AfterTime:  now.Add(-window).Format(time.RFC3339),
				BeforeTime: now.Format(time.RFC3339),
				Q:          "resource_type:workspace_build",
				Limit:      a.cfg.Audit.PageSize,
			})
			if err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintf(a.stderr, "%swarning: audit pagination repeated cursor %s; session history is incomplete%s\n", ansiYellow, res.Cursor, ansiReset)
			}

			report := session.Reconstruct(res.Logs)
			username := user
			if username == "" && len(args) == 1 {
				username = args[0]
			}
			report = report.FilterUser(username)
			sessions := report.Limit(limit)
			if username != "" {
				rememberUser(username)
			}

			if len(sessions) == 0 {
				fmt.Fprintln(a.stdout, "No sessions found")
				return nil
			}

			var detailsByID map[string]enrich.Details
			if details {
				ids := make([]string, 0, len(sessions))
				for _, s := range sessions {
					ids = append(ids, s.WorkspaceID)
				}
				detailsByID = enrich.New(client, 4).LookupAll(ctx, ids)
			}

			for _, s := range sessions {
				a.printSession(s, !noHostname, detailsByID)
			}

			earliest := sessions[len(sessions)-1].StartTime
			for _, s := range sessions {
				if s.StartTime < earliest {
					earliest = s.StartTime
				}
			}
			fmt.Fprintf(a.stdout, "\naudit logs begin %s\n", session.FormatStamp(earliest))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of sessions to show (default: output.limit from config)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "show sessions for a specific user")
	cmd.Flags().BoolVarP(&noHostname, "no-hostname", "R", false, "suppress the IP address column")
	cmd.Flags().DurationVar(&since, "since", 0, "lookback window (default: audit.window from config)")
	cmd.Flags().BoolVar(&details, "details", false, "annotate sessions with live workspace TTL/deadline/status")
	cmd.Flags().BoolVar(&system, "system", false, "show system events (template changes) instead of sessions")
	cmd.Flags().BoolVar(&recent, "recent", false, "list recently queried usernames")
	return cmd
}

// rememberUser records a queried username for last --recent. Best effort.
func rememberUser(username string) {
	s, err := state.Load()
	if err != nil {
		return
	}
	s.AddRecentUser(username)
	_ = state.Save(s)
}

func (a *app) printRecentUsers() error {
	s, err := state.Load()
	if err != nil {
		return err
	}
	if len(s.RecentUsers) == 0 {
		fmt.Fprintln(a.stdout, "No recently queried users")
		return nil
	}
	for _, u := range s.RecentUsers {
		fmt.Fprintln(a.stdout, u)
	}
	return nil
}

// printSession renders one session in last format:
//
//	alice    dev1                     10.0.0.7         Mon Jan 01 09:00 - Mon Jan 01 11:30 (02:30)
func (a *app) printSession(s session.Session, showHostname bool, detailsByID map[string]enrich.Details) {
	username := fmt.Sprintf("%-*s", session.MaxUsernameWidth, s.DisplayUsername())
	workspace := fmt.Sprintf("%-*s", session.MaxWorkspaceWidth, s.DisplayWorkspace())
	hostname := strings.Repeat(" ", 16)
	if showHostname && s.IP != "" {
		hostname = fmt.Sprintf("%-16s", session.Truncate(s.IP, 16))
	}

	start := session.FormatStamp(s.StartTime)
	if s.Open() {
		fmt.Fprintf(a.stdout, "%s %s %s %s   %s%s%s", username, workspace, hostname, start, ansiGreen, s.Duration(), ansiReset)
	} else {
		fmt.Fprintf(a.stdout, "%s %s %s %s - %s %s", username, workspace, hostname, start, session.FormatStamp(s.EndTime), s.Duration())
	}

	if detailsByID != nil {
		d, ok := detailsByID[s.WorkspaceID]
		if !ok || !d.Found {
			fmt.Fprintf(a.stdout, "  %s[state: unknown]%s", ansiGray, ansiReset)
		} else {
			fmt.Fprintf(a.stdout, "  %s[%s ttl=%s deadline=%s]%s", ansiGray, d.Status, formatTTL(d.TTL), formatDeadline(d.Deadline), ansiReset)
		}
	}
	fmt.Fprintln(a.stdout)
}

// printSystemEvents shows template updates and other system-level changes,
// the rough equivalent of reboot entries in last output.
func (a *app) printSystemEvents(ctx context.Context, client *coderd.Client, limit int) error {
	if limit <= 0 {
		limit = a.cfg.Output.Limit
	}
	logs, err := client.AuditLogs(ctx, coderd.AuditQuery{Q: "resource_type:template", Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "System events (template updates, configuration changes):")
	if len(logs) == 0 {
		fmt.Fprintln(a.stdout, "No system events found")
		return nil
	}
	for _, log := range logs {
		fmt.Fprintf(a.stdout, "system   %-12s %s (%s %s by %s)\n",
			log.ResourceType,
			session.FormatStamp(log.Time),
			log.Action,
			log.ResourceTarget,
			log.Username(),
		)
	}
	return nil
}

// formatTTL renders a TTL compactly: 30s, 45m, 8h, 3d. Zero renders N/A.
func formatTTL(d time.Duration) string {
	switch {
	case d <= 0:
		return "N/A"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}

// formatDeadline renders the time remaining until an autostop deadline.
func formatDeadline(deadline string) string {
	t, ok := session.ParseStamp(deadline)
	if !ok || t.IsZero() {
		return "N/A"
	}
	remaining := time.Until(t)
	if remaining < 0 {
		return "expired"
	}
	days := int(remaining / (24 * time.Hour))
	hours := int(remaining/time.Hour) % 24
	minutes := int(remaining/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
