package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

func newUsersCmd(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "users",
		Short:   "Show users with their last-seen time",
		GroupID: "workspace",
		Example: `  coder-audit users
  coder-audit users --status suspended`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			users, err := client.Users(cmd.Context())
			if err != nil {
				return err
			}
			if status != "" {
				kept := users[:0]
				for _, u := range users {
					if u.Status == status {
						kept = append(kept, u)
					}
				}
				users = kept
			}
			if len(users) == 0 {
				fmt.Fprintln(a.stdout, "No users found")
				return nil
			}

			// Most recently seen first; never-seen accounts sink to the end.
			sort.Slice(users, func(i, j int) bool {
				ti, iok := session.ParseStamp(users[i].LastSeenAt)
				tj, jok := session.ParseStamp(users[j].LastSeenAt)
				if iok != jok {
					return iok
				}
				if !ti.Equal(tj) {
					return ti.After(tj)
				}
				return users[i].Username < users[j].Username
			})

			now := time.Now()
			fmt.Fprintf(a.stdout, "%s%-24s %-10s %-18s %s%s\n",
				ansiBold, "USER", "STATUS", "LAST SEEN", "AGO", ansiReset)
			for _, u := range users {
				color := ansiGreen
				switch u.Status {
				case "suspended":
					color = ansiRed
				case "dormant":
					color = ansiGray
				}
				fmt.Fprintf(a.stdout, "%-24s %s%-10s%s %-18s %s\n",
					session.Truncate(u.Username, 24),
					color, u.Status, ansiReset,
					session.FormatStamp(u.LastSeenAt),
					sinceLabel(now, u.LastSeenAt),
				)
			}
			fmt.Fprintf(a.stdout, "\n%d user(s)\n", len(users))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show users with this status (active, dormant, suspended)")
	return cmd
}

// sinceLabel renders how long ago a last-seen stamp was, in days and hours.
func sinceLabel(now time.Time, stamp string) string {
	t, ok := session.ParseStamp(stamp)
	if !ok {
		return "N/A"
	}
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh ago", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh ago", hours)
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
