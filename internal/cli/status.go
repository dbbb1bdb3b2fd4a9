package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

func newStatusCmd(a *app) *cobra.Command {
	var (
		all   bool
		owner string
	)

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show running workspaces with TTL and deadline",
		GroupID: "workspace",
		Example: `  coder-audit status
  coder-audit status --all
  coder-audit status --owner alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			q := "status:running"
			if all {
				q = ""
			}
			if owner != "" {
				if q != "" {
					q += " "
				}
				q += "owner:" + owner
			}

			workspaces, err := client.Workspaces(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(workspaces) == 0 {
				fmt.Fprintln(a.stdout, "No workspaces found")
				return nil
			}

			sort.Slice(workspaces, func(i, j int) bool {
				if workspaces[i].OwnerName != workspaces[j].OwnerName {
					return workspaces[i].OwnerName < workspaces[j].OwnerName
				}
				return workspaces[i].Name < workspaces[j].Name
			})

			fmt.Fprintf(a.stdout, "%s%-16s %-24s %-10s %-18s %-8s %-10s %-10s%s\n",
				ansiBold, "USER", "WORKSPACE", "STATUS", "LAST SEEN", "TTL", "DEADLINE", "MAX", ansiReset)
			for _, ws := range workspaces {
				a.printWorkspaceStatus(ws)
			}
			fmt.Fprintf(a.stdout, "\n%d workspace(s)\n", len(workspaces))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include stopped and failed workspaces")
	cmd.Flags().StringVar(&owner, "owner", "", "only show workspaces owned by this user")
	return cmd
}

func (a *app) printWorkspaceStatus(ws coderd.Workspace) {
	status := ws.LatestBuild.Status
	color := ansiGray
	switch status {
	case "running":
		color = ansiGreen
	case "stopping", "pending", "starting":
		color = ansiYellow
	case "failed":
		color = ansiRed
	}

	lastSeen := session.FormatStamp(ws.LastUsedAt)
	ttl := "N/A"
	if ws.TTLMillis != nil {
		ttl = formatTTL(millisDuration(*ws.TTLMillis))
	}

	fmt.Fprintf(a.stdout, "%-16s %-24s %s%-10s%s %-18s %-8s %-10s %-10s\n",
		session.Truncate(ws.OwnerName, 16),
		session.Truncate(ws.Name, 24),
		color, status, ansiReset,
		lastSeen,
		ttl,
		formatDeadline(ws.LatestBuild.Deadline),
		formatDeadline(ws.LatestBuild.MaxDeadline),
	)
}

func millisDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
