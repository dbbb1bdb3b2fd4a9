package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

func newCostCmd(a *app) *cobra.Command {
	var (
		deleted bool
		owner   string
	)

	cmd := &cobra.Command{
		Use:     "cost",
		Short:   "Report daily cost per workspace",
		GroupID: "workspace",
		Example: `  coder-audit cost
  coder-audit cost --deleted
  coder-audit cost --owner alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			q := ""
			if deleted {
				q = "deleted:true"
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

			// Highest daily cost first, owner/name to break ties.
			sort.Slice(workspaces, func(i, j int) bool {
				ci, cj := workspaces[i].LatestBuild.DailyCost, workspaces[j].LatestBuild.DailyCost
				if ci != cj {
					return ci > cj
				}
				if workspaces[i].OwnerName != workspaces[j].OwnerName {
					return workspaces[i].OwnerName < workspaces[j].OwnerName
				}
				return workspaces[i].Name < workspaces[j].Name
			})

			label := "Workspace daily cost"
			if deleted {
				label = "Deleted workspace daily cost"
			}
			fmt.Fprintf(a.stdout, "%s%s%s\n\n", ansiBold, label, ansiReset)
			fmt.Fprintf(a.stdout, "%-16s %-24s %-20s %10s\n", "USER", "WORKSPACE", "TEMPLATE", "DAILY COST")

			var total float64
			for _, ws := range workspaces {
				template := ws.TemplateDisplayName
				if template == "" {
					template = ws.TemplateName
				}
				fmt.Fprintf(a.stdout, "%-16s %-24s %-20s %10.2f\n",
					session.Truncate(ws.OwnerName, 16),
					session.Truncate(ws.Name, 24),
					session.Truncate(template, 20),
					ws.LatestBuild.DailyCost,
				)
				total += ws.LatestBuild.DailyCost
			}
			fmt.Fprintf(a.stdout, "\nTotal daily cost across %d workspace(s): %s%.2f%s\n",
				len(workspaces), ansiBold, total, ansiReset)
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleted, "deleted", false, "report deleted workspaces instead of live ones")
	cmd.Flags().StringVar(&owner, "owner", "", "only include workspaces owned by this user")
	return cmd
}
