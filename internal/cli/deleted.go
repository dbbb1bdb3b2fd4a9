package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

// deletedWorkspace is one deletion event pulled from the audit stream.
type deletedWorkspace struct {
	Name      string
	DeletedAt string
	DeletedBy string
}

func newDeletedCmd(a *app) *cobra.Command {
	var (
		user     string
		pageSize int
	)

	cmd := &cobra.Command{
		Use:     "deleted",
		Short:   "List deleted workspaces grouped by owner",
		GroupID: "workspace",
		Example: `  coder-audit deleted
  coder-audit deleted --user alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = a.cfg.Audit.PageSize
			}

			res, err := client.FetchAuditLogs(cmd.Context(), coderd.AuditQuery{
				Q:     "resource_type:workspace action:delete",
				Limit: pageSize,
			})
			if err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintf(a.stderr, "%swarning: pagination repeated cursor %s; listing may be incomplete%s\n", ansiYellow, res.Cursor, ansiReset)
			}

			// Owners missing from the user roster get flagged: their
			// workspaces were deleted along with the account.
			knownUsers := map[string]bool{}
			if users, err := client.Users(cmd.Context()); err == nil {
				for _, u := range users {
					knownUsers[u.Username] = true
				}
			}

			byOwner := map[string][]deletedWorkspace{}
			for _, log := range res.Logs {
				owner := log.WorkspaceOwner()
				if owner == "" {
					owner = log.Username()
				}
				if user != "" && owner != user {
					continue
				}
				byOwner[owner] = append(byOwner[owner], deletedWorkspace{
					Name:      log.WorkspaceName(),
					DeletedAt: log.Time,
					DeletedBy: log.Username(),
				})
			}
			if len(byOwner) == 0 {
				fmt.Fprintln(a.stdout, "No deleted workspaces found")
				return nil
			}

			owners := make([]string, 0, len(byOwner))
			for owner := range byOwner {
				owners = append(owners, owner)
			}
			sort.Strings(owners)

			total := 0
			for _, owner := range owners {
				label := owner
				if len(knownUsers) > 0 && !knownUsers[owner] && owner != "unknown" {
					label += " " + ansiGray + "(user removed)" + ansiReset
				}
				fmt.Fprintf(a.stdout, "\n%s%s%s\n", ansiBold, label, ansiReset)
				for _, ws := range byOwner[owner] {
					line := fmt.Sprintf("  %-24s deleted %s", session.Truncate(ws.Name, 24), session.FormatStamp(ws.DeletedAt))
					if ws.DeletedBy != "" && ws.DeletedBy != owner {
						line += fmt.Sprintf(" by %s", ws.DeletedBy)
					}
					fmt.Fprintln(a.stdout, line)
					total++
				}
			}
			fmt.Fprintf(a.stdout, "\n%d deleted workspace(s)\n", total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "only show workspaces owned by this user")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "audit page size (default: audit.pageSize from config)")
	return cmd
}
