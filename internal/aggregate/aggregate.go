// Package aggregate counts audit events over a window: totals per action,
// logins per user, and an overall connection-event total.
package aggregate

import (
	"sort"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

// connectionActions are the action names that count as a user connecting to
// the deployment. The vocabulary is open upstream, so this is a superset of
// the names seen across Coder versions.
var connectionActions = map[string]struct{}{
	"login":                      {},
	"start":                      {},
	"start_workspace_connection": {},
	"connect_workspace":          {},
	"workspace_connection":       {},
	"workspace.connect":          {},
}

// Counts is the result of one counting fold. The fold is order-independent
// and does no deduplication: an event delivered twice (for example out of a
// cycle-truncated fetch) counts twice, by contract.
type Counts struct {
	// Actions maps every action name to its total.
	Actions map[string]int
	// Logins maps username to login-event count.
	Logins map[string]int
	// Connections is the total of events whose action is a connection action.
	Connections int
}

// Fold counts one batch of audit logs.
func Fold(logs []coderd.AuditLog) Counts {
	c := Counts{
		Actions: make(map[string]int),
		Logins:  make(map[string]int),
	}
	for _, log := range logs {
		c.Actions[log.Action]++
		if log.Action == "login" {
			c.Logins[log.Username()]++
		}
		if _, ok := connectionActions[log.Action]; ok {
			c.Connections++
		}
	}
	return c
}

// Entry is one row of a count table.
type Entry struct {
	Name  string
	Count int
}

// SortedActions returns the action totals sorted by count descending, name
// ascending on ties, for stable display.
func (c Counts) SortedActions() []Entry { return sortEntries(c.Actions) }

// SortedLogins returns the per-user login totals, count descending.
func (c Counts) SortedLogins() []Entry { return sortEntries(c.Logins) }

func sortEntries(m map[string]int) []Entry {
	out := make([]Entry, 0, len(m))
	for name, count := range m {
		out = append(out, Entry{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
