// Package session reconstructs workspace usage sessions from the audit
// stream, pairing workspace_build start events with their matching
// stop/delete events per (user, workspace), the way the Unix last command
// pairs login/logout records.
package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

// Rendered column widths, matching the classic last output. Truncation applies
// to the rendered copy only; session identity always uses untruncated values.
const (
	MaxWorkspaceWidth = 24
	MaxUsernameWidth  = 8
)

// StillOpenLabel is the duration display for a session with no closing event.
const StillOpenLabel = "still open"

// UnknownLabel is rendered wherever a timestamp fails to parse.
const UnknownLabel = "unknown"

// Key correlates start and stop events into one session lifecycle.
type Key struct {
	Username  string
	Workspace string
}

// Session is one reconstructed open→close interval. EndTime is the empty
// string while the session is still open.
type Session struct {
	Key Key
	// WorkspaceID is additional_fields.workspace_id from the opening event,
	// "" when absent. Used for follow-up detail lookups, never for identity.
	WorkspaceID string
	IP          string
	StartTime   string
	EndTime     string
}

// Open reports whether the session has no closing event yet.
func (s Session) Open() bool { return s.EndTime == "" }

// Duration renders the session length as "(HH:MM)", StillOpenLabel for open
// sessions, and UnknownLabel when either timestamp does not parse.
func (s Session) Duration() string {
	if s.Open() {
		return StillOpenLabel
	}
	start, okStart := ParseStamp(s.StartTime)
	end, okEnd := ParseStamp(s.EndTime)
	if !okStart || !okEnd {
		return UnknownLabel
	}
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	return fmt.Sprintf("(%02d:%02d)", hours, minutes)
}

// DisplayWorkspace is the workspace name capped to the rendered column width.
func (s Session) DisplayWorkspace() string {
	return Truncate(s.Key.Workspace, MaxWorkspaceWidth)
}

// DisplayUsername is the username capped to the rendered column width.
func (s Session) DisplayUsername() string {
	return Truncate(s.Key.Username, MaxUsernameWidth)
}

// Report is the outcome of one reconstruction pass. Sessions holds closed and
// open sessions together, sorted descending by start time (most recent
// first) — callers rely on that order.
type Report struct {
	Sessions []Session
}

// Reconstruct folds the audit batch into sessions. The batch is sorted
// ascending by the raw time string first (fixed-width ISO-8601 UTC, so
// lexicographic order is chronological order) because upstream delivery
// order is not guaranteed across pages.
//
// Only workspace_build events participate. A start opens a session for its
// key; a second start with no intervening close silently replaces the first
// (last start wins). A stop or delete closes the open session for its key;
// with no open session it is a no-op. Whatever remains open at the end of
// the batch is reported as an open session.
func Reconstruct(logs []coderd.AuditLog) Report {
	sorted := make([]coderd.AuditLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	open := make(map[Key]Session)
	var closed []Session
	for _, log := range sorted {
		if log.ResourceType != "workspace_build" {
			continue
		}
		key := Key{Username: log.Username(), Workspace: log.WorkspaceName()}
		switch log.Action {
		case "start":
			open[key] = Session{Key: key, WorkspaceID: log.WorkspaceID(), IP: log.IP, StartTime: log.Time}
		case "stop", "delete":
			s, ok := open[key]
			if !ok {
				continue
			}
			s.EndTime = log.Time
			closed = append(closed, s)
			delete(open, key)
		}
	}

	sessions := closed
	for _, s := range open {
		sessions = append(sessions, s)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime > sessions[j].StartTime
	})
	return Report{Sessions: sessions}
}

// Limit returns at most n sessions (n <= 0 means all).
func (r Report) Limit(n int) []Session {
	if n <= 0 || n >= len(r.Sessions) {
		return r.Sessions
	}
	return r.Sessions[:n]
}

// FilterUser returns only the sessions belonging to username.
func (r Report) FilterUser(username string) Report {
	if strings.TrimSpace(username) == "" {
		return r
	}
	out := make([]Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		if s.Key.Username == username {
			out = append(out, s)
		}
	}
	return Report{Sessions: out}
}

// ParseStamp parses a fixed-width ISO-8601 UTC timestamp. The second return
// is false for anything that does not parse; callers decide whether to
// render UnknownLabel or fail.
func ParseStamp(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatStamp renders a timestamp the way last does ("Mon Jan 02 15:04"), or
// UnknownLabel when it does not parse.
func FormatStamp(s string) string {
	t, ok := ParseStamp(s)
	if !ok {
		return UnknownLabel
	}
	return t.Format("Mon Jan 02 15:04")
}

// Truncate hard-caps s at width characters, with no ellipsis, matching the
// fixed column layout of last output. The cap counts runes so a multi-byte
// name is never cut mid-character.
func Truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
