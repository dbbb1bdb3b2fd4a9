// Package ui implements the interactive audit dashboard.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/enrich"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

// Options configures a dashboard run.
type Options struct {
	Client   *coderd.Client
	Window   time.Duration
	PageSize int
	Refresh  time.Duration
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	openStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	selectedMark = "> "
)

type model struct {
	opts        Options
	sessions    []session.Session
	filtered    []session.Session
	statusLine  string
	truncated   bool
	selected    int
	filtering   bool
	filterInput textinput.Model
	detail      string
	err         string
	lastRefresh time.Time
}

type sessionsLoadedMsg struct {
	sessions  []session.Session
	truncated bool
	status    string
	err       error
}

type detailLoadedMsg struct {
	detail string
	err    error
}

type tickMsg time.Time

// Run starts the dashboard and blocks until the user quits.
func Run(opts Options) error {
	if opts.Refresh <= 0 {
		opts.Refresh = 5 * time.Second
	}
	m := initialModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func initialModel(opts Options) model {
	ti := textinput.New()
	ti.Placeholder = "filter sessions"
	ti.CharLimit = 128
	ti.Width = 40
	return model{opts: opts, filterInput: ti}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadSessionsCmd(m.opts), tickCmd(m.opts.Refresh))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "esc", "enter":
				m.filtering = false
				m.applyFilter()
				return m, nil
			default:
				var cmd tea.Cmd
				m.filterInput, cmd = m.filterInput.Update(msg)
				m.applyFilter()
				return m, cmd
			}
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, loadSessionsCmd(m.opts)
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.filtered)-1 {
				m.selected++
			}
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, textinput.Blink
		case "d", "enter":
			if s, ok := m.currentSession(); ok {
				return m, detailLoadCmd(m.opts, s)
			}
		case "u":
			return m, userStatusCmd(m.opts)
		case "a":
			return m, userActivityCmd(m.opts)
		}
		return m, nil
	case sessionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.sessions = msg.sessions
		m.truncated = msg.truncated
		m.statusLine = msg.status
		m.lastRefresh = time.Now()
		m.err = ""
		m.applyFilter()
		return m, nil
	case detailLoadedMsg:
		if msg.err != nil {
			m.detail = "Error: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		return m, nil
	case tickMsg:
		return m, tea.Batch(loadSessionsCmd(m.opts), tickCmd(m.opts.Refresh))
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("coder-audit dashboard"))
	b.WriteString(dimStyle.Render("  •  / filter  •  d details  •  u user status  •  a activity  •  r refresh  •  q quit"))
	b.WriteString("\n")
	if !m.lastRefresh.IsZero() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("refreshed %s  %s", m.lastRefresh.Format("15:04:05"), m.statusLine)))
		b.WriteString("\n")
	}
	if m.truncated {
		b.WriteString(warnStyle.Render("warning: audit pagination was cut short; list may be incomplete"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.filtering {
		b.WriteString("Filter: " + m.filterInput.View() + "\n\n")
	}
	if m.err != "" {
		b.WriteString("Error loading sessions: " + m.err + "\n\n")
	}
	b.WriteString("Sessions\n")
	if len(m.filtered) == 0 {
		b.WriteString("  (no sessions)\n")
	} else {
		for i, s := range m.filtered {
			prefix := "  "
			if i == m.selected {
				prefix = selectedMark
			}
			line := fmt.Sprintf("%s%-8s %-24s %s", prefix, s.DisplayUsername(), s.DisplayWorkspace(), session.FormatStamp(s.StartTime))
			if s.Open() {
				line += "  " + openStyle.Render(s.Duration())
			} else {
				line += fmt.Sprintf(" - %s %s", session.FormatStamp(s.EndTime), s.Duration())
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\nDetails\n")
	if strings.TrimSpace(m.detail) == "" {
		b.WriteString("  (select a session and press d)\n")
	} else {
		detail := m.detail
		if len(detail) > 4000 {
			detail = detail[:4000] + "\n... output truncated ..."
		}
		b.WriteString(detail)
		if !strings.HasSuffix(detail, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *model) applyFilter() {
	needle := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	if needle == "" {
		m.filtered = append([]session.Session(nil), m.sessions...)
		m.selected = min(m.selected, max(0, len(m.filtered)-1))
		return
	}
	out := make([]session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		key := strings.ToLower(s.Key.Username + "/" + s.Key.Workspace)
		if strings.Contains(key, needle) {
			out = append(out, s)
		}
	}
	m.filtered = out
	if m.selected >= len(m.filtered) {
		m.selected = max(0, len(m.filtered)-1)
	}
}

func (m model) currentSession() (session.Session, bool) {
	if len(m.filtered) == 0 || m.selected < 0 || m.selected >= len(m.filtered) {
		return session.Session{}, false
	}
	return m.filtered[m.selected], true
}

func loadSessionsCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		after := time.Now().UTC().Add(-opts.Window).Format(time.RFC3339)
		res, err := opts.Client.FetchAuditLogs(ctx, coderd.AuditQuery{
			AfterTime: after,
			Q:         "resource_type:workspace_build",
			Limit:     opts.PageSize,
		})
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		report := session.Reconstruct(res.Logs)
		open := 0
		for _, s := range report.Sessions {
			if s.Open() {
				open++
			}
		}
		status := fmt.Sprintf("%d session(s), %d open, %d event(s) over %d page(s)", len(report.Sessions), open, len(res.Logs), res.Pages)
		return sessionsLoadedMsg{sessions: report.Sessions, truncated: res.Truncated, status: status}
	}
}

func detailLoadCmd(opts Options, s session.Session) tea.Cmd {
	return func() tea.Msg {
		if s.WorkspaceID == "" {
			return detailLoadedMsg{detail: "No workspace id recorded for this session."}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		d, err := enrich.New(opts.Client, 1).Lookup(ctx, s.WorkspaceID)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		if !d.Found {
			return detailLoadedMsg{detail: fmt.Sprintf("  %s/%s: workspace no longer available", s.Key.Username, s.Key.Workspace)}
		}
		return detailLoadedMsg{detail: fmt.Sprintf(
			"  %s/%s\n  status:   %s\n  ttl:      %s\n  deadline: %s\n",
			s.Key.Username, s.Key.Workspace, d.Status, d.TTL, d.Deadline,
		)}
	}
}

func userStatusCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		counts, err := opts.Client.UserStatusCounts(ctx)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		latest := counts.Latest()
		if len(latest) == 0 {
			return detailLoadedMsg{detail: "  (no user status data)"}
		}
		var b strings.Builder
		b.WriteString("  User status counts\n")
		for _, status := range []string{"active", "dormant", "suspended"} {
			if n, ok := latest[status]; ok {
				b.WriteString(fmt.Sprintf("  %-10s %d\n", status, n))
				delete(latest, status)
			}
		}
		for status, n := range latest {
			b.WriteString(fmt.Sprintf("  %-10s %d\n", status, n))
		}
		return detailLoadedMsg{detail: b.String()}
	}
}

func userActivityCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// The insights endpoint wants day-aligned bounds: midnight 30 days
		// ago through midnight today.
		end := time.Now().UTC().Truncate(24 * time.Hour)
		start := end.AddDate(0, 0, -30)
		report, err := opts.Client.UserActivity(ctx, start, end)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		if len(report.Users) == 0 {
			return detailLoadedMsg{detail: "  (no user activity data)"}
		}
		users := append([]coderd.UserActivity(nil), report.Users...)
		sort.Slice(users, func(i, j int) bool {
			if users[i].Seconds != users[j].Seconds {
				return users[i].Seconds > users[j].Seconds
			}
			return users[i].Username < users[j].Username
		})
		var b strings.Builder
		b.WriteString(fmt.Sprintf("  User activity %s to %s\n", shortDate(report.StartTime), shortDate(report.EndTime)))
		for _, u := range users {
			b.WriteString(fmt.Sprintf("  %-24s %s\n", u.Username, activeTime(u.Seconds)))
		}
		return detailLoadedMsg{detail: b.String()}
	}
}

func shortDate(stamp string) string {
	if len(stamp) >= 10 {
		return stamp[:10]
	}
	return stamp
}

func activeTime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
