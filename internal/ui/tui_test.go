package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	"github.com/bjornrobertsson/coder-audit-simple/internal/session"
)

func loadedModel() model {
	m := initialModel(Options{Refresh: time.Minute})
	updated, _ := m.Update(sessionsLoadedMsg{
		sessions: []session.Session{
			{Key: session.Key{Username: "alice", Workspace: "dev1"}, StartTime: "2024-03-01T09:00:00Z", EndTime: "2024-03-01T11:30:00Z"},
			{Key: session.Key{Username: "bob", Workspace: "api"}, StartTime: "2024-03-01T08:00:00Z"},
		},
		status: "2 session(s)",
	})
	return updated.(model)
}

func TestSessionsLoaded(t *testing.T) {
	m := loadedModel()
	require.Len(t, m.filtered, 2)
	assert.Empty(t, m.err)
	assert.False(t, m.lastRefresh.IsZero())
}

func TestFilterNarrowsSessions(t *testing.T) {
	m := loadedModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m2 := updated.(model)
	require.True(t, m2.filtering)

	for _, r := range "bob" {
		updated, _ = m2.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m2 = updated.(model)
	}
	updated, _ = m2.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m2 = updated.(model)

	assert.False(t, m2.filtering)
	require.Len(t, m2.filtered, 1)
	assert.Equal(t, "bob", m2.filtered[0].Key.Username)
}

func TestSelectionNavigation(t *testing.T) {
	m := loadedModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m2 := updated.(model)
	assert.Equal(t, 1, m2.selected)

	// Does not run off the end.
	updated, _ = m2.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m2 = updated.(model)
	assert.Equal(t, 1, m2.selected)

	updated, _ = m2.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	m2 = updated.(model)
	assert.Equal(t, 0, m2.selected)
}

func TestQuitKey(t *testing.T) {
	m := loadedModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewRendersSessions(t *testing.T) {
	m := loadedModel()
	m.truncated = true
	view := m.View()

	for _, want := range []string{
		"coder-audit dashboard",
		"alice",
		"(02:30)",
		"bob",
		"still open",
		"list may be incomplete",
		"Details",
	} {
		assert.Contains(t, view, want)
	}
}

func TestViewShowsLoadError(t *testing.T) {
	m := initialModel(Options{})
	updated, _ := m.Update(sessionsLoadedMsg{err: assertError("connection refused")})
	m2 := updated.(model)
	assert.Contains(t, m2.View(), "connection refused")
	assert.True(t, strings.Contains(m2.View(), "(no sessions)"))
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestTickSchedulesReload(t *testing.T) {
	m := loadedModel()
	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestUserActivityView(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/insights/user-activity", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("start_time"))
		assert.NotEmpty(t, r.URL.Query().Get("end_time"))
		w.Write([]byte(`{"report":{
			"start_time":"2024-02-01T00:00:00Z",
			"end_time":"2024-03-02T00:00:00Z",
			"users":[
				{"user_id":"u2","username":"bob","seconds":300},
				{"user_id":"u1","username":"alice","seconds":9000}
			]}}`))
	}))
	defer srv.Close()

	client, err := coderd.New(coderd.Config{URL: srv.URL, Token: "tok", Timeout: 5 * time.Second})
	require.NoError(t, err)

	m := loadedModel()
	m.opts.Client = client
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	require.NotNil(t, cmd)

	msg, ok := cmd().(detailLoadedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Contains(t, msg.detail, "2024-02-01 to 2024-03-02")

	// Sorted by time spent, most active first.
	aliceIdx := strings.Index(msg.detail, "alice")
	bobIdx := strings.Index(msg.detail, "bob")
	require.Greater(t, aliceIdx, -1)
	require.Greater(t, bobIdx, -1)
	assert.Less(t, aliceIdx, bobIdx)
	assert.Contains(t, msg.detail, "2h 30m")
	assert.Contains(t, msg.detail, "5m")
}

func TestActiveTime(t *testing.T) {
	assert.Equal(t, "0m", activeTime(30))
	assert.Equal(t, "45m", activeTime(45*60))
	assert.Equal(t, "1h 0m", activeTime(3600))
	assert.Equal(t, "26h 15m", activeTime(26*3600+15*60))
}
