package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

func buildEvent(user, workspace, action, ts string) coderd.AuditLog {
	fields := coderd.AdditionalFields{
		"workspace_name": json.RawMessage(fmt.Sprintf("%q", workspace)),
	}
	return coderd.AuditLog{
		ID:               user + "/" + workspace + "/" + action + "/" + ts,
		Time:             ts,
		Action:           action,
		ResourceType:     "workspace_build",
		ResourceTarget:   "build",
		IP:               "10.0.0.7",
		User:             &coderd.AuditUser{Username: user},
		AdditionalFields: fields,
	}
}

func TestReconstructPairsStartAndStop(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
		buildEvent("alice", "dev1", "stop", "2024-03-01T11:30:00Z"),
	})

	require.Len(t, report.Sessions, 1)
	s := report.Sessions[0]
	assert.Equal(t, Key{Username: "alice", Workspace: "dev1"}, s.Key)
	assert.False(t, s.Open())
	assert.Equal(t, "(02:30)", s.Duration())
}

func TestReconstructReportsOpenSession(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("bob", "api", "start", "2024-03-01T08:00:00Z"),
	})

	require.Len(t, report.Sessions, 1)
	assert.True(t, report.Sessions[0].Open())
	assert.Equal(t, "still open", report.Sessions[0].Duration())
}

func TestReconstructLastStartWins(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
		buildEvent("alice", "dev1", "start", "2024-03-01T10:00:00Z"),
		buildEvent("alice", "dev1", "stop", "2024-03-01T12:00:00Z"),
	})

	// The restart replaces the first start; only one session comes out.
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, "2024-03-01T10:00:00Z", report.Sessions[0].StartTime)
	assert.Equal(t, "(02:00)", report.Sessions[0].Duration())
}

func TestReconstructIgnoresOrphanStop(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "stop", "2024-03-01T09:00:00Z"),
	})
	assert.Empty(t, report.Sessions)
}

func TestReconstructDeleteClosesSession(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
		buildEvent("alice", "dev1", "delete", "2024-03-01T10:15:00Z"),
	})

	require.Len(t, report.Sessions, 1)
	assert.False(t, report.Sessions[0].Open())
	assert.Equal(t, "(01:15)", report.Sessions[0].Duration())
}

func TestReconstructSkipsOtherResourceTypes(t *testing.T) {
	template := buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z")
	template.ResourceType = "template"
	report := Reconstruct([]coderd.AuditLog{template})
	assert.Empty(t, report.Sessions)
}

func TestReconstructHandlesUnsortedInput(t *testing.T) {
	// Events arrive in reverse delivery order; pairing must still hold.
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "stop", "2024-03-01T11:30:00Z"),
		buildEvent("bob", "api", "start", "2024-03-02T08:00:00Z"),
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
	})

	require.Len(t, report.Sessions, 2)
	// Most recent start first.
	assert.Equal(t, "bob", report.Sessions[0].Key.Username)
	assert.Equal(t, "alice", report.Sessions[1].Key.Username)
	assert.Equal(t, "(02:30)", report.Sessions[1].Duration())
}

func TestReconstructKeysAreIndependent(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
		buildEvent("alice", "dev2", "start", "2024-03-01T09:05:00Z"),
		buildEvent("bob", "dev1", "start", "2024-03-01T09:10:00Z"),
		buildEvent("alice", "dev1", "stop", "2024-03-01T10:00:00Z"),
	})

	require.Len(t, report.Sessions, 3)
	open := 0
	for _, s := range report.Sessions {
		if s.Open() {
			open++
		}
	}
	assert.Equal(t, 2, open)
}

func TestDurationUnknownOnBadTimestamp(t *testing.T) {
	s := Session{StartTime: "not-a-time", EndTime: "2024-03-01T10:00:00Z"}
	assert.Equal(t, "unknown", s.Duration())
}

func TestDurationClampsNegativeInterval(t *testing.T) {
	s := Session{StartTime: "2024-03-01T10:00:00Z", EndTime: "2024-03-01T09:00:00Z"}
	assert.Equal(t, "(00:00)", s.Duration())
}

func TestDisplayTruncation(t *testing.T) {
	s := Session{Key: Key{
		Username:  "extraordinarily-long-username",
		Workspace: "a-workspace-name-well-beyond-the-column",
	}}
	assert.Len(t, s.DisplayUsername(), MaxUsernameWidth)
	assert.Len(t, s.DisplayWorkspace(), MaxWorkspaceWidth)
	assert.Equal(t, "extraord", s.DisplayUsername())

	// Short values pass through untouched.
	assert.Equal(t, "ab", Truncate("ab", 8))
}

func TestTruncateCountsRunes(t *testing.T) {
	// Caps count characters, so multi-byte names stay valid UTF-8.
	assert.Equal(t, "göran-sö", Truncate("göran-söderström", 8))
	assert.Equal(t, "日本語の名前です", Truncate("日本語の名前ですよ", 8))
	assert.True(t, utf8.ValidString(Truncate("émile-zola", 8)))
}

func TestFilterUserAndLimit(t *testing.T) {
	report := Reconstruct([]coderd.AuditLog{
		buildEvent("alice", "dev1", "start", "2024-03-01T09:00:00Z"),
		buildEvent("bob", "api", "start", "2024-03-01T09:30:00Z"),
		buildEvent("alice", "dev2", "start", "2024-03-01T10:00:00Z"),
	})

	filtered := report.FilterUser("alice")
	require.Len(t, filtered.Sessions, 2)
	for _, s := range filtered.Sessions {
		assert.Equal(t, "alice", s.Key.Username)
	}

	assert.Len(t, filtered.Limit(1), 1)
	assert.Len(t, filtered.Limit(0), 2)
	assert.Len(t, filtered.Limit(99), 2)
}

func TestFormatStamp(t *testing.T) {
	assert.Equal(t, "Fri Mar 01 09:00", FormatStamp("2024-03-01T09:00:00Z"))
	assert.Equal(t, "unknown", FormatStamp("garbage"))
	assert.Equal(t, "unknown", FormatStamp(""))
}
