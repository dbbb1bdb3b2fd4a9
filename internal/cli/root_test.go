package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

// runCommand executes the root command against a fake Coder API and returns
// stdout and stderr.
func runCommand(t *testing.T, handler http.HandlerFunc, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var out, errOut bytes.Buffer
	root := NewRootCommandWithIO(bytes.NewReader(nil), &out, &errOut)
	root.SetArgs(append(args, "--url", srv.URL, "--token", "test-token"))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func auditResponse(logs ...coderd.AuditLog) []byte {
	b, _ := json.Marshal(map[string]any{"audit_logs": logs, "count": len(logs)})
	return b
}

func buildLog(user, workspace, action string, ts time.Time) coderd.AuditLog {
	return coderd.AuditLog{
		ID:             fmt.Sprintf("%s-%s-%s-%d", user, workspace, action, ts.Unix()),
		Time:           ts.UTC().Format(time.RFC3339),
		Action:         action,
		ResourceType:   "workspace_build",
		ResourceTarget: workspace,
		IP:             "10.0.0.7",
		User:           &coderd.AuditUser{Username: user},
	}
}

func TestLastCommand(t *testing.T) {
	now := time.Now().UTC()
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/audit", r.URL.Path)
		w.Write(auditResponse(
			buildLog("alice", "dev1", "start", now.Add(-3*time.Hour)),
			buildLog("alice", "dev1", "stop", now.Add(-30*time.Minute)),
			buildLog("bob", "api", "start", now.Add(-1*time.Hour)),
		))
	}

	out, _, err := runCommand(t, handler, "last")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "(02:30)")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "still open")
	assert.Contains(t, out, "audit logs begin")
}

func TestLastCommandFiltersUser(t *testing.T) {
	now := time.Now().UTC()
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write(auditResponse(
			buildLog("alice", "dev1", "start", now.Add(-2*time.Hour)),
			buildLog("bob", "api", "start", now.Add(-1*time.Hour)),
		))
	}

	out, _, err := runCommand(t, handler, "last", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "bob")
}

func TestLastCommandNoSessions(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write(auditResponse())
	}

	out, _, err := runCommand(t, handler, "last")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestLastCommandWarnsOnCursorCycle(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	// A page size of 2 makes the fake server's fixed response a full page, so
	// the cursor never advances and the walk is cut short.
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".coder-audit"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(home, ".coder-audit", "config.yaml"),
		[]byte("audit:\n  pageSize: 2\n"), 0o600))

	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(auditResponse(
			buildLog("alice", "dev1", "start", now.Add(-2*time.Hour)),
			buildLog("alice", "dev2", "start", now.Add(-1*time.Hour)),
		))
	}))
	t.Cleanup(srv.Close)

	var out, errOut bytes.Buffer
	root := NewRootCommandWithIO(bytes.NewReader(nil), &out, &errOut)
	root.SetArgs([]string{"last", "--url", srv.URL, "--token", "test-token"})
	require.NoError(t, root.Execute())
	assert.Contains(t, errOut.String(), "repeated cursor")
	assert.Contains(t, out.String(), "alice")
}

func TestCountCommand(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("after_time"))
		assert.Equal(t, "2024-01-31T23:59:59Z", q.Get("before_time"))
		base := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
		w.Write(auditResponse(
			buildLog("alice", "dev1", "login", base),
			buildLog("alice", "dev1", "login", base.Add(time.Hour)),
			buildLog("bob", "api", "start", base.Add(2*time.Hour)),
		))
	}

	out, _, err := runCommand(t, handler, "count", "--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "Action Summary")
	assert.Contains(t, out, "Login Summary")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Total connection count between 2024-01-01 and 2024-01-31")
}

func TestCountCommandRequiresDates(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) { w.Write(auditResponse()) }
	_, _, err := runCommand(t, handler, "count")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	ttl := int64(8 * time.Hour / time.Millisecond)
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/workspaces", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "status:running")
		json.NewEncoder(w).Encode(map[string]any{
			"workspaces": []coderd.Workspace{{
				ID:        "ws-1",
				Name:      "dev1",
				OwnerName: "alice",
				TTLMillis: &ttl,
				LatestBuild: coderd.LatestBuild{
					Status: "running",
				},
			}},
			"count": 1,
		})
	}

	out, _, err := runCommand(t, handler, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "dev1")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "8h")
}

func TestUsersCommand(t *testing.T) {
	now := time.Now().UTC()
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/users", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"users": []coderd.User{
				{ID: "u1", Username: "alice", Status: "active", LastSeenAt: now.Add(-90 * 24 * time.Hour).Format(time.RFC3339)},
				{ID: "u2", Username: "bob", Status: "active", LastSeenAt: now.Add(-2 * time.Hour).Format(time.RFC3339)},
				{ID: "u3", Username: "mallory", Status: "suspended", LastSeenAt: now.Add(-1 * time.Hour).Format(time.RFC3339)},
			},
			"count": 3,
		})
	}

	out, _, err := runCommand(t, handler, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "LAST SEEN")
	assert.Contains(t, out, "3 user(s)")

	// Most recently seen first.
	assert.Less(t, bytes.Index([]byte(out), []byte("mallory")), bytes.Index([]byte(out), []byte("bob")))
	assert.Less(t, bytes.Index([]byte(out), []byte("bob")), bytes.Index([]byte(out), []byte("alice")))
}

func TestUsersCommandFiltersStatus(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"users": []coderd.User{
				{ID: "u1", Username: "alice", Status: "active", LastSeenAt: now},
				{ID: "u3", Username: "mallory", Status: "suspended", LastSeenAt: now},
			},
			"count": 2,
		})
	}

	out, _, err := runCommand(t, handler, "users", "--status", "suspended")
	require.NoError(t, err)
	assert.Contains(t, out, "mallory")
	assert.NotContains(t, out, "alice")
}

func TestSinceLabel(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "N/A", sinceLabel(now, ""))
	assert.Equal(t, "30m ago", sinceLabel(now, "2024-03-10T11:30:00Z"))
	assert.Equal(t, "5h ago", sinceLabel(now, "2024-03-10T06:30:00Z"))
	assert.Equal(t, "2d 3h ago", sinceLabel(now, "2024-03-08T09:00:00Z"))
}

func TestTTLSetCommand(t *testing.T) {
	var gotBody string
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v2/workspaces/ws-1/ttl", r.URL.Path)
		b := make([]byte, r.ContentLength)
		r.Body.Read(b)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}

	out, _, err := runCommand(t, handler, "ttl", "set", "ws-1", "8h")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ttl_ms":28800000}`, gotBody)
	assert.Contains(t, out, "Set TTL")
}

func TestTTLSetRejectsBadDuration(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}
	_, _, err := runCommand(t, handler, "ttl", "set", "ws-1", "eight-hours")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}
	out, _, err := runCommand(t, handler, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "coder-audit")
}

func TestDayBounds(t *testing.T) {
	start, err := dayStart("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", start)

	end, err := dayEnd("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T23:59:59Z", end)

	_, err = dayStart("01/01/2024")
	assert.Error(t, err)
}

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "N/A", formatTTL(0))
	assert.Equal(t, "30s", formatTTL(30*time.Second))
	assert.Equal(t, "45m", formatTTL(45*time.Minute))
	assert.Equal(t, "8h", formatTTL(8*time.Hour))
	assert.Equal(t, "3d", formatTTL(72*time.Hour))
}

func TestFormatDeadline(t *testing.T) {
	assert.Equal(t, "N/A", formatDeadline(""))
	assert.Equal(t, "N/A", formatDeadline("0001-01-01T00:00:00Z"))
	assert.Equal(t, "expired", formatDeadline("2020-01-01T00:00:00Z"))
	future := time.Now().UTC().Add(3 * time.Hour).Format(time.RFC3339)
	assert.Contains(t, formatDeadline(future), "h")
}
