package coderd

import "encoding/json"

// AuditLog is one immutable record from /api/v2/audit. Only the fields the
// reporting commands consume are mapped; everything else the server sends is
// ignored on decode.
type AuditLog struct {
	ID               string           `json:"id"`
	Time             string           `json:"time"`
	Action           string           `json:"action"`
	ResourceType     string           `json:"resource_type"`
	ResourceTarget   string           `json:"resource_target"`
	IP               string           `json:"ip"`
	User             *AuditUser       `json:"user"`
	AdditionalFields AdditionalFields `json:"additional_fields"`
}

// AuditUser is the actor embedded in an audit log entry. The server omits it
// for system-initiated events.
type AuditUser struct {
	Username   string `json:"username"`
	LastSeenAt string `json:"last_seen_at"`
	Status     string `json:"status"`
}

// AdditionalFields is the open string→value map attached to audit entries.
// The server sends it either as an object or as a base64/raw JSON blob
// depending on version, so we keep the raw form and expose typed accessors
// for the two keys the reports need.
type AdditionalFields map[string]json.RawMessage

// Username returns the actor name, or "unknown" when the user is absent or
// has an empty username.
func (l AuditLog) Username() string {
	if l.User == nil || l.User.Username == "" {
		return "unknown"
	}
	return l.User.Username
}

// WorkspaceName resolves the workspace display name for an entry:
// additional_fields.workspace_name, falling back to resource_target.
func (l AuditLog) WorkspaceName() string {
	if name := l.AdditionalFields.str("workspace_name"); name != "" {
		return name
	}
	return l.ResourceTarget
}

// WorkspaceOwner returns additional_fields.workspace_owner, or "".
func (l AuditLog) WorkspaceOwner() string {
	return l.AdditionalFields.str("workspace_owner")
}

// WorkspaceID returns additional_fields.workspace_id, or "".
func (l AuditLog) WorkspaceID() string {
	return l.AdditionalFields.str("workspace_id")
}

func (f AdditionalFields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Workspace is the subset of /api/v2/workspaces(/{id}) the commands consume.
type Workspace struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	OwnerName           string      `json:"owner_name"`
	TemplateName        string      `json:"template_name"`
	TemplateDisplayName string      `json:"template_display_name"`
	TTLMillis           *int64      `json:"ttl_ms"`
	LastUsedAt          string      `json:"last_used_at"`
	LatestBuild         LatestBuild `json:"latest_build"`
}

// LatestBuild carries the live state of a workspace's most recent build.
type LatestBuild struct {
	Status      string  `json:"status"`
	Deadline    string  `json:"deadline"`
	MaxDeadline string  `json:"max_deadline"`
	DailyCost   float64 `json:"daily_cost"`
}

// User is one entry from /api/v2/users.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	LastSeenAt string `json:"last_seen_at"`
	Status     string `json:"status"`
}

// StatusCount is one sample in an insights user-status series.
type StatusCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// UserStatusCounts maps status name → time series, as returned by
// /api/v2/insights/user-status-counts.
type UserStatusCounts map[string][]StatusCount

// UserActivity is one row of an insights user-activity report.
type UserActivity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Seconds  int64  `json:"seconds"`
}

// UserActivityReport is the payload of /api/v2/insights/user-activity.
type UserActivityReport struct {
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Users     []UserActivity `json:"users"`
}

// Latest returns the most recent count per status.
func (c UserStatusCounts) Latest() map[string]int {
	out := make(map[string]int, len(c))
	for status, series := range c {
		if len(series) == 0 {
			continue
		}
		out[status] = series[len(series)-1].Count
	}
	return out
}
