package coderd

import (
	"context"
	"net/url"
	"time"
)

type workspacesResponse struct {
	Workspaces []Workspace `json:"workspaces"`
	Count      int         `json:"count"`
}

// Workspaces lists all workspaces visible to the token. q is the Coder search
// filter ("" for all, "deleted:true" to include deleted ones).
func (c *Client) Workspaces(ctx context.Context, q string) ([]Workspace, error) {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	var resp workspacesResponse
	if err := c.getJSON(ctx, "/api/v2/workspaces", v, &resp); err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// Workspace fetches one workspace by id.
func (c *Client) Workspace(ctx context.Context, id string) (Workspace, error) {
	var ws Workspace
	err := c.getJSON(ctx, "/api/v2/workspaces/"+url.PathEscape(id), nil, &ws)
	return ws, err
}

// UpdateWorkspaceTTL sets ttl_ms on a workspace. A nil ttlMillis clears the
// TTL (the server treats ttl_ms: null as "no autostop").
func (c *Client) UpdateWorkspaceTTL(ctx context.Context, id string, ttlMillis *int64) error {
	payload := map[string]*int64{"ttl_ms": ttlMillis}
	return c.putJSON(ctx, "/api/v2/workspaces/"+url.PathEscape(id)+"/ttl", payload, nil)
}

type usersResponse struct {
	Users []User `json:"users"`
	Count int    `json:"count"`
}

// Users lists all users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp usersResponse
	if err := c.getJSON(ctx, "/api/v2/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// UserStatusCounts fetches the insights user-status series.
func (c *Client) UserStatusCounts(ctx context.Context) (UserStatusCounts, error) {
	var resp UserStatusCounts
	err := c.getJSON(ctx, "/api/v2/insights/user-status-counts", nil, &resp)
	return resp, err
}

type userActivityResponse struct {
	Report UserActivityReport `json:"report"`
}

// UserActivity fetches the insights activity report for [start, end]. The
// server wants RFC 3339 UTC timestamps and rejects windows that do not fall
// on day boundaries, so callers pass midnight-aligned bounds.
func (c *Client) UserActivity(ctx context.Context, start, end time.Time) (UserActivityReport, error) {
	v := url.Values{}
	v.Set("start_time", start.UTC().Format("2006-01-02T15:04:05Z"))
	v.Set("end_time", end.UTC().Format("2006-01-02T15:04:05Z"))
	var resp userActivityResponse
	err := c.getJSON(ctx, "/api/v2/insights/user-activity", v, &resp)
	return resp.Report, err
}
