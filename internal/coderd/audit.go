package coderd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultPageSize is the audit page size used when the caller passes 0.
const DefaultPageSize = 100

// AuditQuery selects a slice of the audit stream. Zero values are omitted
// from the request.
type AuditQuery struct {
	// AfterTime / BeforeTime bound the window (ISO-8601 UTC, inclusive).
	AfterTime  string
	BeforeTime string
	// AfterID is the pagination cursor: the id of the last entry of the
	// previous page. Empty means start of range.
	AfterID string
	// Q is the Coder search filter, e.g. "resource_type:workspace_build".
	Q string
	// Limit is the page size. 0 asks the server for its maximum.
	Limit int
}

type auditLogsResponse struct {
	AuditLogs []AuditLog `json:"audit_logs"`
	Count     int        `json:"count"`
}

// AuditLogs fetches a single page of audit logs.
func (c *Client) AuditLogs(ctx context.Context, q AuditQuery) ([]AuditLog, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.AfterTime != "" {
		v.Set("after_time", q.AfterTime)
	}
	if q.BeforeTime != "" {
		v.Set("before_time", q.BeforeTime)
	}
	if q.AfterID != "" {
		v.Set("after_id", q.AfterID)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	var resp auditLogsResponse
	if err := c.getJSON(ctx, "/api/v2/audit", v, &resp); err != nil {
		return nil, err
	}
	return resp.AuditLogs, nil
}

// FetchResult is the outcome of a full pagination walk. Logs are in
// server-delivery order, not re-sorted. When Truncated is set the server
// returned the same cursor on two consecutive pages and the walk was
// abandoned; Logs then holds everything collected before the repeat.
type FetchResult struct {
	Logs      []AuditLog
	Pages     int
	Truncated bool
	// Cursor is the repeated cursor value when Truncated, for diagnostics.
	Cursor string
}

// FetchAuditLogs walks the audit endpoint to exhaustion over the window in q,
// following the after_id cursor. Termination:
//   - an empty page is the normal end-of-range signal;
//   - a short page (< page size) also ends the walk, saving one round trip;
//   - an identical cursor on two consecutive requests is a server-side
//     pagination fault; the walk stops and the partial result is returned
//     with Truncated set rather than looping forever.
//
// Any transport error or non-2xx response aborts the whole fetch.
func (c *Client) FetchAuditLogs(ctx context.Context, q AuditQuery) (FetchResult, error) {
	pageSize := q.Limit
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var res FetchResult
	cursor := ""
	previousCursor := "\x00" // sentinel: never equal to a real cursor or ""
	for {
		if cursor == previousCursor && cursor != "" {
			res.Truncated = true
			res.Cursor = cursor
			return res, nil
		}
		previousCursor = cursor

		page := q
		page.Limit = pageSize
		page.AfterID = cursor
		logs, err := c.AuditLogs(ctx, page)
		if err != nil {
			return res, fmt.Errorf("audit page %d: %w", res.Pages+1, err)
		}
		res.Pages++
		if len(logs) == 0 {
			return res, nil
		}
		res.Logs = append(res.Logs, logs...)
		if len(logs) < pageSize {
			// Short page: no more data in range.
			return res, nil
		}
		cursor = logs[len(logs)-1].ID
	}
}
