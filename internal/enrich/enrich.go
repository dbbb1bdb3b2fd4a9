// Package enrich annotates session and activity records with the live state
// of their workspace: current TTL, autostop deadline, and build status.
// Lookups are read-only and best-effort; a failed or missing lookup degrades
// to an unknown annotation and never fails the report.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

// Details is the live state of one workspace.
type Details struct {
	// TTL is the configured time-to-live; zero when unset.
	TTL time.Duration
	// Deadline is latest_build.deadline, raw ISO-8601 ("" when unset).
	Deadline string
	// Status is latest_build.status ("" when unknown).
	Status string
	// Found is false when the workspace no longer exists (or the lookup
	// failed); the other fields are then zero.
	Found bool
}

// WorkspaceGetter is the one client method the enricher needs.
type WorkspaceGetter interface {
	Workspace(ctx context.Context, id string) (coderd.Workspace, error)
}

// Enricher performs bounded-parallel workspace lookups.
type Enricher struct {
	client  WorkspaceGetter
	workers int
}

// New builds an Enricher. workers <= 0 falls back to 4.
func New(client WorkspaceGetter, workers int) *Enricher {
	if workers <= 0 {
		workers = 4
	}
	return &Enricher{client: client, workers: workers}
}

// Lookup fetches the live details of one workspace. Not-found and any other
// error both degrade to Details{Found: false}; the error is only returned
// for context cancellation so callers can abort a larger run.
func (e *Enricher) Lookup(ctx context.Context, workspaceID string) (Details, error) {
	if workspaceID == "" {
		return Details{}, nil
	}
	ws, err := e.client.Workspace(ctx, workspaceID)
	if err != nil {
		if ctx.Err() != nil {
			return Details{}, ctx.Err()
		}
		return Details{}, nil
	}
	d := Details{
		Deadline: ws.LatestBuild.Deadline,
		Status:   ws.LatestBuild.Status,
		Found:    true,
	}
	if ws.TTLMillis != nil {
		d.TTL = time.Duration(*ws.TTLMillis) * time.Millisecond
	}
	return d, nil
}

// LookupAll resolves details for every distinct id in workspaceIDs, running
// at most the configured number of lookups in parallel. The result map has
// an entry for every non-empty id; failed lookups map to Details{Found:
// false}. Lookups are independent of each other, so order does not matter.
func (e *Enricher) LookupAll(ctx context.Context, workspaceIDs []string) map[string]Details {
	distinct := make([]string, 0, len(workspaceIDs))
	seen := make(map[string]struct{}, len(workspaceIDs))
	for _, id := range workspaceIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	out := make(map[string]Details, len(distinct))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for _, id := range distinct {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			d, err := e.Lookup(ctx, id)
			if err != nil {
				d = Details{}
			}
			mu.Lock()
			out[id] = d
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}
