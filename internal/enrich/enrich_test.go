package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
)

type fakeGetter struct {
	fn func(ctx context.Context, id string) (coderd.Workspace, error)
}

func (f *fakeGetter) Workspace(ctx context.Context, id string) (coderd.Workspace, error) {
	return f.fn(ctx, id)
}

func TestLookupFound(t *testing.T) {
	ttl := int64(8 * time.Hour / time.Millisecond)
	g := &fakeGetter{fn: func(_ context.Context, id string) (coderd.Workspace, error) {
		return coderd.Workspace{
			ID:        id,
			TTLMillis: &ttl,
			LatestBuild: coderd.LatestBuild{
				Status:   "running",
				Deadline: "2024-03-01T18:00:00Z",
			},
		}, nil
	}}

	d, err := New(g, 1).Lookup(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.True(t, d.Found)
	assert.Equal(t, 8*time.Hour, d.TTL)
	assert.Equal(t, "running", d.Status)
	assert.Equal(t, "2024-03-01T18:00:00Z", d.Deadline)
}

func TestLookupDegradesOnError(t *testing.T) {
	g := &fakeGetter{fn: func(_ context.Context, _ string) (coderd.Workspace, error) {
		return coderd.Workspace{}, &coderd.APIError{StatusCode: 404}
	}}

	d, err := New(g, 1).Lookup(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, d.Found)
}

func TestLookupEmptyID(t *testing.T) {
	g := &fakeGetter{fn: func(_ context.Context, _ string) (coderd.Workspace, error) {
		t.Fatal("no request expected for an empty id")
		return coderd.Workspace{}, nil
	}}

	d, err := New(g, 1).Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, d.Found)
}

func TestLookupPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &fakeGetter{fn: func(ctx context.Context, _ string) (coderd.Workspace, error) {
		cancel()
		return coderd.Workspace{}, ctx.Err()
	}}

	_, err := New(g, 1).Lookup(ctx, "ws-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupAllDeduplicates(t *testing.T) {
	var calls atomic.Int32
	g := &fakeGetter{fn: func(_ context.Context, id string) (coderd.Workspace, error) {
		calls.Add(1)
		return coderd.Workspace{ID: id, LatestBuild: coderd.LatestBuild{Status: "running"}}, nil
	}}

	out := New(g, 2).LookupAll(context.Background(), []string{"a", "b", "a", "", "b", "c"})
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, out, 3)
	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, out[id].Found, id)
	}
}

func TestLookupAllBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	g := &fakeGetter{fn: func(_ context.Context, id string) (coderd.Workspace, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return coderd.Workspace{ID: id}, nil
	}}

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	out := New(g, 2).LookupAll(context.Background(), ids)
	assert.Len(t, out, len(ids))
	assert.LessOrEqual(t, peak, 2)
}

func TestLookupAllMixedResults(t *testing.T) {
	g := &fakeGetter{fn: func(_ context.Context, id string) (coderd.Workspace, error) {
		if id == "gone" {
			return coderd.Workspace{}, &coderd.APIError{StatusCode: 404}
		}
		return coderd.Workspace{ID: id, LatestBuild: coderd.LatestBuild{Status: "stopped"}}, nil
	}}

	out := New(g, 4).LookupAll(context.Background(), []string{"live", "gone"})
	require.Len(t, out, 2)
	assert.True(t, out["live"].Found)
	assert.False(t, out["gone"].Found)
}
