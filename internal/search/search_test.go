package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns canned results and counts calls.
type fakeProvider struct {
	name    string
	results []Result
	err     error
	calls   atomic.Int32
	delay   time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, _ string) ([]Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestFormat(t *testing.T) {
	out, err := Format([]Result{
		{Title: "A", URL: "https://a.example", Content: "alpha", Score: 0.9},
	})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "A", decoded[0]["title"])
	assert.Equal(t, "https://a.example", decoded[0]["url"])
	assert.Equal(t, "alpha", decoded[0]["content"])
	assert.NotContains(t, decoded[0], "score")
}

func TestFormat_Empty(t *testing.T) {
	out, err := Format(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestCached(t *testing.T) {
	inner := &fakeProvider{name: "fake", results: []Result{{Title: "A", URL: "u"}}}
	c := NewCached(inner, time.Minute)

	first, err := c.Search(context.Background(), "go")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "fake", c.Name())

	_, err = c.Search(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	c.cache.Flush()
	_, _ = c.Search(context.Background(), "go")
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	inner := &fakeProvider{name: "fake", err: errors.New("boom")}
	c := NewCached(inner, time.Minute)

	_, err := c.Search(context.Background(), "go")
	assert.Error(t, err)
	_, err = c.Search(context.Background(), "go")
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestMulti_MergesAndDedupes(t *testing.T) {
	a := &fakeProvider{name: "a", results: []Result{
		{Title: "A1", URL: "https://one.example/"},
		{Title: "A2", URL: "https://two.example"},
	}, delay: 20 * time.Millisecond}
	b := &fakeProvider{name: "b", results: []Result{
		{Title: "B1", URL: "https://one.example"},
		{Title: "B2", URL: "https://three.example"},
	}}

	m := NewMulti(0, a, b)
	results, err := m.Search(context.Background(), "q")
	require.NoError(t, err)

	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	// provider order is preserved regardless of completion order
	assert.Equal(t, []string{"A1", "A2", "B2"}, titles)
	assert.Equal(t, "multi(a,b)", m.Name())
}

func TestMulti_KeepsResultsWithoutURL(t *testing.T) {
	a := &fakeProvider{name: "a", results: []Result{
		{Title: "no link 1"},
		{Title: "linked", URL: "https://one.example"},
	}}
	b := &fakeProvider{name: "b", results: []Result{
		{Title: "no link 2"},
		{Title: "linked again", URL: "https://one.example/"},
	}}

	results, err := NewMulti(0, a, b).Search(context.Background(), "q")
	require.NoError(t, err)

	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"no link 1", "linked", "no link 2"}, titles)
}

func TestMulti_ToleratesPartialFailure(t *testing.T) {
	ok := &fakeProvider{name: "ok", results: []Result{{Title: "x", URL: "u1"}, {Title: "y", URL: "u2"}}}
	bad := &fakeProvider{name: "bad", err: errors.New("down")}

	results, err := NewMulti(1, bad, ok).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMulti_AllFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("a down")}
	b := &fakeProvider{name: "b", err: errors.New("b down")}

	_, err := NewMulti(0, a, b).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")
}

func TestMulti_NoProviders(t *testing.T) {
	_, err := NewMulti(0).Search(context.Background(), "q")
	assert.Error(t, err)
}
