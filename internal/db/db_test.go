package db

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/research-agent/internal/schemas"
)

var _ Store = (*DB)(nil)
var _ Store = (*MemoryStore)(nil)

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestMemoryStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	id1, err := store.SaveReport(ctx, "first", "one", nil)
	require.NoError(t, err)
	id2, err := store.SaveReport(ctx, "second", "two", []Source{{URL: "https://a.example"}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	reports, err := store.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "second", reports[0].Topic)
	assert.Equal(t, "first", reports[1].Topic)
	assert.NotNil(t, reports[1].Sources)
	assert.Empty(t, reports[1].Sources)
}

func TestMemoryStore_ListIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, topic := range []string{"a", "b", "c"} {
		_, err := store.SaveReport(ctx, topic, "x", nil)
		require.NoError(t, err)
	}

	first, err := store.ListReports(ctx)
	require.NoError(t, err)
	second, err := store.ListReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMemoryStore_SameTimestampOrdersByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return at }

	for _, topic := range []string{"a", "b", "c"} {
		_, err := store.SaveReport(ctx, topic, "x", nil)
		require.NoError(t, err)
	}

	reports, err := store.ListReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, []int64{reports[0].ID, reports[1].ID, reports[2].ID})
}

func TestMemoryStore_DeleteIsSetOperation(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int64
		want    []int64
		deleted int64
	}{
		{"two of three", []int64{3, 7}, []int64{5}, 2},
		{"order does not matter", []int64{7, 3}, []int64{5}, 2},
		{"missing ids ignored", []int64{3, 42}, []int64{5, 7}, 1},
		{"duplicates", []int64{5, 5}, []int64{3, 7}, 1},
		{"empty set", nil, []int64{3, 5, 7}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			for range 7 {
				_, err := store.SaveReport(ctx, "t", "c", nil)
				require.NoError(t, err)
			}
			_, err := store.DeleteReports(ctx, []int64{1, 2, 4, 6})
			require.NoError(t, err)

			n, err := store.DeleteReports(ctx, tt.ids)
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, n)
			assert.Equal(t, tt.want, storedIDs(t, store))
		})
	}
}

func storedIDs(t *testing.T, store *MemoryStore) []int64 {
	t.Helper()
	reports, err := store.ListReports(context.Background())
	require.NoError(t, err)

	ids := make([]int64, len(reports))
	for i, r := range reports {
		ids[len(reports)-1-i] = r.ID
	}
	return ids
}

func TestMemoryStore_IDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for range 3 {
		_, err := store.SaveReport(ctx, "t", "c", nil)
		require.NoError(t, err)
	}
	_, err := store.DeleteReports(ctx, []int64{3})
	require.NoError(t, err)

	id, err := store.SaveReport(ctx, "next", "c", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	_, err := store.SaveReport(ctx, "t", "c", nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.ListReports(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportJSONMatchesSchema(t *testing.T) {
	r := Report{
		ID:        3,
		Topic:     "quantum computing",
		Content:   "# Report",
		Sources:   []Source{},
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NoError(t, schemas.Validate(schemas.Report, data))
	assert.Contains(t, string(data), `"sources":[]`)
	assert.Contains(t, string(data), `"created_at":"2026-03-04T05:06:07Z"`)
}
