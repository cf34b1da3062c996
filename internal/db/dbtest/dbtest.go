// Package dbtest builds and inspects report stores for tests of code that
// sits on top of db.Store.
package dbtest

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/jonathan/research-agent/internal/db"
)

// Seeded returns a memory store holding exactly ids, each titled
// "topic <id>". Higher ids are newer.
func Seeded(t testing.TB, ids ...int64) *db.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryStore()

	keep := make(map[int64]bool, len(ids))
	var highest int64
	for _, id := range ids {
		keep[id] = true
		highest = max(highest, id)
	}

	var drop []int64
	for want := int64(1); want <= highest; want++ {
		id, err := store.SaveReport(ctx, fmt.Sprintf("topic %d", want), "content", nil)
		if err != nil {
			t.Fatalf("seed report %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("seed report: got id %d, want %d", id, want)
		}
		if !keep[id] {
			drop = append(drop, id)
		}
	}
	if _, err := store.DeleteReports(ctx, drop); err != nil {
		t.Fatalf("seed: delete filler reports: %v", err)
	}
	return store
}

// IDs lists the ids held by s in ascending order.
func IDs(t testing.TB, s db.Store) []int64 {
	t.Helper()
	reports, err := s.ListReports(context.Background())
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	ids := make([]int64, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	return ids
}
