package db

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. Ids start at 1 and grow by
// one per insert.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	reports []Report
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

// SaveReport implements Store.
func (m *MemoryStore) SaveReport(ctx context.Context, topic, content string, sources []Source) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := Report{
		ID:        m.nextID,
		Topic:     topic,
		Content:   content,
		Sources:   append([]Source{}, sources...),
		CreatedAt: m.now(),
	}
	m.nextID++
	m.reports = append(m.reports, r)
	return r.ID, nil
}

// ListReports implements Store.
func (m *MemoryStore) ListReports(ctx context.Context) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Report, len(m.reports))
	for i, r := range m.reports {
		r.Sources = slices.Clone(r.Sources)
		out[len(m.reports)-1-i] = r
	}
	slices.SortStableFunc(out, func(a, b Report) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

// DeleteReports implements Store.
func (m *MemoryStore) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.reports)
	m.reports = slices.DeleteFunc(m.reports, func(r Report) bool {
		return slices.Contains(ids, r.ID)
	})
	return int64(before - len(m.reports)), nil
}
