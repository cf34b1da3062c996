package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// deleteConcurrency bounds the per-id deletes issued by DeleteReports.
const deleteConcurrency = 4

// SaveReport inserts a report and returns its id.
func (db *DB) SaveReport(ctx context.Context, topic, content string, sources []Source) (int64, error) {
	if sources == nil {
		sources = []Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sources: %w", err)
	}

	var id int64
	err = db.pool.QueryRow(ctx,
		`INSERT INTO reports (topic, content, sources)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		topic, content, sourcesJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return id, nil
}

// ListReports returns all reports, most recent first.
func (db *DB) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, topic, content, COALESCE(sources, '[]'::jsonb), created_at
		 FROM reports ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		var sourcesJSON []byte
		if err := rows.Scan(&r.ID, &r.Topic, &r.Content, &sourcesJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources for report %d: %w", r.ID, err)
		}
		if r.Sources == nil {
			r.Sources = []Source{}
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

// DeleteReports deletes each id on its own statement. A failing id does not
// stop the others; the failures are joined into the returned error.
func (db *DB) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	deleted := make([]int64, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			tag, err := db.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
			if err != nil {
				errs[i] = fmt.Errorf("failed to delete report %d: %w", id, err)
				return nil
			}
			deleted[i] = tag.RowsAffected()
			return nil
		})
	}
	_ = g.Wait()

	var total int64
	for _, n := range deleted {
		total += n
	}
	return total, errors.Join(errs...)
}
