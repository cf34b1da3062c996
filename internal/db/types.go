package db

import (
	"context"
	"time"
)

// Source is a structured reference to material a report was built from.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Report is a persisted research report.
type Report struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists reports. DB and MemoryStore implement it.
type Store interface {
	// SaveReport inserts a report and returns its assigned id.
	SaveReport(ctx context.Context, topic, content string, sources []Source) (int64, error)
	// ListReports returns every report, most recent first.
	ListReports(ctx context.Context) ([]Report, error)
	// DeleteReports removes the reports with the given ids. Ids that do not
	// exist are ignored. It returns how many reports were removed.
	DeleteReports(ctx context.Context, ids []int64) (int64, error)
}
