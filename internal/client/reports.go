package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/schemas"
)

// ListReports fetches the server's saved reports, most recent first. Each
// entry is checked against the report schema before it is decoded.
func (c *Consumer) ListReports(ctx context.Context) ([]db.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/reports", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list reports: server returned %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	reports := make([]db.Report, 0, len(raw))
	for i, doc := range raw {
		if err := schemas.Validate(schemas.Report, doc); err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
		var r db.Report
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("decode report %d: %w", i, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// DeleteReports asks the server to delete ids.
func (c *Consumer) DeleteReports(ctx context.Context, ids []int64) error {
	body, err := json.Marshal(map[string][]int64{"ids": ids})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/reports", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete reports: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete reports: server returned %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	return nil
}
