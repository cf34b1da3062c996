package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Multi queries several providers concurrently and merges their results.
// A provider failure is tolerated as long as at least one provider succeeds.
type Multi struct {
	providers  []Provider
	maxResults int
}

// NewMulti creates a fan-out provider. Results are merged in provider order,
// deduplicated by URL and truncated to maxResults (0 keeps everything).
func NewMulti(maxResults int, providers ...Provider) *Multi {
	return &Multi{providers: providers, maxResults: maxResults}
}

// Name implements Provider.
func (m *Multi) Name() string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Search implements Provider.
func (m *Multi) Search(ctx context.Context, query string) ([]Result, error) {
	if len(m.providers) == 0 {
		return nil, errors.New("search: no providers configured")
	}

	perProvider := make([][]Result, len(m.providers))
	errs := make([]error, len(m.providers))

	var g errgroup.Group
	for i, p := range m.providers {
		g.Go(func() error {
			results, err := p.Search(ctx, query)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
				return nil
			}
			perProvider[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var merged []Result
	seen := make(map[string]bool)
	succeeded := 0
	for i, results := range perProvider {
		if errs[i] != nil {
			continue
		}
		succeeded++
		for _, r := range results {
			// Results without a URL cannot be matched and are always kept.
			if key := strings.TrimRight(r.URL, "/"); key != "" {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			merged = append(merged, r)
		}
	}

	if succeeded == 0 {
		return nil, errors.Join(errs...)
	}
	return limit(merged, m.maxResults), nil
}
