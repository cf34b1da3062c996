package search

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Google queries a Programmable Search Engine.
type Google struct {
	svc        *customsearch.Service
	cx         string
	maxResults int
}

// NewGoogle creates a Google search provider. Extra client options (endpoint,
// HTTP client) are passed through to the customsearch service.
func NewGoogle(ctx context.Context, apiKey, cx string, maxResults int, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	// The API caps num at 10.
	if maxResults > 10 {
		maxResults = 10
	}

	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx, maxResults: maxResults}, nil
}

// Name implements Provider.
func (g *Google) Name() string { return "google" }

// Search runs the query and maps items to results in rank order.
func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(g.maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for i, item := range resp.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Content: item.Snippet,
			Score:   1 / float64(i+1),
		})
	}
	return results, nil
}
