// Package search provides web search providers used by the research stage.
//
// Available providers:
//
//   - Tavily: requires an API key, the default provider
//   - Google: Programmable Search Engine via google.golang.org/api/customsearch
//   - DuckDuckGo: no API key, parses the lite HTML page
//
// Cached wraps any provider with a TTL cache and Multi fans a query out to
// several providers and merges their results.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxResults is the number of results requested when none is configured.
const DefaultMaxResults = 5

// ErrMissingAPIKey is returned by providers constructed without credentials.
var ErrMissingAPIKey = errors.New("search: API key is missing")

// Result is a single ranked snippet returned by a Provider.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"-"`
}

// Provider executes a query and returns ranked results, best first.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// Format serializes results into the single text entry the research stage
// appends to the pipeline state.
func Format(results []Result) (string, error) {
	if results == nil {
		results = []Result{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to format search results: %w", err)
	}
	return string(data), nil
}

func limit(results []Result, n int) []Result {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
