package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey     string
	maxResults int
	endpoint   string
	client     *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, maxResults int) (*Tavily, error) {
	return NewTavilyWithClient(apiKey, maxResults, &http.Client{Timeout: 15 * time.Second})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied HTTP client.
func NewTavilyWithClient(apiKey string, maxResults int, client *http.Client) (*Tavily, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("tavily: %w", ErrMissingAPIKey)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Tavily{apiKey: apiKey, maxResults: maxResults, endpoint: tavilyEndpoint, client: client}, nil
}

// Name implements Provider.
func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":     t.apiKey,
		"query":       query,
		"max_results": t.maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily API error: %s", resp.Status)
	}

	var response struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return limit(results, t.maxResults), nil
}
