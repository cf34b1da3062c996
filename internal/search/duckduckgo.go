package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes DuckDuckGo's lite HTML interface. It needs no API key.
type DuckDuckGo struct {
	client     *http.Client
	endpoint   string
	maxResults int
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	return NewDuckDuckGoWithClient(maxResults, &http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
func NewDuckDuckGoWithClient(maxResults int, client *http.Client) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &DuckDuckGo{client: client, endpoint: duckDuckGoEndpoint, maxResults: maxResults}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search posts the query form and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo html: %w", err)
	}

	return limit(parseLiteResults(doc), d.maxResults), nil
}

// parseLiteResults walks the lite page: every result is a row holding an
// a.result-link, followed by a row whose td.result-snippet describes it.
func parseLiteResults(doc *goquery.Document) []Result {
	var results []Result
	snippets := doc.Find("td.result-snippet")

	doc.Find("a.result-link").Each(func(i int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || href == "" || title == "" {
			return
		}

		snippet := ""
		if i < snippets.Length() {
			snippet = strings.TrimSpace(snippets.Eq(i).Text())
		}

		results = append(results, Result{
			Title:   title,
			URL:     unwrapRedirect(href),
			Content: snippet,
			Score:   1 / float64(i+1),
		})
	})
	return results
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= click-tracking links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
