// Package pipelinetest provides scripted search and generation providers for
// tests of code built on the pipeline.
package pipelinetest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/search"
)

// Search returns Results or Err and records every query.
type Search struct {
	Results []search.Result
	Err     error

	mu      sync.Mutex
	queries []string
}

// Name implements search.Provider.
func (s *Search) Name() string { return "fake" }

// Search implements search.Provider.
func (s *Search) Search(ctx context.Context, query string) ([]search.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Results, nil
}

// Queries returns the queries received so far.
func (s *Search) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Snippets builds n distinct results.
func Snippets(n int) []search.Result {
	out := make([]search.Result, n)
	for i := range out {
		out[i] = search.Result{
			Title:   "Source " + string(rune('A'+i)),
			URL:     "https://example.com/" + string(rune('a'+i)),
			Content: strings.Repeat("snippet ", i+1),
			Score:   1 / float64(i+1),
		}
	}
	return out
}

// LLM streams Fragments (or returns their concatenation from Generate).
// Err fails the call; ErrAfter > 0 fails a stream after that many fragments.
// Like the real providers, Generate with no fragments returns
// llm.ErrEmptyResponse while Stream simply ends.
type LLM struct {
	Fragments []string
	Err       error
	ErrAfter  int

	mu       sync.Mutex
	messages [][]llm.Message
}

// Generate implements llm.Client.
func (f *LLM) Generate(ctx context.Context, messages []llm.Message, _ llm.ModelTier) (string, error) {
	f.record(messages)
	if f.Err != nil {
		return "", f.Err
	}
	text := strings.Join(f.Fragments, "")
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// Stream implements llm.Client.
func (f *LLM) Stream(ctx context.Context, messages []llm.Message, _ llm.ModelTier) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.record(messages)
		if f.Err != nil && f.ErrAfter == 0 {
			yield("", f.Err)
			return
		}
		for i, frag := range f.Fragments {
			if f.Err != nil && i == f.ErrAfter {
				yield("", f.Err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
		if f.Err != nil {
			yield("", f.Err)
		}
	}
}

// GetModel implements llm.Client.
func (f *LLM) GetModel(llm.ModelTier) string { return "fake-model" }

// Close implements llm.Client.
func (f *LLM) Close() error { return nil }

// Calls returns the message lists received so far.
func (f *LLM) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.messages...)
}

func (f *LLM) record(messages []llm.Message) {
	f.mu.Lock()
	f.messages = append(f.messages, messages)
	f.mu.Unlock()
}

// Report splits a report of n characters into fragments of at most size.
func Report(n, size int) []string {
	text := strings.Repeat("x", n)
	var out []string
	for len(text) > 0 {
		k := min(size, len(text))
		out = append(out, text[:k])
		text = text[k:]
	}
	return out
}
