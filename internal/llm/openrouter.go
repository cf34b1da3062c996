package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

// OpenRouterClient implements Client against an OpenAI-compatible
// /chat/completions endpoint.
type OpenRouterClient struct {
	apiKey string
	config *Config
	http   *http.Client
}

// NewOpenRouterClient creates a client. A nil httpClient gets a default with a
// generous timeout since free-tier models can queue before answering.
func NewOpenRouterClient(config *Config, apiKey string, httpClient *http.Client) (*OpenRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultOpenRouterConfig()
	}
	if config.BaseURL == "" {
		withBase := *config
		withBase.BaseURL = DefaultOpenRouterBaseURL
		config = &withBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenRouterClient{apiKey: apiKey, config: config, http: httpClient}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		Delta        Message `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *chatError `json:"error,omitempty"`
}

func (c *OpenRouterClient) do(ctx context.Context, messages []Message, tier ModelTier, stream bool) (*http.Response, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	payload, err := json.Marshal(chatRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: c.config.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// Generate returns the complete text for the conversation.
func (c *OpenRouterClient) Generate(ctx context.Context, messages []Message, tier ModelTier) (string, error) {
	resp, err := c.do(ctx, messages, tier, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

// Stream yields delta content from the server-sent event stream. A stream
// that ends before [DONE] or a finish_reason fails with io.ErrUnexpectedEOF.
func (c *OpenRouterClient) Stream(ctx context.Context, messages []Message, tier ModelTier) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.do(ctx, messages, tier, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		finished := false
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			// Comments (": OPENROUTER PROCESSING") and blank separators carry no data.
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", fmt.Errorf("decode stream chunk: %w", err))
				return
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("provider error: %s", chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finished = true
			}
			if choice.Delta.Content == "" {
				continue
			}
			if !yield(choice.Delta.Content, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read stream: %w", err))
			return
		}
		if !finished {
			yield("", fmt.Errorf("read stream: %w", io.ErrUnexpectedEOF))
		}
	}
}

// GetModel returns the model name for a tier
func (c *OpenRouterClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no per-client resources.
func (c *OpenRouterClient) Close() error { return nil }
