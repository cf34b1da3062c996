// Package client consumes a research stream and tracks the observable state
// a user interface renders: status line, report so far, log lines and
// whether a run is in flight.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/jonathan/research-agent/internal/stream"
)

// Phase is the consumer's position in its run lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseComplete
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseComplete:
		return "complete"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status lines set by the consumer itself rather than by the server.
const (
	StatusIdle     = "Idle"
	StatusStarting = "Starting research..."
	StatusComplete = "Complete"
	StatusErrored  = "Error occurred"
)

var (
	ErrEmptyTopic  = errors.New("client: topic is required")
	ErrRunning     = errors.New("client: a run is already in progress")
	ErrClosedEarly = errors.New("stream closed before a terminal frame")
)

// RunError is returned by Submit when the server ends the run with an error
// frame.
type RunError struct {
	Message string
}

func (e *RunError) Error() string { return "research failed: " + e.Message }

// View is a point-in-time copy of the consumer's observable state.
type View struct {
	Status    string
	Report    string
	Logs      []string
	IsLoading bool
	Phase     Phase
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithObserver registers fn to be called after every applied frame with the
// resulting view. Local failures are reported as an error frame.
func WithObserver(fn func(stream.Frame, View)) Option {
	return func(c *Consumer) { c.observe = fn }
}

// WithStrictFrames validates every received record against the frame schema.
func WithStrictFrames() Option {
	return func(c *Consumer) { c.decodeOpts = append(c.decodeOpts, stream.Strict()) }
}

// Consumer drives one run at a time against a research server.
type Consumer struct {
	baseURL    string
	http       *http.Client
	observe    func(stream.Frame, View)
	decodeOpts []stream.DecoderOption

	mu   sync.Mutex
	view View
}

// NewConsumer creates a consumer for the server at baseURL. A nil httpClient
// gets one without a timeout; runs are bounded by the caller's context.
func NewConsumer(baseURL string, httpClient *http.Client, opts ...Option) *Consumer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Consumer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		view:    View{Status: StatusIdle, Logs: []string{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current view.
func (c *Consumer) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Consumer) snapshotLocked() View {
	v := c.view
	v.Logs = slices.Clone(c.view.Logs)
	return v
}

// Begin enters Running for topic, discarding the previous run's report and
// logs. It fails for an empty topic or while a run is in progress.
func (c *Consumer) Begin(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopic
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.Phase == PhaseRunning {
		return ErrRunning
	}
	c.view = View{
		Status:    StatusStarting,
		Logs:      []string{},
		IsLoading: true,
		Phase:     PhaseRunning,
	}
	return nil
}

// Apply folds one frame into the view. Frames arriving outside Running are
// ignored.
func (c *Consumer) Apply(f stream.Frame) {
	c.mu.Lock()
	if c.view.Phase != PhaseRunning {
		c.mu.Unlock()
		return
	}

	switch f.Type {
	case stream.TypeStatus:
		c.view.Status = f.Message
		c.view.Logs = append(c.view.Logs, f.Message)
	case stream.TypeText:
		c.view.Report = f.Content
	case stream.TypeChunk:
		c.view.Report += f.Content
	case stream.TypeComplete:
		c.view.IsLoading = false
		c.view.Status = StatusComplete
		c.view.Phase = PhaseComplete
	case stream.TypeError:
		c.failLocked(f.Message)
	}
	view := c.snapshotLocked()
	c.mu.Unlock()

	if c.observe != nil {
		c.observe(f, view)
	}
}

func (c *Consumer) failLocked(msg string) {
	c.view.Logs = append(c.view.Logs, "Error: "+msg)
	c.view.IsLoading = false
	c.view.Status = StatusErrored
	c.view.Phase = PhaseErrored
}

// abort ends a running run locally as if the server had sent error{err}.
func (c *Consumer) abort(err error) error {
	c.Apply(stream.Error(err.Error()))
	return err
}

// Submit starts a run for topic and consumes its stream until a terminal
// frame arrives or the stream ends. It returns nil when the run completes,
// a *RunError when the server reports a failure, and the local failure
// otherwise. In every case the view ends in Complete or Errored.
func (c *Consumer) Submit(ctx context.Context, topic string) error {
	if err := c.Begin(topic); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"topic": topic})
	if err != nil {
		return c.abort(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/research", bytes.NewReader(body))
	if err != nil {
		return c.abort(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.abort(fmt.Errorf("research request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.abort(fmt.Errorf("server returned %d: %s", resp.StatusCode, errorMessage(resp.Body)))
	}

	dec := stream.NewDecoder(resp.Body, c.decodeOpts...)
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return c.abort(ErrClosedEarly)
		}
		if err != nil {
			return c.abort(fmt.Errorf("read stream: %w", err))
		}

		c.Apply(f)
		if !f.Terminal() {
			continue
		}
		if f.Type == stream.TypeError {
			return &RunError{Message: f.Message}
		}
		return nil
	}
}

// errorMessage extracts {"error": "..."} from a rejected request, falling
// back to the raw body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return "no body"
}
