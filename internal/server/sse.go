package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/stream"
)

var (
	// ErrStreamClosed is returned for frames written after the terminal frame.
	ErrStreamClosed = errors.New("sse: stream closed")
	// ErrClientGone is returned once a write to the client has failed.
	ErrClientGone = errors.New("sse: client disconnected")
)

// SSEWriter writes stream frames as Server-Sent Events, one flushed record
// per frame. It closes itself after the terminal frame.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	gone   bool
}

// NewSSEWriter sets the stream headers and commits the response.
func NewSSEWriter(w http.ResponseWriter, logger *zap.Logger) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher, logger: logger}, nil
}

// WriteFrame sends one frame and flushes it. After a failed write every
// later call returns ErrClientGone without touching the connection.
func (s *SSEWriter) WriteFrame(f stream.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.gone {
		return ErrClientGone
	}

	record, err := stream.Encode(f)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(record); err != nil {
		s.gone = true
		s.logger.Debug("sse write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	s.flusher.Flush()

	if f.Terminal() {
		s.closed = true
	}
	return nil
}

// Close marks the stream finished. It is safe to call more than once.
func (s *SSEWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether the terminal frame was written or Close was called.
func (s *SSEWriter) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
