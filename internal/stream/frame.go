// Package stream defines the frames delivered to clients during a run, their
// SSE record encoding, and the translation of pipeline events into frames.
package stream

import "fmt"

// FrameType tags a Frame.
type FrameType string

const (
	TypeStatus   FrameType = "status"
	TypeText     FrameType = "text"
	TypeChunk    FrameType = "chunk"
	TypeComplete FrameType = "complete"
	TypeError    FrameType = "error"
)

// Frame is one unit of the client protocol. Message is set for status and
// error frames, Content for text and chunk frames.
type Frame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
}

// Status reports progress.
func Status(message string) Frame { return Frame{Type: TypeStatus, Message: message} }

// Text carries the full report so far and replaces earlier content.
func Text(content string) Frame { return Frame{Type: TypeText, Content: content} }

// Chunk carries a fragment to append to earlier content.
func Chunk(content string) Frame { return Frame{Type: TypeChunk, Content: content} }

// Complete ends a successful run.
func Complete() Frame { return Frame{Type: TypeComplete} }

// Error ends a failed run.
func Error(message string) Frame { return Frame{Type: TypeError, Message: message} }

// Terminal reports whether no frame may follow f.
func (f Frame) Terminal() bool {
	return f.Type == TypeComplete || f.Type == TypeError
}

func (f Frame) String() string {
	switch f.Type {
	case TypeStatus, TypeError:
		return fmt.Sprintf("%s{%q}", f.Type, f.Message)
	case TypeText, TypeChunk:
		return fmt.Sprintf("%s{%d chars}", f.Type, len(f.Content))
	default:
		return string(f.Type) + "{}"
	}
}

// FrameWriter delivers frames to one client in call order.
type FrameWriter interface {
	WriteFrame(Frame) error
}

// FrameWriterFunc adapts a function to FrameWriter.
type FrameWriterFunc func(Frame) error

// WriteFrame implements FrameWriter.
func (fn FrameWriterFunc) WriteFrame(f Frame) error { return fn(f) }
