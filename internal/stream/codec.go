package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/research-agent/internal/schemas"
)

const dataPrefix = "data:"

// Encode renders f as one SSE record: "data: <json>\n\n".
func Encode(f Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	return append(buf, '\n', '\n'), nil
}

// DecodeError reports a record that could not be turned into a Frame.
type DecodeError struct {
	Record string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", e.Record, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder reads frames from an SSE stream. Comment lines and records
// without data are skipped; multiple data lines in one record are joined
// with "\n".
type Decoder struct {
	r      *bufio.Reader
	strict bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// Strict validates every record against the frame schema.
func Strict() DecoderOption {
	return func(d *Decoder) { d.strict = true }
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next frame. It returns io.EOF once the stream ends on a
// record boundary and io.ErrUnexpectedEOF if it ends inside a record.
func (d *Decoder) Next() (Frame, error) {
	var data [][]byte
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Frame{}, err
		}
		atEOF := errors.Is(err, io.EOF)

		trimmed := bytes.TrimRight(line, "\r\n")
		switch {
		case len(trimmed) == 0:
			if len(data) > 0 && !atEOF {
				return d.decode(bytes.Join(data, []byte("\n")))
			}
		case trimmed[0] == ':':
		case bytes.HasPrefix(trimmed, []byte(dataPrefix)):
			value := bytes.TrimPrefix(trimmed, []byte(dataPrefix))
			value = bytes.TrimPrefix(value, []byte(" "))
			data = append(data, append([]byte(nil), value...))
		}

		if atEOF {
			if len(data) > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, io.EOF
		}
	}
}

func (d *Decoder) decode(payload []byte) (Frame, error) {
	record := string(payload)
	if d.strict {
		if err := schemas.ValidateFrame(payload); err != nil {
			return Frame{}, &DecodeError{Record: record, Err: err}
		}
	}

	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, &DecodeError{Record: record, Err: err}
	}
	switch f.Type {
	case TypeStatus, TypeText, TypeChunk, TypeComplete, TypeError:
	default:
		return Frame{}, &DecodeError{Record: record, Err: fmt.Errorf("unknown frame type %q", strings.TrimSpace(string(f.Type)))}
	}
	return f, nil
}
