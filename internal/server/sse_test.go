package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/research-agent/internal/stream"
)

// brokenWriter fails every body write, as a disconnected client does.
type brokenWriter struct {
	*httptest.ResponseRecorder
	writes int
}

func (b *brokenWriter) Write([]byte) (int, error) {
	b.writes++
	return 0, errors.New("write: broken pipe")
}

// plainWriter hides the recorder's Flush method.
type plainWriter struct{ http.ResponseWriter }

func TestNewSSEWriter_Headers(t *testing.T) {
	w := httptest.NewRecorder()
	_, err := NewSSEWriter(w, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.True(t, w.Flushed)
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(plainWriter{httptest.NewRecorder()}, nil)
	assert.Error(t, err)
}

func TestSSEWriter_WritesRecordsInOrder(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w, nil)
	require.NoError(t, err)

	require.NoError(t, sse.WriteFrame(stream.Status("Searching the web...")))
	require.NoError(t, sse.WriteFrame(stream.Chunk("a")))
	require.NoError(t, sse.WriteFrame(stream.Complete()))

	assert.Equal(t,
		`data: {"type":"status","message":"Searching the web..."}`+"\n\n"+
			`data: {"type":"chunk","content":"a"}`+"\n\n"+
			`data: {"type":"complete"}`+"\n\n",
		w.Body.String())
}

func TestSSEWriter_NothingAfterTerminal(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w, nil)
	require.NoError(t, err)

	require.NoError(t, sse.WriteFrame(stream.Error("boom")))
	assert.True(t, sse.Closed())

	err = sse.WriteFrame(stream.Status("late"))
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.NotContains(t, w.Body.String(), "late")
}

func TestSSEWriter_CloseIsIdempotent(t *testing.T) {
	sse, err := NewSSEWriter(httptest.NewRecorder(), nil)
	require.NoError(t, err)

	assert.NoError(t, sse.Close())
	assert.NoError(t, sse.Close())
	assert.ErrorIs(t, sse.WriteFrame(stream.Complete()), ErrStreamClosed)
}

func TestSSEWriter_SwallowsAfterDisconnect(t *testing.T) {
	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder()}
	sse, err := NewSSEWriter(w, nil)
	require.NoError(t, err)

	err = sse.WriteFrame(stream.Chunk("a"))
	assert.ErrorIs(t, err, ErrClientGone)

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			assert.ErrorIs(t, sse.WriteFrame(stream.Chunk("b")), ErrClientGone)
		}
	})
	assert.Equal(t, 1, w.writes)
}
