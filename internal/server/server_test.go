package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/db/dbtest"
	"github.com/jonathan/research-agent/internal/pipeline"
	"github.com/jonathan/research-agent/internal/pipeline/pipelinetest"
	"github.com/jonathan/research-agent/internal/stream"
)

// failingStore fails every call.
type failingStore struct{ err error }

func (f failingStore) SaveReport(context.Context, string, string, []db.Source) (int64, error) {
	return 0, f.err
}
func (f failingStore) ListReports(context.Context) ([]db.Report, error) { return nil, f.err }
func (f failingStore) DeleteReports(context.Context, []int64) (int64, error) {
	return 0, f.err
}

// partialStore deletes from a MemoryStore but reports one id as failed.
type partialStore struct{ *db.MemoryStore }

func (p partialStore) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	n, _ := p.MemoryStore.DeleteReports(ctx, ids[:1])
	return n, errors.New("failed to delete report: timeout")
}

func newTestServer(store db.Store, searcher *pipelinetest.Search, gen *pipelinetest.LLM, opts ...pipeline.Option) *Server {
	engine := pipeline.NewEngine(searcher, gen, opts...)
	return New(Config{Port: 0, RunTimeout: 5 * time.Second}, engine, store, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeFrames(t *testing.T, body []byte) []stream.Frame {
	t.Helper()
	dec := stream.NewDecoder(bytes.NewReader(body), stream.Strict())
	var frames []stream.Frame
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(db.NewMemoryStore(), &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestResearch_StreamsFrames(t *testing.T) {
	store := db.NewMemoryStore()
	report := pipelinetest.Report(500, 50)
	s := newTestServer(store, &pipelinetest.Search{Results: pipelinetest.Snippets(3)}, &pipelinetest.LLM{Fragments: report})

	w := do(t, s, http.MethodPost, "/api/research", `{"topic":"quantum computing"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.True(t, w.Flushed)

	frames := decodeFrames(t, w.Body.Bytes())
	require.NotEmpty(t, frames)
	assert.Equal(t, stream.Status("Searching the web..."), frames[0])
	assert.Equal(t, stream.Complete(), frames[len(frames)-1])

	var sb strings.Builder
	for _, f := range frames {
		if f.Type == stream.TypeChunk {
			sb.WriteString(f.Content)
		}
	}
	assert.Len(t, sb.String(), 500)

	reports, err := store.ListReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "quantum computing", reports[0].Topic)
	assert.Equal(t, sb.String(), reports[0].Content)
}

func TestResearch_SnapshotMode(t *testing.T) {
	s := newTestServer(db.NewMemoryStore(), &pipelinetest.Search{}, &pipelinetest.LLM{Fragments: []string{"# R"}},
		pipeline.WithMode(pipeline.ModeSnapshot))

	w := do(t, s, http.MethodPost, "/api/research", `{"topic":"go"}`)
	frames := decodeFrames(t, w.Body.Bytes())

	require.Len(t, frames, 4)
	assert.Equal(t, stream.Text("# R"), frames[2])
	assert.Equal(t, stream.TypeComplete, frames[3].Type)
}

func TestResearch_GenerationFailure(t *testing.T) {
	store := db.NewMemoryStore()
	s := newTestServer(store, &pipelinetest.Search{}, &pipelinetest.LLM{Err: errors.New("invalid api key")})

	w := do(t, s, http.MethodPost, "/api/research", `{"topic":"go"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	frames := decodeFrames(t, w.Body.Bytes())
	last := frames[len(frames)-1]
	assert.Equal(t, stream.TypeError, last.Type)
	assert.Contains(t, last.Message, "invalid api key")
	assert.Empty(t, dbtest.IDs(t, store))
}

func TestResearch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "body"},
		{"malformed json", `{"topic":`, "invalid JSON"},
		{"missing topic", `{}`, "topic"},
		{"blank topic", `{"topic":"   "}`, "topic"},
		{"wrong type", `{"topic":42}`, "invalid JSON"},
		{"too long", `{"topic":"` + strings.Repeat("x", 501) + `"}`, "at most 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &pipelinetest.Search{}
			s := newTestServer(db.NewMemoryStore(), searcher, &pipelinetest.LLM{})

			w := do(t, s, http.MethodPost, "/api/research", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.want)
			assert.Empty(t, searcher.Queries(), "pipeline must not start")
		})
	}
}

func TestResearch_MethodNotAllowed(t *testing.T) {
	s := newTestServer(db.NewMemoryStore(), &pipelinetest.Search{}, &pipelinetest.LLM{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(t, s, method, "/api/research", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Empty(t, w.Body.String(), method)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(db.NewMemoryStore(), &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodOptions, "/api/reports", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestListReports(t *testing.T) {
	s := newTestServer(dbtest.Seeded(t, 3, 5, 7), &pipelinetest.Search{}, &pipelinetest.LLM{})

	first := do(t, s, http.MethodGet, "/api/reports", "")
	require.Equal(t, http.StatusOK, first.Code)

	var reports []db.Report
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &reports))
	require.Len(t, reports, 3)
	assert.Equal(t, []int64{7, 5, 3}, []int64{reports[0].ID, reports[1].ID, reports[2].ID})

	second := do(t, s, http.MethodGet, "/api/reports", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestListReports_Empty(t *testing.T) {
	s := newTestServer(db.NewMemoryStore(), &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListReports_StoreFailure(t *testing.T) {
	s := newTestServer(failingStore{err: errors.New("db down")}, &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDeleteReports(t *testing.T) {
	store := dbtest.Seeded(t, 3, 5, 7)
	s := newTestServer(store, &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodDelete, "/api/reports", `{"ids":[3,7]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, []int64{5}, dbtest.IDs(t, store))
}

func TestDeleteReports_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing ids", `{}`},
		{"ids not a list", `{"ids":"3"}`},
		{"ids null", `{"ids":null}`},
		{"non-integer id", `{"ids":[3,"x"]}`},
		{"non-positive id", `{"ids":[0]}`},
		{"not json", `ids=3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := dbtest.Seeded(t, 3, 5, 7)
			s := newTestServer(store, &pipelinetest.Search{}, &pipelinetest.LLM{})

			w := do(t, s, http.MethodDelete, "/api/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assert.Equal(t, []int64{3, 5, 7}, dbtest.IDs(t, store))
		})
	}
}

func TestDeleteReports_EmptySet(t *testing.T) {
	store := dbtest.Seeded(t, 3)
	s := newTestServer(store, &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodDelete, "/api/reports", `{"ids":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3}, dbtest.IDs(t, store))
}

func TestDeleteReports_PartialFailureStillSucceeds(t *testing.T) {
	store := dbtest.Seeded(t, 3, 5, 7)
	s := newTestServer(partialStore{store}, &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodDelete, "/api/reports", `{"ids":[3,7]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, []int64{5, 7}, dbtest.IDs(t, store))
}

func TestDeleteReports_TotalFailure(t *testing.T) {
	s := newTestServer(failingStore{err: errors.New("db down")}, &pipelinetest.Search{}, &pipelinetest.LLM{})

	w := do(t, s, http.MethodDelete, "/api/reports", `{"ids":[1]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ErrValidation{Field: "ids", Message: "is required"}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}

func TestResearch_LogsUndeliveredTerminalFrame(t *testing.T) {
	tests := []struct {
		name  string
		w     func() http.ResponseWriter
		warns int
	}{
		{"delivered", func() http.ResponseWriter { return httptest.NewRecorder() }, 0},
		{"client gone", func() http.ResponseWriter { return &brokenWriter{ResponseRecorder: httptest.NewRecorder()} }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			engine := pipeline.NewEngine(&pipelinetest.Search{}, &pipelinetest.LLM{Fragments: []string{"# R"}})
			s := New(Config{RunTimeout: 5 * time.Second}, engine, db.NewMemoryStore(), zap.New(core))

			req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"topic":"go"}`))
			req.Header.Set("Content-Type", "application/json")
			s.Handler().ServeHTTP(tt.w(), req)

			assert.Equal(t, tt.warns, logs.FilterMessage("client did not receive a terminal frame").Len())
		})
	}
}
