package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/admission"
	"github.com/lexgrove/evidentia/ai/mock"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/ingest"
	"github.com/lexgrove/evidentia/layout"
	"github.com/lexgrove/evidentia/search"
	"github.com/lexgrove/evidentia/storage/badger"
)

// fakeCaller is a controllable ModelCaller for handler tests.
type fakeCaller struct {
	mu sync.Mutex
	fn func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeCaller) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, prompt)
	}
	return "answer for: " + prompt, nil
}

// fakeExtractor returns one synthetic page per request so handler tests need
// no PDF fixtures.
type fakeExtractor struct{}

func (f *fakeExtractor) Extract(data []byte) ([]layout.Page, error) {
	filler := strings.Repeat("whereas the parties agree to the terms set forth herein ", 30)
	return []layout.Page{{
		Number: 1,
		Width:  612,
		Height: 792,
		Runs: []core.TextRun{
			{Text: filler, X: 72, Y: 700, Width: 468, Height: 12, FontSize: 12},
		},
	}}, nil
}

type testServer struct {
	server *Server
	caller *fakeCaller
}

func newTestServer(t *testing.T, copts ...admission.ControllerOption) *testServer {
	t.Helper()

	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	coordinator, err := embed.NewCoordinator(mock.NewMockEmbedder())
	require.NoError(t, err)

	pipeline, err := ingest.NewPipeline(chunks, sources, coordinator,
		ingest.WithExtractor(&fakeExtractor{}),
		ingest.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	caller := &fakeCaller{}
	allOpts := append([]admission.ControllerOption{
		admission.WithDrainDelays(time.Millisecond, 2*time.Millisecond),
	}, copts...)
	controller, err := admission.NewController(caller, allOpts...)
	require.NoError(t, err)

	searcher, err := search.NewSearcher(chunks, mock.NewMockEmbedder())
	require.NoError(t, err)

	server, err := NewServer(pipeline, controller, searcher, chunks, sources)
	require.NoError(t, err)

	return &testServer{server: server, caller: caller}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, docType string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("type", docType))
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func pdfBytes() []byte {
	return append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 200)...)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleIngest(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "case_law", map[string][]byte{
		"opinion.pdf": pdfBytes(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []struct {
			Name     string `json:"name"`
			OK       bool   `json:"ok"`
			SourceID string `json:"source_id"`
		} `json:"files"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.True(t, resp.Files[0].OK)
	assert.NotEmpty(t, resp.Files[0].SourceID)
	assert.Zero(t, resp.Failed)
}

func TestHandleIngest_PerFileFailure(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "generic", map[string][]byte{
		"notes.txt": pdfBytes(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []struct {
			OK    bool `json:"ok"`
			Error *struct {
				Code       string `json:"code"`
				Suggestion string `json:"suggestion"`
			} `json:"error"`
		} `json:"files"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.False(t, resp.Files[0].OK)
	require.NotNil(t, resp.Files[0].Error)
	assert.Equal(t, "INVALID_FILE_TYPE", resp.Files[0].Error.Code)
	assert.NotEmpty(t, resp.Files[0].Error.Suggestion)
	assert.Equal(t, 1, resp.Failed)
}

func TestHandleIngest_NoFiles(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "generic", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSourceLifecycle(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "statute", map[string][]byte{
		"act.pdf": pdfBytes(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, ts.do(t, req).Code)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Sources []struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Type   string `json:"type"`
			Status string `json:"status"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Sources, 1)
	assert.Equal(t, "act.pdf", listResp.Sources[0].Title)
	assert.Equal(t, "statute", listResp.Sources[0].Type)
	assert.Equal(t, "ready", listResp.Sources[0].Status)

	id := listResp.Sources[0].ID
	rec = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sources/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sources/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "generic", map[string][]byte{
		"brief.pdf": pdfBytes(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, ts.do(t, req).Code)

	// The mock embedder is deterministic per text, so querying with the exact
	// chunk text yields a perfect match.
	query := strings.TrimSpace(strings.Repeat("whereas the parties agree to the terms set forth herein ", 30))
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Hits []struct {
			SourceID string  `json:"source_id"`
			Text     string  `json:"text"`
			Score    float32 `json:"score"`
		} `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Hits)
	assert.Contains(t, resp.Hits[0].Text, "set forth herein")
	assert.Greater(t, resp.Hits[0].Score, float32(0.9))
}

func TestHandleSearch_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=anything&limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func generateBody(t *testing.T, owner, query string) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"owner":    owner,
		"resource": "matter-1",
		"query":    query,
		"evidence": []string{"exhibit A"},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func TestHandleGenerate_Direct(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", generateBody(t, "u1", "what is the holding?"))
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "what is the holding?")
}

func TestHandleGenerate_InvalidRequest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/generate", generateBody(t, "u1", "  ")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerate_Busy(t *testing.T) {
	ts := newTestServer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	ts.caller.mu.Lock()
	ts.caller.fn = func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-release
		return "slow answer", nil
	}
	ts.caller.mu.Unlock()

	firstBody := generateBody(t, "u1", "first question")
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", firstBody)
		ts.server.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-started

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/generate", generateBody(t, "u1", "second question")))
	close(release)
	<-firstDone

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleGenerate_QueuedAndPolled(t *testing.T) {
	ts := newTestServer(t)
	ts.server.controller.SignalThrottle()

	req := httptest.NewRequest(http.MethodPost, "/api/generate", generateBody(t, "u1", "queued question"))
	rec := ts.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Ticket  string `json:"ticket"`
		PollURL string `json:"poll_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Ticket)
	assert.Equal(t, "/api/generate/"+resp.Ticket, resp.PollURL)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = ts.do(t, httptest.NewRequest(http.MethodGet, resp.PollURL, nil))
		if rec.Code == http.StatusOK {
			break
		}
		require.Equal(t, http.StatusAccepted, rec.Code, "unexpected poll status")
		require.True(t, time.Now().Before(deadline), "queued request never resolved")
		time.Sleep(5 * time.Millisecond)
	}

	var answer struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Contains(t, answer.Answer, "queued question")
}

func TestHandlePoll_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/generate/no-such-ticket", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGenerate_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.caller.mu.Lock()
	ts.caller.fn = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model exploded")
	}
	ts.caller.mu.Unlock()

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/generate", generateBody(t, "u1", "doomed question")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
