package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ndelvaux/jurisnote/internal/chapters"
	"github.com/ndelvaux/jurisnote/internal/config"
	"github.com/ndelvaux/jurisnote/internal/match"
	"github.com/ndelvaux/jurisnote/internal/pipeline"
	"github.com/ndelvaux/jurisnote/internal/subjects"
)

type noopMatcher struct{}

func (noopMatcher) MatchChapter(context.Context, chapters.Chapter, []subjects.Subject) (match.Decision, error) {
	return match.Decision{Explanation: "n/a"}, nil
}

func testServer(t *testing.T, cfg config.Config, ollamaURL string) *Server {
	t.Helper()
	if cfg.MaxPDFBytes == 0 {
		cfg.MaxPDFBytes = 1 << 20
	}
	if cfg.MaxSubjectsBytes == 0 {
		cfg.MaxSubjectsBytes = 1 << 20
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(pipeline.Config{SessionDeadline: 5 * time.Second},
		func(string) pipeline.Matcher { return noopMatcher{} }, log)
	client := match.NewOllamaClient(ollamaURL)
	return NewServer(orch, client, match.NewLLMStats(time.Hour), log, cfg)
}

func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".pdf")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv := testServer(t, config.Config{OllamaModel: "llama3"}, fakeOllama(t).URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" || body["ollama"] != "up" {
		t.Errorf("body = %v", body)
	}
}

func TestAuth(t *testing.T) {
	srv := testServer(t, config.Config{APIKey: "secret", OllamaModel: "llama3"}, fakeOllama(t).URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}

	// Health stays public.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health behind auth: status = %d", rec.Code)
	}
}

func TestModels(t *testing.T) {
	srv := testServer(t, config.Config{OllamaModel: "llama3"}, fakeOllama(t).URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Models) != 1 || body.Models[0] != "llama3" || body.Default != "llama3" {
		t.Errorf("body = %+v", body)
	}
}

func TestLLMStats(t *testing.T) {
	srv := testServer(t, config.Config{OllamaModel: "llama3"}, fakeOllama(t).URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Model string              `json:"model"`
		Stats match.StatsSnapshot `json:"stats"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Model != "llama3" || body.Stats.Count != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestPreviewSubjects(t *testing.T) {
	srv := testServer(t, config.Config{}, fakeOllama(t).URL)

	body, contentType := multipartBody(t, map[string][]byte{
		"subjects": []byte("subject,comment\nConfidentiality,Check carve-outs.\n"),
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/preview/subjects", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var preview subjects.Preview
	json.NewDecoder(rec.Body).Decode(&preview)
	if !preview.Valid || preview.SubjectsCount != 1 {
		t.Errorf("preview = %+v", preview)
	}
}

func TestPreviewSubjects_MissingFile(t *testing.T) {
	srv := testServer(t, config.Config{}, fakeOllama(t).URL)

	body, contentType := multipartBody(t, nil, map[string]string{"unrelated": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/preview/subjects", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessSync_BadPDF(t *testing.T) {
	srv := testServer(t, config.Config{OllamaModel: "llama3"}, fakeOllama(t).URL)

	body, contentType := multipartBody(t, map[string][]byte{
		"pdf":      []byte("definitely not a pdf"),
		"subjects": []byte("subject,comment\nA,B\n"),
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process/sync", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var errBody map[string]string
	json.NewDecoder(rec.Body).Decode(&errBody)
	if !strings.HasPrefix(errBody["error"], "chapters:") {
		t.Errorf("error = %q, want chapters stage", errBody["error"])
	}
}

func TestProcess_BadPDFStreamsError(t *testing.T) {
	srv := testServer(t, config.Config{OllamaModel: "llama3"}, fakeOllama(t).URL)

	body, contentType := multipartBody(t, map[string][]byte{
		"pdf":      []byte("garbage"),
		"subjects": []byte("subject,comment\nA,B\n"),
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	stream := rec.Body.String()
	if !strings.Contains(stream, "event: error") {
		t.Errorf("stream missing error event:\n%s", stream)
	}
}

func TestSessionNotFound(t *testing.T) {
	srv := testServer(t, config.Config{}, fakeOllama(t).URL)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("result status = %d, want 404", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"contract.pdf", "contract.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/file.pdf", "file.pdf"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
