package match

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGenerate_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("streaming must be off")
		}
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: `{"matched": false}`})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL)
	got, err := client.Generate(context.Background(), "llama3", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"matched": false}` {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerate_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL)
	_, err := client.Generate(context.Background(), "llama3", "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("503 must be retryable, got %v", err)
	}
}

func TestGenerate_ModelMissingIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL)
	_, err := client.Generate(context.Background(), "nope", "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("404 must not be retryable, got %v", err)
	}
}

func TestGenerate_ConnectionRefusedIsRetryable(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1")
	_, err := client.Generate(context.Background(), "llama3", "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("connection failure must be retryable, got %v", err)
	}
}

func TestGenerate_DeadlineComesFromContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	client := NewOllamaClient(srv.URL)
	if client.httpClient.Timeout != 0 {
		t.Fatalf("client timeout = %v; a fixed timeout would cap configured attempt deadlines", client.httpClient.Timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Generate(ctx, "llama3", "prompt")
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Generate took %v, context deadline ignored", elapsed)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3"},{"name":"mistral:7b"}]}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL)
	got, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if diff := cmp.Diff([]string{"llama3", "mistral:7b"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}
