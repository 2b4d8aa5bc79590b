package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/recollect-labs/recollect/config"
)

func testClient(baseURL string, batch int) *Client {
	return NewClient(config.LLMProvider{
		Type:            "openai",
		APIKey:          "test-key",
		BaseURL:         baseURL,
		CompletionModel: "gpt-test",
		EmbeddingModel:  "embed-test",
		EmbeddingBatch:  batch,
	})
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-test" || req.MaxTokens != 256 {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL, 0).Complete(context.Background(), "say hello", 256, 0.2)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestCompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 0).Complete(context.Background(), "p", 16, 0); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient(config.LLMProvider{CompletionModel: "gpt-test"})
	if _, err := c.Complete(context.Background(), "p", 16, 0); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestEmbedChunksAndPreservesPositions(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Return results out of order to exercise index-based placement.
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"embedding": []float32{float32(len(req.Input[i]))},
				"index":     i,
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer srv.Close()

	vectors, err := testClient(srv.URL, 2).Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, wantLen := range []float32{1, 2, 3} {
		if len(vectors[i]) != 1 || vectors[i][0] != wantLen {
			t.Fatalf("vector %d misplaced: %v", i, vectors[i])
		}
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("expected 2 chunk requests for batch 2, got %d", got)
	}
}

func TestEmbedFailedChunkDegrades(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the first chunk only.
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{"embedding": []float32{1}, "index": i}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer srv.Close()

	vectors, err := testClient(srv.URL, 2).Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("a failed chunk must not fail the call: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if vectors[0] != nil || vectors[1] != nil {
		t.Fatalf("failed chunk members must stay empty: %v %v", vectors[0], vectors[1])
	}
	if len(vectors[2]) != 1 {
		t.Fatalf("surviving chunk lost its vector: %v", vectors[2])
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	vectors, err := testClient("http://unused", 0).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil for empty input, got %v", vectors)
	}
}
