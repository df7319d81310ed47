package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ChatClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewChatClient("test-key", server.URL, 0)
}

func TestChatClient_Complete(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 512 {
			t.Errorf("expected max_tokens 512, got %d", req.MaxTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "test-model-v1",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"text": "done"}`}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 20, "completion_tokens": 7},
		})
	})

	resp, err := client.Complete(context.Background(), Request{
		Model:           "test-model",
		SystemPrompt:    "translate",
		UserPrompt:      "hello",
		MaxOutputTokens: 512,
		ResponseFormat:  "json_object",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"text": "done"}` {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Model != "test-model-v1" {
		t.Errorf("expected the served model name, got %q", resp.Model)
	}
	if resp.Usage.InputTokens != 20 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestChatClient_ClientErrorIsPermanent(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad model"})
	})

	_, err := client.Complete(context.Background(), Request{Model: "x"})
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("expected ErrPermanent for a 400, got %v", err)
	}
}

func TestChatClient_RateLimitIsRetryable(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), Request{Model: "x"})
	if err == nil {
		t.Fatal("expected an error for a 429")
	}
	if errors.Is(err, ErrPermanent) {
		t.Error("a 429 must not be permanent")
	}
}

func TestChatClient_TruncationDetected(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "partial out"}, "finish_reason": "length"},
			},
		})
	})

	_, err := client.Complete(context.Background(), Request{Model: "x", MaxOutputTokens: 100})
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for finish_reason length, got %v", err)
	}
}

func TestChatClient_EmptyChoices(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := client.Complete(context.Background(), Request{Model: "x"})
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for empty choices, got %v", err)
	}
}

func TestEmbeddingClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		// Return vectors out of order; the client must re-sort by index.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	defer server.Close()

	client := NewEmbeddingClient("key", server.URL, "embed-model", 0)
	vecs, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("expected vectors in input order, got %v", vecs)
	}
}

func TestEmbeddingClient_EmptyInput(t *testing.T) {
	client := NewEmbeddingClient("key", "http://localhost:1", "model", 0)
	vecs, err := client.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("expected a no-op for empty input, got %v, %v", vecs, err)
	}
}

func TestEmbeddingClient_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"index": 0, "embedding": []float64{1}}},
		})
	}))
	defer server.Close()

	client := NewEmbeddingClient("key", server.URL, "model", 0)
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for a vector-count mismatch")
	}
}

func TestMTBaseline_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("langpair"); got != "uk|en" {
			t.Errorf("unexpected langpair %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "Привіт" {
			t.Errorf("unexpected query %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseData":   map[string]string{"translatedText": "Hello"},
			"responseStatus": 200,
		})
	}))
	defer server.Close()

	b := NewMTBaseline(server.URL, "")
	got, err := b.Translate(context.Background(), "Привіт", "uk", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("expected Hello, got %q", got)
	}
}

func TestMTBaseline_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseStatus":  403,
			"responseDetails": "quota exceeded",
		})
	}))
	defer server.Close()

	b := NewMTBaseline(server.URL, "")
	if _, err := b.Translate(context.Background(), "text", "uk", "en"); err == nil {
		t.Error("expected error for a failed API status")
	}
}
