package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestGenerateHappyPath(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sekrit" {
			t.Errorf("auth header = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completion("  the answer  ")))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", Model: "qwen3-4b", APIKey: "sekrit"})
	out, err := c.Generate(context.Background(), "hello", 256)
	if err != nil {
		t.Fatal(err)
	}
	if out != "the answer" {
		t.Errorf("output = %q, want trimmed completion", out)
	}
	if gotReq.Model != "qwen3-4b" || gotReq.MaxTokens != 256 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completion("ok")))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m"})
	out, err := c.Generate(context.Background(), "p", 10)
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" || attempts != 2 {
		t.Errorf("out=%q attempts=%d", out, attempts)
	}
}

func TestGenerateResourceExhausted(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"507": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInsufficientStorage)
		},
		"503 oom": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("llama runner: out of memory"))
		},
		"200 with oom error": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"message": "CUDA out of memory"}}`))
		},
	}

	for name, handler := range cases {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m"})
			_, err := c.Generate(context.Background(), "p", 10)
			if !errors.Is(err, ErrResourceExhausted) {
				t.Fatalf("want ErrResourceExhausted, got %v", err)
			}
		})
	}
}

func TestGenerateNonRetryableStatus(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad prompt"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), "p", 10)
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("got %v", err)
	}
	if attempts != 1 {
		t.Errorf("a 400 must not be retried, got %d attempts", attempts)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m"})
	if _, err := c.Generate(context.Background(), "p", 10); err == nil {
		t.Fatal("want error on empty choices")
	}
}

func TestGenerateHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(ctx, "p", 10)
	if err == nil {
		t.Fatal("want error when context expires during backoff")
	}
}

func TestGeneratorFunc(t *testing.T) {
	t.Parallel()
	var g Generator = GeneratorFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return prompt + "!", nil
	})
	out, err := g.Generate(context.Background(), "hi", 1)
	if err != nil || out != "hi!" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}
