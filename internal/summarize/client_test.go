package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// TestSummarizeRequiresAPIKey checks that a blank key never reaches the
// network.
func TestSummarizeRequiresAPIKey(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := NewClientForTests(server.Client(), server.URL)
	_, err := client.Summarize(context.Background(), "some transcript", "  ", "ko")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
	if requests.Load() != 0 {
		t.Fatalf("requests = %d, want 0", requests.Load())
	}
}

// TestSummarizeParsesFirstChoice checks the happy path and request shape.
func TestSummarizeParsesFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("Content-Type = %q", got)
		}

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-4o-mini" {
			t.Fatalf("model = %q", body.Model)
		}
		if body.MaxTokens != 1000 {
			t.Fatalf("max_tokens = %d", body.MaxTokens)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", body.Messages)
		}
		if body.Messages[0].Content != systemPrompts["ko"] {
			t.Fatalf("system prompt = %q", body.Messages[0].Content)
		}
		if body.Messages[1].Content != "다음 텍스트를 요약해 주세요:\n\nraw transcript" {
			t.Fatalf("user message = %q", body.Messages[1].Content)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"- point one\n- point two"}}]}`))
	}))
	defer server.Close()

	client := NewClientForTests(server.Client(), server.URL)
	summary, err := client.Summarize(context.Background(), "raw transcript", "sk-test", "ko")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "- point one\n- point two" {
		t.Fatalf("summary = %q", summary)
	}
}

// TestSummarizeUnknownLanguageUsesDefaultPrompt checks prompt selection.
func TestSummarizeUnknownLanguageUsesDefaultPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Messages[0].Content != defaultSystemPrompt {
			t.Fatalf("system prompt = %q, want default", body.Messages[0].Content)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewClientForTests(server.Client(), server.URL)
	if _, err := client.Summarize(context.Background(), "text", "sk-test", "ja"); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
}

// TestSummarizeEmptyContentFallsBack checks the degraded success path.
func TestSummarizeEmptyContentFallsBack(t *testing.T) {
	for _, payload := range []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"  "}}]}`,
		`{}`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(payload))
		}))

		client := NewClientForTests(server.Client(), server.URL)
		summary, err := client.Summarize(context.Background(), "text", "sk-test", "ko")
		server.Close()

		if err != nil {
			t.Fatalf("payload %s: Summarize() error = %v", payload, err)
		}
		if summary != FallbackSummary {
			t.Fatalf("payload %s: summary = %q, want fallback", payload, summary)
		}
	}
}

// TestSummarizeNonOKStatus checks remote failure surfacing.
func TestSummarizeNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClientForTests(server.Client(), server.URL)
	if _, err := client.Summarize(context.Background(), "text", "sk-test", "ko"); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

// TestSummarizeCancelledContext checks cancel propagation.
func TestSummarizeCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClientForTests(server.Client(), server.URL)
	_, err := client.Summarize(ctx, "text", "sk-test", "ko")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
