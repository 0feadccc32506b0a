// Package summarize turns a transcript into a short bulleted summary
// via a remote chat-completion service.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMissingAPIKey is returned when the API key is blank. The check
// happens before any network request.
var ErrMissingAPIKey = errors.New("summarization API key is required")

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4o-mini"

	// FallbackSummary is returned when the service responds without
	// content. Degraded but successful, not an error.
	FallbackSummary = "요약 내용을 가져올 수 없습니다."
)

// systemPrompts selects the summarization instruction by exact match on
// the language code.
var systemPrompts = map[string]string{
	"ko": "당신은 유용한 비서입니다. 주어진 텍스트의 핵심 내용을 3~5개의 글머리 기호로 간결하게 요약해 주세요. 한국어로 응답하세요.",
	"en": "You are a helpful assistant. Summarize the key points of the given text in 3 to 5 bullet points. Be concise.",
}

const defaultSystemPrompt = "You are a helpful assistant. Summarize the key points of the given text in 3 to 5 bullet points."

// Client issues chat-completion requests with an injected HTTP client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
}

// NewClient creates a summarization client. The HTTP client is owned by
// the caller's composition root, never ad hoc global state.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
	}
}

// NewClientForTests creates a client pointed at a test endpoint.
func NewClientForTests(httpClient *http.Client, endpoint string) *Client {
	c := NewClient(httpClient)
	c.endpoint = endpoint
	return c
}

// chatMessage is one role/content pair in the request body.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat-completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatResponse carries the first completion's message content.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize sends the transcript verbatim and returns the bulleted
// summary. The system prompt is selected by languageCode; extremely
// long transcripts may be rejected by the remote service, surfaced as
// an error.
func (c *Client) Summarize(ctx context.Context, transcript, apiKey, languageCode string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(languageCode)},
			{Role: "user", Content: "다음 텍스트를 요약해 주세요:\n\n" + transcript},
		},
		MaxTokens:   1000,
		Temperature: 0.5,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("request summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summary request returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read summary response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return FallbackSummary, nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// systemPrompt returns the instruction for an exact language match.
func systemPrompt(languageCode string) string {
	if prompt, ok := systemPrompts[languageCode]; ok {
		return prompt
	}
	return defaultSystemPrompt
}
