// Package summarize provides the AI summarization collaborator used by
// workflow steps.
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
	"time"
)

// Summarizer condenses message content into a short digest.
type Summarizer interface {
	// Initialize prepares a session for the given model. Safe to call more
	// than once; subsequent calls with the same model are no-ops.
	Initialize(ctx context.Context, model string) error

	// Summarize returns the aggregated summary text.
	Summarize(ctx context.Context, text string) (string, error)
}

// ErrNotInitialized is returned when Summarize is called before Initialize.
var ErrNotInitialized = errors.New("summarizer not initialized")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 60 * time.Second

	// Content longer than the threshold is truncated before prompting so it
	// fits the model context. Small model variants get a tighter budget.
	truncateLimit      = 12000
	truncateLimitSmall = 4000
)

// HTTPSummarizer calls a chat-completions style API.
type HTTPSummarizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewHTTPSummarizer creates a summarizer against the given endpoint. An empty
// baseURL targets the OpenAI API.
func NewHTTPSummarizer(baseURL, apiKey string) *HTTPSummarizer {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &HTTPSummarizer{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Initialize records the model for subsequent calls.
func (s *HTTPSummarizer) Initialize(_ context.Context, model string) error {
	if model == "" {
		model = defaultModel
	}

	s.model = model

	return nil
}

// Summarize truncates overlong content and asks the model for a digest.
func (s *HTTPSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.model == "" {
		return "", ErrNotInitialized
	}

	text = Truncate(text, s.model)

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Summarize the following email in two or three sentences. Keep sender intent and any dates or amounts."},
			{Role: "user", Content: text},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build summarize request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read summarize response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarize request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse summarize response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("summarize API error: %s", parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return "", errors.New("summarize response contained no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Truncate bounds content to the model's budget. Models whose name carries a
// small-variant marker ("mini", "nano", "small") get the tighter limit.
func Truncate(text, model string) string {
	limit := truncateLimit
	if IsSmallModel(model) {
		limit = truncateLimitSmall
	}

	if len(text) <= limit {
		return text
	}

	return text[:limit] + "\n[content truncated]"
}

// IsSmallModel reports whether the model name denotes a small variant.
func IsSmallModel(model string) bool {
	lower := strings.ToLower(model)

	return strings.Contains(lower, "mini") ||
		strings.Contains(lower, "nano") ||
		strings.Contains(lower, "small")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
