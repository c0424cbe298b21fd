package summarize

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 20000)

	tests := []struct {
		name    string
		model   string
		wantLen int
	}{
		{name: "standard model budget", model: "gpt-4o", wantLen: truncateLimit},
		{name: "small variant budget", model: "gpt-4o-mini", wantLen: truncateLimitSmall},
		{name: "default model budget", model: "", wantLen: truncateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(long, tt.model)
			assert.True(t, strings.HasSuffix(got, "[content truncated]"))
			assert.Equal(t, tt.wantLen, len(strings.TrimSuffix(got, "\n[content truncated]")))
		})
	}

	assert.Equal(t, "short", Truncate("short", "gpt-4o-mini"))
}

func TestIsSmallModel(t *testing.T) {
	assert.True(t, IsSmallModel("gpt-4o-mini"))
	assert.True(t, IsSmallModel("GPT-NANO-2"))
	assert.True(t, IsSmallModel("mistral-small"))
	assert.False(t, IsSmallModel("gpt-4o"))
	assert.False(t, IsSmallModel(""))
}

func TestHTTPSummarizer_Summarize(t *testing.T) {
	var gotAuth, gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  A short digest.  "}}]}`)
	}))
	defer server.Close()

	s := NewHTTPSummarizer(server.URL, "secret")
	require.NoError(t, s.Initialize(t.Context(), "gpt-4o-mini"))

	summary, err := s.Summarize(t.Context(), "Please pay invoice 42 by Friday.")
	require.NoError(t, err)

	assert.Equal(t, "A short digest.", summary)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestHTTPSummarizer_RequiresInitialize(t *testing.T) {
	s := NewHTTPSummarizer("", "secret")

	_, err := s.Summarize(t.Context(), "anything")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestHTTPSummarizer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	}))
	defer server.Close()

	s := NewHTTPSummarizer(server.URL, "secret")
	require.NoError(t, s.Initialize(t.Context(), ""))

	_, err := s.Summarize(t.Context(), "anything")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestHTTPSummarizer_DefaultsModel(t *testing.T) {
	s := NewHTTPSummarizer("", "secret")
	require.NoError(t, s.Initialize(t.Context(), ""))

	assert.Equal(t, defaultModel, s.model)
}
