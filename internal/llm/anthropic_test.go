package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/originality/internal/model"
)

// capturedRequest holds the last completion request a test server saw
type capturedRequest struct {
	mu  sync.Mutex
	req anthropicRequest
}

func (c *capturedRequest) set(req anthropicRequest) {
	c.mu.Lock()
	c.req = req
	c.mu.Unlock()
}

func (c *capturedRequest) last() anthropicRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

// anthropicServer answers /v1/messages with text and records completion
// requests; the availability ping is skipped
func anthropicServer(t *testing.T, text string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Missing auth headers: %v", r.Header)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if captured != nil && req.MaxTokens > 10 {
			captured.set(req)
		}

		resp := anthropicResponse{
			Model: "claude-3-5-haiku-20241022",
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: text}},
		}
		resp.Usage.InputTokens = 40
		resp.Usage.OutputTokens = 12
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newAnthropic(t *testing.T, baseURL string) *AnthropicProvider {
	t.Helper()
	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: baseURL, Timeout: 5, StrictEvidence: true})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestAnthropicProvider_IdeaSummary(t *testing.T) {
	var captured capturedRequest
	server := anthropicServer(t, "A scheduler that turns cron expressions into readable calendars for teams", &captured)
	defer server.Close()

	readme := "# cronview\n" + strings.Repeat("Turns cron lines into calendars. ", 60)
	summarizer := NewIdeaSummarizer(newAnthropic(t, server.URL), "", model.DefaultFallbacks(), nil)

	summary := summarizer.Summarize(context.Background(), readme)
	if summary != "A scheduler that turns cron expressions into readable calendars for teams" {
		t.Errorf("Unexpected summary: %q", summary)
	}

	got := captured.last()
	if got.MaxTokens != IdeaMaxTokens {
		t.Errorf("Expected max_tokens %d, got %d", IdeaMaxTokens, got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != BuildIdeaPrompt(readme) {
		t.Errorf("Expected the idea prompt as the only message, got %+v", got.Messages)
	}
	if len(got.Messages) == 1 && len([]rune(got.Messages[0].Content)) > IdeaPromptChars+200 {
		t.Errorf("Expected README to be truncated in the prompt, got %d runes", len([]rune(got.Messages[0].Content)))
	}
	if got.System != "" {
		t.Errorf("Expected no system message for the idea summary, got %q", got.System)
	}
}

func TestAnthropicProvider_Narrative(t *testing.T) {
	var captured capturedRequest
	server := anthropicServer(t, "cronview is largely original. Compare https://github.com/acme/cronlike for a related idea.", &captured)
	defer server.Close()

	report := model.Report{
		Repository: model.RepoMeta{Name: "cronview", URL: "https://github.com/me/cronview"},
		Idea: model.IdeaCheck{SimilarProjects: []model.ProjectRef{
			{Name: "acme/cronlike", URL: "https://github.com/acme/cronlike"},
		}},
		Score: model.Score{Originality: 84, Verdict: "Original"},
	}

	summarizer := NewSummarizerWithProvider(newAnthropic(t, server.URL), Config{Provider: "anthropic", StrictEvidence: true})
	narrative, err := summarizer.GenerateSummary(context.Background(), report)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	if !strings.Contains(narrative.Text, "largely original") {
		t.Errorf("Expected narrative text, got %q (warnings %v)", narrative.Text, narrative.Warnings)
	}
	if narrative.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("Expected model from the response, got %s", narrative.Model)
	}

	got := captured.last()
	if got.System != narrativeSystem {
		t.Errorf("Expected narrative system message, got %q", got.System)
	}
	if got.MaxTokens != NarrativeMaxTokens {
		t.Errorf("Expected max_tokens %d, got %d", NarrativeMaxTokens, got.MaxTokens)
	}
	if len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, "https://github.com/acme/cronlike") {
		t.Error("Expected similar project URL in the allowed list")
	}
}

func TestAnthropicProvider_NarrativeRejectsUnlistedCitation(t *testing.T) {
	server := anthropicServer(t, "Clearly copied from https://elsewhere.example/repo.", nil)
	defer server.Close()

	report := model.Report{Repository: model.RepoMeta{Name: "cronview", URL: "https://github.com/me/cronview"}}
	summarizer := NewSummarizerWithProvider(newAnthropic(t, server.URL), Config{Provider: "anthropic", StrictEvidence: true})

	narrative, err := summarizer.GenerateSummary(context.Background(), report)
	if err != nil {
		t.Fatalf("GenerateSummary should degrade, got error %v", err)
	}
	if narrative.Text != "" {
		t.Errorf("Expected leaked citation to drop the text, got %q", narrative.Text)
	}
	if len(narrative.Warnings) == 0 || !strings.Contains(narrative.Warnings[0], "CITATION LEAK") {
		t.Errorf("Expected citation leak warning, got %v", narrative.Warnings)
	}
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"Internal Server Error"}}`, "Internal Server Error"},
		{"rate limit", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"Rate limit exceeded"}}`, "rate_limit_error"},
		{"malformed", http.StatusOK, `{malformed json`, "unmarshal"},
		{"no content", http.StatusOK, `{"content":[]}`, "no content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newAnthropic(t, server.URL).Summarize(context.Background(), SummarizeRequest{Prompt: BuildIdeaPrompt("A tool.")})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}

			fallbacks := model.DefaultFallbacks()
			summary := NewIdeaSummarizer(newAnthropic(t, server.URL), "", fallbacks, nil).Summarize(context.Background(), "A tool.")
			if summary != fallbacks.SummaryFailure {
				t.Errorf("Expected failure text from the idea summarizer, got %q", summary)
			}
		})
	}
}

func TestAnthropicProvider_RequiresKeyAndPrompt(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
	if _, err := newAnthropic(t, "http://127.0.0.1:1").Summarize(context.Background(), SummarizeRequest{}); err == nil {
		t.Error("Expected error for empty prompt")
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hi"}]}`))
	}))
	defer server.Close()

	provider := newAnthropic(t, server.URL)
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	healthy.Store(false)
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}

	summarizer := NewSummarizerWithProvider(provider, Config{Provider: "anthropic", StrictEvidence: true})
	narrative, _ := summarizer.GenerateSummary(context.Background(), model.Report{})
	if narrative == nil || narrative.Enabled {
		t.Errorf("Expected disabled narrative for an unavailable provider, got %+v", narrative)
	}
}
