package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/originality/internal/model"
)

// ollamaStub serves /api/tags and /api/generate and keeps the generate requests
type ollamaStub struct {
	mu       sync.Mutex
	requests []ollamaRequest
	reply    ollamaResponse
	status   int
}

func (s *ollamaStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:8b"}]}`))
	case "/api/generate":
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":"model 'missing' not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(s.reply)
	default:
		http.NotFound(w, r)
	}
}

func (s *ollamaStub) last() ollamaRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ollamaRequest{}
	}
	return s.requests[len(s.requests)-1]
}

func newOllama(t *testing.T, baseURL, modelName string) *OllamaProvider {
	t.Helper()
	provider, err := NewOllamaProvider(Config{BaseURL: baseURL, Model: modelName, Timeout: 5, StrictEvidence: true})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestOllamaProvider_IdeaSummary(t *testing.T) {
	stub := &ollamaStub{reply: ollamaResponse{
		Model:    "llama3.1:8b",
		Response: "  A linter that flags flaky integration tests before they reach the main branch of a monorepo today  ",
		Done:     true,
	}}
	server := httptest.NewServer(stub)
	defer server.Close()

	readme := "flakehunt finds flaky tests."
	summarizer := NewIdeaSummarizer(newOllama(t, server.URL, ""), "llama3.1:8b", model.DefaultFallbacks(), nil)
	summary := summarizer.Summarize(context.Background(), readme)

	if got := len(strings.Fields(summary)); got != IdeaMaxWords {
		t.Errorf("Expected summary cut to %d words, got %d: %q", IdeaMaxWords, got, summary)
	}
	if !strings.HasPrefix(summary, "A linter that flags flaky") {
		t.Errorf("Expected trimmed summary, got %q", summary)
	}

	req := stub.last()
	if req.Model != "llama3.1:8b" || req.Stream {
		t.Errorf("Expected non-streaming request for llama3.1:8b, got %+v", req)
	}
	if req.Prompt != BuildIdeaPrompt(readme) {
		t.Errorf("Expected idea prompt, got %q", req.Prompt)
	}
	if req.Options.NumPredict != IdeaMaxTokens {
		t.Errorf("Expected num_predict %d, got %d", IdeaMaxTokens, req.Options.NumPredict)
	}
}

func TestOllamaProvider_Narrative(t *testing.T) {
	stub := &ollamaStub{reply: ollamaResponse{
		Model:           "llama3.1:8b",
		Response:        "The repository is mostly original; see https://github.com/acme/flaky for a related approach.",
		Done:            true,
		PromptEvalCount: 180,
		EvalCount:       60,
	}}
	server := httptest.NewServer(stub)
	defer server.Close()

	report := model.Report{
		Repository: model.RepoMeta{Name: "flakehunt", URL: "https://github.com/me/flakehunt"},
		Code: model.CodeSimilarity{SimilarRepos: []model.SimilarRepo{
			{Name: "acme/flaky", URL: "https://github.com/acme/flaky", Similarity: 0.4},
		}},
	}

	summarizer := NewSummarizerWithProvider(newOllama(t, server.URL, "llama3.1:8b"), Config{Provider: "ollama", Model: "llama3.1:8b", StrictEvidence: true})
	narrative, err := summarizer.GenerateSummary(context.Background(), report)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	if !strings.Contains(narrative.Text, "mostly original") {
		t.Errorf("Expected narrative text, got %q (warnings %v)", narrative.Text, narrative.Warnings)
	}
	if len(narrative.Warnings) == 0 || narrative.Warnings[0] != "Tokens used: 240" {
		t.Errorf("Expected token warning from reported counts, got %v", narrative.Warnings)
	}

	req := stub.last()
	if req.System != narrativeSystem || req.Options.NumPredict != NarrativeMaxTokens {
		t.Errorf("Expected narrative system and budget, got system %q and %d tokens", req.System, req.Options.NumPredict)
	}
}

func TestOllamaProvider_EstimatesTokensWhenUnreported(t *testing.T) {
	stub := &ollamaStub{reply: ollamaResponse{Model: "llama3.1:8b", Response: "Sixteen chars!!!", Done: true}}
	server := httptest.NewServer(stub)
	defer server.Close()

	prompt := BuildIdeaPrompt("tiny")
	resp, err := newOllama(t, server.URL, "llama3.1:8b").Summarize(context.Background(), SummarizeRequest{Prompt: prompt})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if want := (len(prompt) + len("Sixteen chars!!!")) / 4; resp.TokensUsed != want {
		t.Errorf("Expected estimated %d tokens, got %d", want, resp.TokensUsed)
	}
}

func TestOllamaProvider_Errors(t *testing.T) {
	stub := &ollamaStub{status: http.StatusNotFound}
	server := httptest.NewServer(stub)
	defer server.Close()

	_, err := newOllama(t, server.URL, "missing").Summarize(context.Background(), SummarizeRequest{Prompt: BuildIdeaPrompt("x")})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected API error with message, got %v", err)
	}

	if _, err := newOllama(t, server.URL, "").Summarize(context.Background(), SummarizeRequest{Prompt: "x"}); err == nil {
		t.Error("Expected error without a model")
	}
	if _, err := newOllama(t, server.URL, "llama3.1:8b").Summarize(context.Background(), SummarizeRequest{}); err == nil {
		t.Error("Expected error for empty prompt")
	}

	fallbacks := model.DefaultFallbacks()
	if got := NewIdeaSummarizer(newOllama(t, server.URL, "missing"), "", fallbacks, nil).Summarize(context.Background(), "readme"); got != fallbacks.SummaryFailure {
		t.Errorf("Expected failure text, got %q", got)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(&ollamaStub{})
	if !newOllama(t, server.URL, "llama3.1:8b").IsAvailable(context.Background()) {
		t.Error("Expected available while /api/tags answers")
	}
	server.Close()

	if newOllama(t, server.URL, "llama3.1:8b").IsAvailable(context.Background()) {
		t.Error("Expected unavailable after the server stopped")
	}
}

func TestOllamaProvider_DefaultURL(t *testing.T) {
	provider, err := NewOllamaProvider(Config{})
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if provider.baseURL != DefaultOllamaURL {
		t.Errorf("Expected %s, got %s", DefaultOllamaURL, provider.baseURL)
	}
}
