package model

import (
	"runtime"
	"time"
)

// Placeholder texts shared by the summarizer and the idea matcher
const (
	NoDescriptionText  = "No project description available."
	SummaryFailureText = "Failed to summarize project idea."
)

// Config holds all runtime configuration
type Config struct {
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	GitHub       GitHubConfig      `yaml:"github" mapstructure:"github"`
	Embedding    EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Index        IndexConfig       `yaml:"index" mapstructure:"index"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Analysis     AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Fallbacks    FallbackConfig    `yaml:"fallbacks" mapstructure:"fallbacks"`
	Report       ReportConfig      `yaml:"report" mapstructure:"report"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Events       EventsConfig      `yaml:"events" mapstructure:"events"`
	History      HistoryConfig     `yaml:"history" mapstructure:"history"`
	Tracing      TracingConfig     `yaml:"tracing" mapstructure:"tracing"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// HTTPConfig configures outbound HTTP clients
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// GitHubConfig configures the search and commit-history collaborators
type GitHubConfig struct {
	Token          string `yaml:"-" mapstructure:"token"`
	APIURL         string `yaml:"api_url" mapstructure:"api_url"`
	SearchLanguage string `yaml:"search_language" mapstructure:"search_language"` // language: qualifier for repository search
	MaxCandidates  int    `yaml:"max_candidates" mapstructure:"max_candidates"`
	CommitSource   string `yaml:"commit_source" mapstructure:"commit_source"` // "git" (local clone) or "api"
	CloneDir       string `yaml:"clone_dir" mapstructure:"clone_dir"`
	KeepClones     bool   `yaml:"keep_clones" mapstructure:"keep_clones"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LLMConfig configures the optional summarization provider
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, groq, anthropic, ollama, "" (disabled)
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
}

// IndexConfig selects and configures the vector index store
type IndexConfig struct {
	Backend          string `yaml:"backend" mapstructure:"backend"` // file, qdrant
	Dir              string `yaml:"dir" mapstructure:"dir"`
	QdrantAddr       string `yaml:"qdrant_addr,omitempty" mapstructure:"qdrant_addr"`
	QdrantCollection string `yaml:"qdrant_collection,omitempty" mapstructure:"qdrant_collection"`
}

// CacheConfig configures the embedding and search caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // Concurrent analyses in batch mode
	EmbedWorkers int `yaml:"embed_workers" mapstructure:"embed_workers"` // Concurrent embedding calls per analysis
}

// RateLimitConfig configures per-host request rates
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// AnalysisConfig bounds the amount of repository content analyzed
type AnalysisConfig struct {
	Extensions   []string `yaml:"extensions" mapstructure:"extensions"`
	MaxFileBytes int64    `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	MaxBlocks    int      `yaml:"max_blocks" mapstructure:"max_blocks"`
}

// FallbackConfig enumerates the neutral value substituted for each signal
// when its producing component fails upstream
type FallbackConfig struct {
	CodeScore      float64 `yaml:"code_score" mapstructure:"code_score"`   // Code originality (0-100) when the code signal failed
	IdeaScore      float64 `yaml:"idea_score" mapstructure:"idea_score"`   // Idea originality (0-100) when the idea signal failed
	Credibility    float64 `yaml:"credibility" mapstructure:"credibility"` // Credibility when the history step failed outright
	Originality    float64 `yaml:"originality" mapstructure:"originality"` // Final score when the scorer failed
	Verdict        string  `yaml:"verdict" mapstructure:"verdict"`
	IdeaSummary    string  `yaml:"idea_summary" mapstructure:"idea_summary"`
	SummaryFailure string  `yaml:"summary_failure" mapstructure:"summary_failure"`
	ReportURL      string  `yaml:"report_url" mapstructure:"report_url"`
}

// ReportConfig configures report generation
type ReportConfig struct {
	Dir       string   `yaml:"dir" mapstructure:"dir"`
	BaseURL   string   `yaml:"base_url" mapstructure:"base_url"`
	Formats   []string `yaml:"formats" mapstructure:"formats"` // json, md, html
	Narrative bool     `yaml:"narrative" mapstructure:"narrative"`
}

// ServerConfig configures the HTTP shell
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	AllowOrigins []string      `yaml:"allow_origins" mapstructure:"allow_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	RunTimeout   time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
}

// EventsConfig configures analysis-completed notifications
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" mapstructure:"nats_url"`
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// HistoryConfig configures the run history store
type HistoryConfig struct {
	DatabaseURL string `yaml:"-" mapstructure:"database_url"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRate   float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultFallbacks returns the documented neutral-failure values
func DefaultFallbacks() FallbackConfig {
	return FallbackConfig{
		CodeScore:      80,
		IdeaScore:      80,
		Credibility:    80,
		Originality:    80,
		Verdict:        "Original",
		IdeaSummary:    NoDescriptionText,
		SummaryFailure: SummaryFailureText,
		ReportURL:      "http://localhost:8000/static/report.txt",
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "originality/0.1 (+https://github.com/ppiankov/originality)",
		},
		GitHub: GitHubConfig{
			APIURL:         "https://api.github.com",
			SearchLanguage: "python",
			MaxCandidates:  10,
			CommitSource:   "git",
			CloneDir:       "temp_repos",
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Timeout:  60,
		},
		LLM: LLMConfig{
			Timeout:        30,
			MaxTokens:      300,
			StrictEvidence: true,
		},
		Index: IndexConfig{
			Backend:          "file",
			Dir:              "vector_index",
			QdrantCollection: "originality_fragments",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".originality-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      runtime.NumCPU(),
			EmbedWorkers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Analysis: AnalysisConfig{
			Extensions:   []string{".py", ".java", ".cpp", ".c", ".js", ".jsx"},
			MaxFileBytes: 1_000_000,
			MaxBlocks:    500,
		},
		Fallbacks: DefaultFallbacks(),
		Report: ReportConfig{
			Dir:       "static",
			BaseURL:   "http://localhost:8000",
			Formats:   []string{"json", "md", "html"},
			Narrative: true,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			AllowOrigins: []string{"http://localhost:3000"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			RunTimeout:   10 * time.Minute,
		},
		Events: EventsConfig{
			Subject: "originality.analysis.completed",
		},
		Tracing: TracingConfig{
			ServiceName: "originality",
			SampleRate:  1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
