package model

import "time"

// Result is the public analysis payload returned by the HTTP shell and the CLI
type Result struct {
	OriginalityScore float64       `json:"originality_score"` // 0-100
	Verdict          string        `json:"verdict"`           // Verdict band label
	SimilarProjects  []string      `json:"similar_projects"`  // At most 10, de-duplicated
	CopiedBlocks     []CopiedBlock `json:"copied_blocks"`     // At most 5, descending by similarity
	IdeaSummary      string        `json:"idea_summary"`
	ReportURL        string        `json:"report_url"`
}

// CopiedBlock is evidence that a block of the analyzed repository has a near
// duplicate in another repository's index. Distance carries the similarity.
type CopiedBlock struct {
	TargetBlock string  `json:"target_block"`
	Distance    float64 `json:"distance"`
	SimilarTo   string  `json:"similar_to"`
	SimilarRepo string  `json:"similar_repo,omitempty"`
}

// Report is the complete record of one analysis run
type Report struct {
	ID         string    `json:"id"`
	Repository RepoMeta  `json:"repository"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Code        CodeSimilarity `json:"code_similarity"`
	IdeaSummary string         `json:"idea_summary"`
	Idea        IdeaCheck      `json:"idea_check"`
	Credibility Credibility    `json:"contribution_credibility"`

	Score  Score  `json:"score"`
	Result Result `json:"result"`

	Narrative *Narrative `json:"narrative,omitempty"` // Optional LLM narrative, never affects score
}

// RepoMeta describes the fetched repository
type RepoMeta struct {
	Name       string `json:"name"`                  // Repository name without owner
	FullName   string `json:"full_name"`             // owner/repo
	URL        string `json:"url"`                   // URL that was analyzed
	CommitHash string `json:"commit_hash,omitempty"` // HEAD at clone time
	Files      int    `json:"files"`                 // Source files read
	Blocks     int    `json:"blocks"`                // Code blocks extracted
	HasReadme  bool   `json:"has_readme"`
	HasLicense bool   `json:"has_license"`
}

// CodeSimilarity is the output of the similarity matcher
type CodeSimilarity struct {
	Score        float64       `json:"similarity_score"` // Mean per-fragment similarity, 0-1
	Fragments    int           `json:"fragments"`        // Fragments embedded successfully
	Compared     int           `json:"compared"`         // Fragments that found a neighbor
	Appended     int           `json:"appended"`         // Entries added to the repository's store
	CopiedBlocks []CopiedBlock `json:"copied_blocks"`
	SimilarRepos []SimilarRepo `json:"similar_repos"`
}

// SimilarRepo is a code-search hit ranked by description similarity
type SimilarRepo struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
	Similarity  float64 `json:"similarity"`
}

// IdeaCheck is the output of the idea matcher
type IdeaCheck struct {
	Similarity      float64      `json:"idea_similarity_score"` // 0-1
	Verdict         string       `json:"verdict"`               // Unique ... Very Common
	Description     string       `json:"description,omitempty"`
	SimilarProjects []ProjectRef `json:"similar_projects"`
}

// ProjectNames returns the names of the matched projects in rank order
func (c IdeaCheck) ProjectNames() []string {
	names := make([]string, 0, len(c.SimilarProjects))
	for _, p := range c.SimilarProjects {
		names = append(names, p.Name)
	}
	return names
}

// Credibility is the output of the contribution credibility analyzer
type Credibility struct {
	Score        float64        `json:"credibility_score"` // 0-100
	TotalCommits int            `json:"total_commits"`
	SpikeDays    int            `json:"spike_days"`
	Spikes       map[string]int `json:"spikes,omitempty"` // Day (YYYY-MM-DD) -> commit count, spike days only
	Formula      string         `json:"formula"`
	Error        string         `json:"error,omitempty"`
}

// Score represents the transparent scoring breakdown
type Score struct {
	Originality float64  `json:"originality_score"` // 0-100
	Verdict     string   `json:"verdict"`
	Description string   `json:"description"`
	Signals     []Signal `json:"signals"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formulas and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalCodeSimilarity  SignalType = "code_similarity"          // Near-duplicate code in other repositories
	SignalIdeaSimilarity  SignalType = "idea_similarity"          // Project idea overlap with search candidates
	SignalCredibility     SignalType = "contribution_credibility" // Commit pattern heuristic
	SignalFallbackApplied SignalType = "fallback_applied"         // A neutral default replaced a failed signal
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Narrative contains the optional LLM-written report text
type Narrative struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"`
	Text           string   `json:"text,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}
