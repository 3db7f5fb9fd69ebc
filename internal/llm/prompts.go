package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

const (
	// IdeaPromptChars bounds how much README text the idea prompt carries
	IdeaPromptChars = 1000

	// IdeaMaxTokens and IdeaMaxWords bound the one-sentence idea summary
	IdeaMaxTokens = 20
	IdeaMaxWords  = 15

	// NarrativeMaxTokens bounds the narrative report
	NarrativeMaxTokens = 300

	narrativeSystem = "You are a helpful assistant that writes originality reports for software repositories. You describe measured signals and never assert plagiarism as fact."
)

// BuildIdeaPrompt asks for a one-sentence summary of the README's core idea
func BuildIdeaPrompt(readme string) string {
	return "Summarize the core idea of this project in one sentence (max 15 words), " +
		"focusing on unique functionality, excluding tools or languages: " +
		truncateRunes(readme, IdeaPromptChars)
}

// BuildNarrativePrompt constructs the report narrative prompt with strict evidence mode
func BuildNarrativePrompt(report model.Report, evidenceURLs []string) string {
	similar := "None found"
	if names := report.Result.SimilarProjects; len(names) > 0 {
		if len(names) > 5 {
			names = names[:5]
		}
		similar = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a detailed project analysis report (200-250 words) for '%s' with:\n", report.Repository.Name)
	fmt.Fprintf(&b, "- Overall originality score: %.1f/100\n", report.Score.Originality)
	fmt.Fprintf(&b, "- Verdict: %s\n", report.Score.Verdict)
	fmt.Fprintf(&b, "- Project idea: '%s'\n", report.IdeaSummary)
	fmt.Fprintf(&b, "- Code similarity score: %.2f\n", report.Code.Score)
	fmt.Fprintf(&b, "- Idea similarity: %.2f (%s)\n", report.Idea.Similarity, report.Idea.Verdict)
	fmt.Fprintf(&b, "- Contribution credibility: %.1f/100\n", report.Credibility.Score)
	fmt.Fprintf(&b, "- Similar projects: %s\n", similar)
	fmt.Fprintf(&b, "- Copied code blocks: %d\n\n", len(report.Code.CopiedBlocks))

	b.WriteString("Include analysis of originality in three aspects: code implementation, project idea, and development consistency. ")
	b.WriteString("Explain what the scores mean and provide specific recommendations for improving originality if needed. ")
	b.WriteString("If originality is high, explain the project's unique strengths. Write in a professional, constructive tone.\n\n")

	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("1. You MUST ONLY cite URLs from this allowed list:")
	b.WriteString(joinURLs(evidenceURLs))
	b.WriteString("\n2. DO NOT infer, speculate, or cite external sources beyond this list.\n")
	b.WriteString("3. The scores are heuristics. Never state that code was copied as a fact.\n")

	return b.String()
}

// EvidenceURLs lists the URLs a narrative may cite: the analyzed repository
// and every matched project
func EvidenceURLs(report model.Report) []string {
	var urls []string
	add := func(u string) {
		if u != "" && !contains(urls, u) {
			urls = append(urls, u)
		}
	}
	add(report.Repository.URL)
	for _, p := range report.Idea.SimilarProjects {
		add(p.URL)
	}
	for _, r := range report.Code.SimilarRepos {
		add(r.URL)
	}
	return urls
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No evidence URLs available)"
	}
	result := ""
	for i, url := range urls {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			result += fmt.Sprintf("\n... and %d more URLs", len(urls)-20)
			break
		}
		result += fmt.Sprintf("\n- %s", url)
	}
	return result
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
