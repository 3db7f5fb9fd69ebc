package score

import (
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// Limits on the public payload
const (
	MaxIdeaProjects    = 3
	MaxCodeSearchRepos = 7
	MaxSimilarProjects = 10
	MaxCopiedBlocks    = 5
)

// BuildResult assembles the public payload. Similar projects are the top idea
// matches followed by code-search repositories not already listed.
func BuildResult(s model.Score, code model.CodeSimilarity, idea model.IdeaCheck, summary, reportURL string) model.Result {
	projects := make([]string, 0, MaxSimilarProjects)
	seen := make(map[string]bool)
	add := func(name string) bool {
		key := strings.ToLower(name)
		if name == "" || seen[key] || len(projects) >= MaxSimilarProjects {
			return false
		}
		seen[key] = true
		projects = append(projects, name)
		return true
	}

	added := 0
	for _, p := range idea.SimilarProjects {
		if added >= MaxIdeaProjects {
			break
		}
		if add(p.Name) {
			added++
		}
	}

	added = 0
	for _, r := range code.SimilarRepos {
		if added >= MaxCodeSearchRepos {
			break
		}
		if add(r.Name) {
			added++
		}
	}

	copied := code.CopiedBlocks
	if len(copied) > MaxCopiedBlocks {
		copied = copied[:MaxCopiedBlocks]
	}
	if copied == nil {
		copied = []model.CopiedBlock{}
	}

	return model.Result{
		OriginalityScore: s.Originality,
		Verdict:          s.Verdict,
		SimilarProjects:  projects,
		CopiedBlocks:     copied,
		IdeaSummary:      summary,
		ReportURL:        reportURL,
	}
}
