package report

import (
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

type htmlData struct {
	Report    *model.Report
	Narrative string
	Footer    bool
}

var pageTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"score":      func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"similarity": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"paragraphs": paragraphs,
	"days":       sortedDays,
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Originality Report: {{.Report.Repository.FullName}}</title>
<style>
body { font-family: sans-serif; max-width: 860px; margin: 2em auto; color: #222; }
.score { font-size: 2.4em; font-weight: bold; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
pre { background: #f6f8fa; padding: 8px; overflow-x: auto; }
.footer { color: #777; font-size: 0.85em; }
</style>
</head>
<body>
<h1>{{.Report.Repository.FullName}}</h1>
<p><a href="{{.Report.Repository.URL}}">{{.Report.Repository.URL}}</a>{{if .Report.Repository.CommitHash}} at <code>{{.Report.Repository.CommitHash}}</code>{{end}}</p>

<p class="score">{{score .Report.Score.Originality}}/100 &middot; {{.Report.Score.Verdict}}</p>
<p>{{.Report.Score.Description}}</p>

<table>
<tr><th>Signal</th><th>Value</th></tr>
<tr><td>Code similarity</td><td>{{similarity .Report.Code.Score}}</td></tr>
<tr><td>Idea similarity</td><td>{{similarity .Report.Idea.Similarity}} ({{.Report.Idea.Verdict}})</td></tr>
<tr><td>Contribution credibility</td><td>{{score .Report.Credibility.Score}}/100</td></tr>
</table>

<h2>Project Idea</h2>
<p>{{.Report.IdeaSummary}}</p>

<h2>Similar Projects</h2>
{{if .Report.Result.SimilarProjects}}<ul>
{{range .Report.Result.SimilarProjects}}<li>{{.}}</li>
{{end}}</ul>{{else}}<p>None found.</p>{{end}}

{{if .Report.Result.CopiedBlocks}}<h2>Near-Duplicate Blocks</h2>
{{range .Report.Result.CopiedBlocks}}<h3>Similarity {{similarity .Distance}}</h3>
<pre>{{.TargetBlock}}</pre>
<p>Similar to:</p>
<pre>{{.SimilarTo}}</pre>
{{end}}{{end}}

{{if .Report.Credibility.Spikes}}<h2>Commit Spikes</h2>
<ul>
{{$spikes := .Report.Credibility.Spikes}}{{range days $spikes}}<li>{{.}}: {{index $spikes .}} commits</li>
{{end}}</ul>{{end}}

<h2>Summary</h2>
{{range paragraphs .Narrative}}<p>{{.}}</p>
{{end}}

{{if .Footer}}<p class="footer">Scores are heuristics derived from embedding similarity and commit patterns. They are not a finding of plagiarism.</p>{{end}}
</body>
</html>
`

// paragraphs splits text on blank lines
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedDays(spikes map[string]int) []string {
	days := make([]string, 0, len(spikes))
	for d := range spikes {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
