package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	blankRuns     = regexp.MustCompile(`[ \t]+`)
	newlineRuns   = regexp.MustCompile(`\n{3,}`)
)

// ReadmeText reduces a README to the prose a summarizer should see: embedded
// HTML is stripped to its visible text, badges and images are dropped and
// links keep only their label.
func ReadmeText(readme string) string {
	if strings.TrimSpace(readme) == "" {
		return ""
	}

	text := readme
	if strings.Contains(readme, "<") {
		doc, err := html.Parse(strings.NewReader(readme))
		if err == nil {
			text = extractVisibleText(doc)
		}
	}

	text = markdownImage.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = blankRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Line breaks inside text nodes are kept so Markdown structure survives.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "img":
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "h1", "h2", "h3", "h4", "li", "tr":
				buf.WriteString("\n")
			}
		}
	}

	walk(n)
	return buf.String()
}
