package adapters

import (
	"regexp"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// header locates the opening line of a block. The match must end on the
// opening brace. Name, when > 0, is the submatch holding the declared name.
type header struct {
	re   *regexp.Regexp
	name int
	// trailer extends the block past the closing brace up to the next ';'
	trailer bool
}

// controlWords are statements that look like calls followed by a body
var controlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "else": true, "do": true, "try": true, "new": true,
	"synchronized": true, "sizeof": true, "with": true,
}

// BraceAdapter extracts blocks in curly-brace languages: a regex finds each
// header and the body is delimited by matching braces, ignoring braces in
// string literals and comments.
type BraceAdapter struct {
	BaseAdapter
	headers []header
}

// NewJSAdapter creates an adapter for JavaScript and JSX
func NewJSAdapter() *BraceAdapter {
	return &BraceAdapter{
		BaseAdapter: BaseAdapter{name: "js", extensions: []string{".js", ".jsx", ".mjs", ".cjs"}},
		headers: []header{
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:async[ \t]+)?function\s*\*?\s*(\w+)\s*\([^)]*\)\s*\{`), name: 1},
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:function\s*)?\([^)]*\)\s*(?:=>)?\s*\{`), name: 1},
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?class\s+(\w+)(?:\s+extends\s+[\w.]+)?\s*\{`), name: 1},
		},
	}
}

// NewJavaAdapter creates an adapter for Java methods and types
func NewJavaAdapter() *BraceAdapter {
	return &BraceAdapter{
		BaseAdapter: BaseAdapter{name: "java", extensions: []string{".java"}},
		headers: []header{
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|protected|private|static|final|abstract|synchronized|native|default)\s+)*(?:<[^>]*>\s+)?[\w.<>\[\]?]+(?:,\s*[\w.<>\[\]?]+)*\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w.,\s]+)?\{`), name: 1},
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|protected|private|abstract|final|static)\s+)*(?:class|interface|enum)\s+(\w+)[^{;]*\{`), name: 1},
		},
	}
}

// NewCAdapter creates an adapter for C and C++
func NewCAdapter() *BraceAdapter {
	return &BraceAdapter{
		BaseAdapter: BaseAdapter{name: "c", extensions: []string{".c", ".h", ".cpp", ".cc", ".cxx", ".hpp", ".hh"}},
		headers: []header{
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:[\w:<>,]+[ \t*&]+)+[*&]*([\w:~]+)\s*\([^)]*\)\s*(?:const\s*)?(?:noexcept\s*)?\{`), name: 1},
			{re: regexp.MustCompile(`(?m)^[ \t]*typedef\s+struct\s*\w*\s*\{`), trailer: true},
			{re: regexp.MustCompile(`(?m)^[ \t]*(?:class|struct)\s+(\w+)(?:\s*:\s*(?:public|private|protected)?\s*[\w:]+)?\s*\{`), name: 1, trailer: true},
		},
	}
}

// Extract returns one block per matched header
func (a *BraceAdapter) Extract(src, file string) []model.CodeBlock {
	var spans []span
	for _, h := range a.headers {
		for _, m := range h.re.FindAllStringSubmatchIndex(src, -1) {
			if h.name > 0 && m[2*h.name] >= 0 {
				name := src[m[2*h.name]:m[2*h.name+1]]
				if controlWords[name] {
					continue
				}
			}

			open := m[1] - 1
			end := matchBrace(src, open)
			if end < 0 {
				continue
			}
			end++
			if h.trailer {
				end = extendToSemicolon(src, end)
			}

			start := m[0]
			for start < open && (src[start] == ' ' || src[start] == '\t' || src[start] == '\n' || src[start] == '\r') {
				start++
			}
			spans = append(spans, span{start: start, end: end})
		}
	}
	return a.collect(src, file, spans)
}

// matchBrace returns the index of the brace closing the one at open, or -1
func matchBrace(src string, open int) int {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return -1
	}

	depth := 0
	for i := open; i < len(src); i++ {
		switch c := src[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'', '`':
			i = skipString(src, i, c)
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				nl := strings.IndexByte(src[i:], '\n')
				if nl < 0 {
					return -1
				}
				i += nl
			} else if i+1 < len(src) && src[i+1] == '*' {
				endComment := strings.Index(src[i+2:], "*/")
				if endComment < 0 {
					return -1
				}
				i += endComment + 3
			}
		}
	}
	return -1
}

// skipString returns the index of the closing quote of the literal at i
func skipString(src string, i int, quote byte) int {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			// Unterminated single-line literal; resume after it
			if quote != '`' {
				return j
			}
		case quote:
			return j
		}
	}
	return len(src)
}

// extendToSemicolon includes a trailing declarator such as "} Point;"
func extendToSemicolon(src string, end int) int {
	rest := src[end:]
	semi := strings.IndexByte(rest, ';')
	if semi < 0 {
		return end
	}
	if strings.ContainsAny(rest[:semi], "{}()\n") {
		return end
	}
	return end + semi + 1
}
