package adapters

import (
	"regexp"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

var pythonHeader = regexp.MustCompile(`^([ \t]*)(?:async[ \t]+)?(?:def|class)[ \t]+\w+`)

// PythonAdapter extracts def and class blocks using indentation. Nested
// definitions produce their own blocks as well as being part of the parent.
type PythonAdapter struct {
	BaseAdapter
}

// NewPythonAdapter creates a new Python adapter
func NewPythonAdapter() *PythonAdapter {
	return &PythonAdapter{
		BaseAdapter: BaseAdapter{name: "python", extensions: []string{".py", ".pyw"}},
	}
}

type line struct {
	offset   int
	text     string
	inString bool // starts inside a triple-quoted string
}

// Extract returns one block per def/class header
func (a *PythonAdapter) Extract(src, file string) []model.CodeBlock {
	lines := splitLines(src)

	var spans []span
	for i, ln := range lines {
		if ln.inString {
			continue
		}
		m := pythonHeader.FindStringSubmatch(ln.text)
		if m == nil {
			continue
		}
		indent := indentWidth(m[1])

		start := ln.offset
		for j := i - 1; j >= 0; j-- {
			prev := lines[j]
			trimmed := strings.TrimSpace(prev.text)
			if !strings.HasPrefix(trimmed, "@") || indentWidth(leadingSpace(prev.text)) != indent {
				break
			}
			start = prev.offset
		}

		last := headerEnd(lines, i)
		for j := last + 1; j < len(lines); j++ {
			body := lines[j]
			if strings.TrimSpace(body.text) == "" {
				continue
			}
			if !body.inString && indentWidth(leadingSpace(body.text)) <= indent {
				break
			}
			last = j
		}

		spans = append(spans, span{start: start, end: lines[last].offset + len(lines[last].text)})
	}

	return a.collect(src, file, spans)
}

// splitLines splits src keeping byte offsets and marks lines that begin
// inside a triple-quoted string
func splitLines(src string) []line {
	var lines []line
	delim := ""
	offset := 0
	for _, raw := range strings.SplitAfter(src, "\n") {
		if raw == "" {
			continue
		}
		text := strings.TrimRight(raw, "\r\n")
		lines = append(lines, line{offset: offset, text: text, inString: delim != ""})
		delim = scanTripleQuotes(text, delim)
		offset += len(raw)
	}
	return lines
}

// scanTripleQuotes returns the open triple-quote delimiter after text
func scanTripleQuotes(text, delim string) string {
	for i := 0; i+3 <= len(text); {
		if delim == "" && text[i] == '#' {
			return delim
		}
		chunk := text[i : i+3]
		switch {
		case delim == "" && (chunk == `"""` || chunk == "'''"):
			delim = chunk
			i += 3
		case delim != "" && chunk == delim:
			delim = ""
			i += 3
		default:
			i++
		}
	}
	return delim
}

// headerEnd returns the index of the last line of a (possibly wrapped) header
func headerEnd(lines []line, i int) int {
	depth := 0
	for j := i; j < len(lines); j++ {
		for _, r := range lines[j].text {
			switch r {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		if depth <= 0 {
			return j
		}
	}
	return len(lines) - 1
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// indentWidth measures indentation with tabs advancing to the next multiple of 8
func indentWidth(ws string) int {
	width := 0
	for _, r := range ws {
		if r == '\t' {
			width += 8 - width%8
		} else {
			width++
		}
	}
	return width
}
