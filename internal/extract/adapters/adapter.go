package adapters

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// Adapter defines the interface for language-specific block extractors
type Adapter interface {
	// Name returns the adapter (language) name
	Name() string

	// CanHandle checks if this adapter understands the given file
	CanHandle(file string) bool

	// Extract returns the function and class sized blocks found in src
	Extract(src, file string) []model.CodeBlock
}

// Registry manages language adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
	fallback Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	js := NewJSAdapter()

	// Register built-in adapters
	registry.Register(js)
	registry.Register(NewJavaAdapter())
	registry.Register(NewCAdapter())

	// Unknown extensions are read as Python; when that finds nothing the
	// JS patterns get a second look at the file.
	registry.generic = NewPythonAdapter()
	registry.fallback = js

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given file name
func (r *Registry) FindAdapter(file string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(file) {
			return adapter
		}
	}
	return r.generic
}

// Extract runs the matching adapter over src
func (r *Registry) Extract(src, file string) []model.CodeBlock {
	if strings.TrimSpace(src) == "" {
		return nil
	}

	adapter := r.FindAdapter(file)
	blocks := adapter.Extract(src, file)
	if len(blocks) == 0 && adapter == r.generic && r.fallback != nil {
		blocks = r.fallback.Extract(src, file)
	}
	return blocks
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct {
	name       string
	extensions []string
}

// Name returns the adapter name
func (b *BaseAdapter) Name() string {
	return b.name
}

// CanHandle matches the file extension case-insensitively
func (b *BaseAdapter) CanHandle(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	for _, e := range b.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// span is a half-open byte range of a block in the source
type span struct {
	start, end int
}

// collect turns spans into blocks, ordered by position, skipping duplicates
// and whitespace-only text
func (b *BaseAdapter) collect(src, file string, spans []span) []model.CodeBlock {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var blocks []model.CodeBlock
	seen := make(map[span]bool)
	for _, s := range spans {
		if seen[s] {
			continue
		}
		seen[s] = true

		text := strings.TrimSpace(src[s.start:s.end])
		if text == "" {
			continue
		}
		blocks = append(blocks, model.CodeBlock{
			Text:     text,
			File:     file,
			Language: b.name,
		})
	}
	return blocks
}
