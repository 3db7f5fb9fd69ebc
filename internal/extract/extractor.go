package extract

import (
	"log/slog"

	"github.com/ppiankov/originality/internal/extract/adapters"
	"github.com/ppiankov/originality/internal/model"
)

// Extractor turns fetched source files into code blocks
type Extractor struct {
	registry  *adapters.Registry
	maxBlocks int
	logger    *slog.Logger
}

// NewExtractor creates an extractor. maxBlocks <= 0 means no cap.
func NewExtractor(maxBlocks int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		registry:  adapters.NewRegistry(),
		maxBlocks: maxBlocks,
		logger:    logger,
	}
}

// Blocks extracts blocks from every file in order, stopping at the cap
func (e *Extractor) Blocks(files []model.SourceFile) []model.CodeBlock {
	var blocks []model.CodeBlock
	for _, f := range files {
		found := e.registry.Extract(f.Content, f.Path)
		if len(found) == 0 {
			e.logger.Debug("no blocks extracted", "file", f.Path)
			continue
		}

		for _, b := range found {
			if e.maxBlocks > 0 && len(blocks) >= e.maxBlocks {
				e.logger.Warn("block cap reached, remaining files skipped", "max_blocks", e.maxBlocks)
				return blocks
			}
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Sample joins the first sampleChars characters of up to sampleBlocks
// blocks. It is the code text used to search for similar repositories.
func Sample(blocks []model.CodeBlock, sampleBlocks, sampleChars int) string {
	var out []rune
	for i, b := range blocks {
		if i >= sampleBlocks {
			break
		}
		if i > 0 {
			out = append(out, '\n')
		}
		r := []rune(b.Text)
		if len(r) > sampleChars {
			r = r[:sampleChars]
		}
		out = append(out, r...)
	}
	return string(out)
}
