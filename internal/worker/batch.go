package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// Analyzer runs one complete originality analysis
type Analyzer interface {
	Analyze(ctx context.Context, repoURL string) (*model.Report, error)
}

// AnalysisJob analyzes a single repository URL
type AnalysisJob struct {
	Index    int
	URL      string
	Analyzer Analyzer
	Limiter  *Limiter
}

// Execute executes the analysis job
func (j *AnalysisJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.URL); err != nil {
			return &AnalysisResult{Index: j.Index, URL: j.URL, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	report, err := j.Analyzer.Analyze(ctx, j.URL)
	if err != nil {
		return &AnalysisResult{Index: j.Index, URL: j.URL, Error: err}
	}
	return &AnalysisResult{Index: j.Index, URL: j.URL, Report: report}
}

// AnalysisResult represents the result of an analysis job
type AnalysisResult struct {
	Index  int
	URL    string
	Report *model.Report
	Error  error
}

// GetError returns the error from the analysis result
func (r *AnalysisResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple repositories concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. Analyses that target the
// same host are started at no more than requestsPerSecond.
func NewBatchProcessor(analyzer Analyzer, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
		limiter:     NewLimiter(requestsPerSecond, burst),
	}
}

// ProcessURLs analyzes the URLs concurrently and returns results in input order
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*AnalysisResult {
	if len(urls) == 0 {
		return []*AnalysisResult{}
	}

	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()

	for i, url := range urls {
		pool.Submit(&AnalysisJob{
			Index:    i,
			URL:      url,
			Analyzer: b.analyzer,
			Limiter:  b.limiter,
		})
	}

	results := pool.Wait()

	out := make([]*AnalysisResult, 0, len(results))
	for _, result := range results {
		out = append(out, result.(*AnalysisResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out
}

// ProcessFile reads URLs from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalysisResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
