package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/observability"
	"github.com/ppiankov/originality/internal/pipeline"
	"github.com/ppiankov/originality/internal/report"
)

var (
	timeout     time.Duration
	outJSON     string
	formats     []string
	noCache     bool
	noNarrative bool
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <github-url>",
	Short: "Analyze a single GitHub repository",
	Long: `Analyze clones a repository and scores its originality:
- Extract function and class sized code blocks
- Compare them with previously analyzed repositories
- Summarize the project idea and search GitHub for similar projects
- Inspect the commit history for bulk-import spikes
- Write JSON, Markdown and HTML reports

The result payload is printed to stdout as JSON.

Example:
  originality analyze https://github.com/owner/repo
  originality analyze https://github.com/owner/repo --json result.json --formats json,html
  originality analyze https://github.com/owner/repo --llm-provider groq --llm-model llama-3.1-8b-instant`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "also write the result payload to this path")
	addPipelineFlags(analyzeCmd)
}

// addPipelineFlags registers the flags shared by analyze and batch
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "report formats (json, md, html)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable embedding and search caches")
	cmd.Flags().BoolVar(&noNarrative, "no-narrative", false, "skip the LLM report narrative")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, groq, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

// applyFlags lets CLI flags override the loaded configuration
func applyFlags(cfg *model.Config) {
	if len(formats) > 0 {
		cfg.Report.Formats = formats
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noNarrative {
		cfg.Report.Narrative = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		applyEnv(cfg, os.Getenv)
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// openPipeline starts tracing and wires the production pipeline. The
// returned func releases both.
func openPipeline(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	p, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		if tp != nil {
			_ = tp.Shutdown(context.Background())
		}
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}

	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close pipeline", "error", err)
		}
		if tp != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to flush traces", "error", err)
			}
		}
	}, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	applyFlags(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", url)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Index: %s\n", cfg.Index.Backend)
		fmt.Fprintln(os.Stderr)
	}

	p, closeFn, err := openPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := p.Analyze(ctx, url)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Extracted %d blocks from %d files\n", rep.Repository.Blocks, rep.Repository.Files)
		fmt.Fprintf(os.Stderr, "✓ Code similarity: %.2f\n", rep.Code.Score)
		fmt.Fprintf(os.Stderr, "✓ Idea similarity: %.2f\n", rep.Idea.Similarity)
		fmt.Fprintf(os.Stderr, "✓ Credibility: %.1f/100\n", rep.Credibility.Score)
		if rep.Narrative != nil && rep.Narrative.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated narrative using %s/%s\n", rep.Narrative.Provider, rep.Narrative.Model)
		}
	}
	report.NewRenderer(true).RenderSummary(os.Stderr, rep)

	payload, err := json.MarshalIndent(rep.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(payload))

	if outJSON != "" {
		if err := os.WriteFile(outJSON, append(payload, '\n'), 0644); err != nil {
			return fmt.Errorf("write %s: %w", outJSON, err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
	}
	return nil
}
