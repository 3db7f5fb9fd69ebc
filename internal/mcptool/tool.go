// Package mcptool exposes repository analysis as a Model Context Protocol tool.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ppiankov/originality/internal/worker"
)

// ToolName is the name of the analysis tool
const ToolName = "analyze_repository"

// NewServer creates an MCP server with the analysis tool registered
func NewServer(analyzer worker.Analyzer, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"originality",
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithInstructions("Estimates how original a public GitHub repository is from its code, its idea and its commit history."),
	)
	Register(s, analyzer, logger)
	return s
}

// Register adds the analysis tool to s
func Register(s *server.MCPServer, analyzer worker.Analyzer, logger *slog.Logger) {
	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Analyzes a GitHub repository and returns its originality score (0-100), verdict, similar projects, near-duplicate code blocks, a one-sentence idea summary and the URL of the full report."),
		mcp.WithString("github_link",
			mcp.Description("URL of the repository, e.g. https://github.com/owner/repo"),
			mcp.Required(),
		),
	)
	s.AddTool(tool, Handler(analyzer, logger))
}

// Handler returns the tool handler. Analysis failures are reported as tool
// errors so the calling agent sees the reason.
func Handler(analyzer worker.Analyzer, logger *slog.Logger) server.ToolHandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		link, ok := request.Params.Arguments["github_link"].(string)
		if !ok || strings.TrimSpace(link) == "" {
			return errorResult("github_link must be a non-empty string"), nil
		}
		link = strings.TrimSpace(link)

		logger.Info("mcp analysis requested", "url", link)
		report, err := analyzer.Analyze(ctx, link)
		if err != nil {
			logger.Error("mcp analysis failed", "url", link, "error", err)
			return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		payload, err := json.MarshalIndent(report.Result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return textResult(string(payload), false), nil
	}
}

// ServeStdio serves s on stdin/stdout until the input closes
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func errorResult(msg string) *mcp.CallToolResult {
	return textResult(msg, true)
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}
