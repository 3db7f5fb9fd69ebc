package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originality/internal/mcptool"
	"github.com/ppiankov/originality/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve starts the HTTP API:
  POST /analyze   {"github_link": "https://github.com/owner/repo"}
  GET  /health
  GET  /static/*  generated reports

Example:
  originality serve
  originality serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the analyze_repository tool over MCP stdio",
	Long: `Mcp exposes the analysis as a Model Context Protocol tool on stdin/stdout,
for use by AI agents. Logs are written to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeFn, err := openPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := os.MkdirAll(cfg.Report.Dir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	return server.New(p, cfg.Server, cfg.Report.Dir, logger).Listen(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	p, closeFn, err := openPipeline(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("mcp server ready on stdio", "tool", mcptool.ToolName)
	return mcptool.ServeStdio(mcptool.NewServer(p, Version, logger))
}
