// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"

	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/repo"
	"github.com/ppiankov/originality/internal/worker"
)

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	GitHubLink string `json:"github_link"`
}

// Server serves analyses and the generated reports
type Server struct {
	app      *fiber.App
	analyzer worker.Analyzer
	cfg      model.ServerConfig
	logger   *slog.Logger
}

// New creates the fiber app. Reports in reportDir are served under /static.
func New(analyzer worker.Analyzer, cfg model.ServerConfig, reportDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:      "originality",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	s := &Server{app: app, analyzer: analyzer, cfg: cfg, logger: logger}

	app.Get("/health", s.health)
	app.Post("/analyze", s.analyze)
	if reportDir != "" {
		app.Use("/static", static.New(reportDir))
	}
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until ctx is cancelled
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		return s.app.Shutdown()
	}
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) analyze(c fiber.Ctx) error {
	var body AnalyzeRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid request body"})
	}

	link := strings.TrimSpace(body.GitHubLink)
	if _, err := repo.ParseURL(link); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid GitHub repository URL"})
	}

	ctx := c.Context()
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	report, err := s.analyzer.Analyze(ctx, link)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid GitHub repository URL"})
		}
		s.logger.Error("analysis failed", "url", link, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "Analysis failed: " + err.Error()})
	}
	return c.JSON(report.Result)
}
