// Package events publishes analysis notifications over NATS with OpenTelemetry
// trace propagation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/ppiankov/originality/internal/model"
)

// DefaultSubject is the subject analysis-completed events are published on
const DefaultSubject = "originality.analysis.completed"

// AnalysisCompleted is the event payload
type AnalysisCompleted struct {
	ID               string    `json:"id"`
	Repository       string    `json:"repository"`
	URL              string    `json:"url"`
	CommitHash       string    `json:"commit_hash,omitempty"`
	OriginalityScore float64   `json:"originality_score"`
	Verdict          string    `json:"verdict"`
	SimilarProjects  []string  `json:"similar_projects"`
	ReportURL        string    `json:"report_url"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// NewAnalysisCompleted builds the event for a finished report
func NewAnalysisCompleted(report *model.Report) AnalysisCompleted {
	return AnalysisCompleted{
		ID:               report.ID,
		Repository:       report.Repository.FullName,
		URL:              report.Repository.URL,
		CommitHash:       report.Repository.CommitHash,
		OriginalityScore: report.Score.Originality,
		Verdict:          report.Score.Verdict,
		SimilarProjects:  report.Result.SimilarProjects,
		ReportURL:        report.Result.ReportURL,
		AnalyzedAt:       report.AnalyzedAt,
	}
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher sends analysis events. A nil or unconnected publisher drops
// events silently.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials NATS. An empty URL yields a disabled publisher.
func Connect(cfg model.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NATSURL == "" {
		return &Publisher{logger: logger}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("originality"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewPublisher(nc, cfg.Subject, logger), nil
}

// NewPublisher wraps an existing connection
func NewPublisher(nc *nats.Conn, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject, logger: logger}
}

// Enabled reports whether events are sent
func (p *Publisher) Enabled() bool {
	return p != nil && p.nc != nil
}

// Publish sends the analysis-completed event for a report
func (p *Publisher) Publish(ctx context.Context, report *model.Report) error {
	if !p.Enabled() {
		return nil
	}

	data, err := json.Marshal(NewAnalysisCompleted(report))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.logger.Debug("published analysis event", "subject", p.subject, "repo", report.Repository.FullName)
	return nil
}

// Subscribe registers a handler for analysis events. Malformed messages are
// dropped.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, AnalysisCompleted)) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev AnalysisCompleted
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, ev)
	})
}

// Close drains the connection
func (p *Publisher) Close() {
	if p.Enabled() {
		_ = p.nc.Drain()
	}
}
