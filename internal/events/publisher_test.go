package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/originality/internal/model"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

func sampleReport() *model.Report {
	return &model.Report{
		ID:         "run-1",
		Repository: model.RepoMeta{Name: "tool", FullName: "owner/tool", URL: "https://github.com/owner/tool"},
		Score:      model.Score{Originality: 81.5, Verdict: "Original"},
		Result:     model.Result{SimilarProjects: []string{"a/b"}, ReportURL: "http://localhost:8000/static/r.json"},
	}
}

func TestPublisher_Publish(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan AnalysisCompleted, 1)
	sub, err := Subscribe(nc, "", func(ctx context.Context, ev AnalysisCompleted) {
		ch <- ev
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	publisher := NewPublisher(nc, "", nil)
	if err := publisher.Publish(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Repository != "owner/tool" || ev.Verdict != "Original" || ev.OriginalityScore != 81.5 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.ReportURL != "http://localhost:8000/static/r.json" {
			t.Errorf("unexpected report url %s", ev.ReportURL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublisher_PropagatesTraceContext(t *testing.T) {
	_, nc := startTestNATS(t)

	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	provider := sdktrace.NewTracerProvider()
	ctx, span := provider.Tracer("test").Start(context.Background(), "analysis")
	defer span.End()

	ch := make(chan trace.SpanContext, 1)
	sub, err := Subscribe(nc, "custom.subject", func(ctx context.Context, ev AnalysisCompleted) {
		ch <- trace.SpanContextFromContext(ctx)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := NewPublisher(nc, "custom.subject", nil).Publish(ctx, sampleReport()); err != nil {
		t.Fatal(err)
	}

	select {
	case sc := <-ch:
		if sc.TraceID() != span.SpanContext().TraceID() {
			t.Errorf("expected trace id %s, got %s", span.SpanContext().TraceID(), sc.TraceID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublisher_Disabled(t *testing.T) {
	publisher, err := Connect(model.EventsConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if publisher.Enabled() {
		t.Error("expected disabled publisher without a URL")
	}
	if err := publisher.Publish(context.Background(), sampleReport()); err != nil {
		t.Errorf("expected disabled publish to be a no-op, got %v", err)
	}
	publisher.Close()

	var nilPublisher *Publisher
	if err := nilPublisher.Publish(context.Background(), sampleReport()); err != nil {
		t.Errorf("expected nil publisher to be a no-op, got %v", err)
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*headerCarrier)(msg)

	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
}
