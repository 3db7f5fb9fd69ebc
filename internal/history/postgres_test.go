package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/originality/internal/model"
)

func sampleReport(id string) *model.Report {
	return &model.Report{
		ID:         id,
		Repository: model.RepoMeta{Name: "tool", FullName: "owner/tool-" + id[:8], URL: "https://github.com/owner/tool", CommitHash: "abc123"},
		AnalyzedAt: time.Now().UTC().Truncate(time.Microsecond),
		Score:      model.Score{Originality: 64.2, Verdict: "Partially Original"},
		Result: model.Result{
			OriginalityScore: 64.2,
			Verdict:          "Partially Original",
			SimilarProjects:  []string{"a/b", "c/d"},
			CopiedBlocks:     []model.CopiedBlock{},
			ReportURL:        "http://localhost:8000/static/x.json",
		},
	}
}

func TestRunFromReport(t *testing.T) {
	run := RunFromReport(sampleReport("0123456789abcdef"))
	if run.Repository != "owner/tool-01234567" || run.Verdict != "Partially Original" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.ReportURL != "http://localhost:8000/static/x.json" {
		t.Errorf("expected report url from result, got %s", run.ReportURL)
	}
	if len(run.Result.SimilarProjects) != 2 {
		t.Errorf("expected result payload to be carried, got %+v", run.Result)
	}
}

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	store, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore_SaveListGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := sampleReport(uuid.NewString())
	if err := store.Save(ctx, report); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalityScore != 64.2 || got.Result.SimilarProjects[1] != "c/d" {
		t.Errorf("unexpected run: %+v", got)
	}

	report.Score.Originality = 70
	report.Score.Verdict = "Mostly Original"
	if err := store.Save(ctx, report); err != nil {
		t.Fatalf("resave: %v", err)
	}

	runs, err := store.List(ctx, report.Repository.FullName, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run for repository, got %d", len(runs))
	}
	if runs[0].Verdict != "Mostly Original" {
		t.Errorf("expected overwritten verdict, got %s", runs[0].Verdict)
	}
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), uuid.NewString()); err == nil {
		t.Error("expected error for missing run")
	}
}
