// Package credibility scores a repository's commit pattern. The score is a
// heuristic: bursts of commits on a single day and very short histories
// lower it, but neither proves anything about authorship.
package credibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/originality/internal/model"
)

// Tuning constants
const (
	SpikeThreshold = 10 // A day with more commits than this is a spike
	SpikePenalty   = 5  // Points per spike day
	MinCommits     = 10 // Histories shorter than this are penalized
	ShortPenalty   = 2  // Points per missing commit below MinCommits
	NoHistoryScore = 80.0
	ErrorScore     = 0.0
	Formula        = "clamp(100 - spikes*5 - max(0, 10-total)*2, 0, 100)"
	dayLayout      = "2006-01-02"
)

// CommitSource lists the author dates of a repository's commits
type CommitSource interface {
	CommitDates(ctx context.Context) ([]time.Time, error)
}

// Analyzer scores commit histories
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Analyze fetches the history from source and scores it. A retrieval
// error scores 0; an empty history scores 80.
func (a *Analyzer) Analyze(ctx context.Context, source CommitSource, repo string) model.Credibility {
	dates, err := source.CommitDates(ctx)
	if err != nil {
		a.logger.Warn("commit history unavailable", "repo", repo, "error", err)
		return model.Credibility{Score: ErrorScore, Formula: Formula, Error: err.Error()}
	}

	res := Score(dates)
	a.logger.Info("credibility computed", "repo", repo, "score", res.Score, "commits", res.TotalCommits, "spike_days", res.SpikeDays)
	return res
}

// Score applies the formula to a list of commit dates. Days are calendar
// days in UTC.
func Score(dates []time.Time) model.Credibility {
	if len(dates) == 0 {
		return model.Credibility{Score: NoHistoryScore, Formula: Formula}
	}

	perDay := make(map[string]int)
	for _, d := range dates {
		perDay[d.UTC().Format(dayLayout)]++
	}

	spikes := make(map[string]int)
	for day, n := range perDay {
		if n > SpikeThreshold {
			spikes[day] = n
		}
	}

	short := MinCommits - len(dates)
	if short < 0 {
		short = 0
	}
	score := 100.0 - float64(len(spikes)*SpikePenalty) - float64(short*ShortPenalty)
	if score < 0 {
		score = 0
	}

	return model.Credibility{
		Score:        score,
		TotalCommits: len(dates),
		SpikeDays:    len(spikes),
		Spikes:       spikes,
		Formula:      Formula,
	}
}
