package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/originality/internal/model"
)

// Signal weights. They sum to 1.
const (
	WeightCode        = 0.5
	WeightIdea        = 0.3
	WeightCredibility = 0.2
)

// Formula documents the final combination
const Formula = "clamp(100*(1-code_similarity)*0.5 + 100*(1-idea_similarity)*0.3 + credibility*0.2, 0, 100)"

// Band maps scores at or above Min to a verdict
type Band struct {
	Min         float64
	Verdict     string
	Description string
}

// Bands are checked in descending order; the last band catches everything else
var Bands = []Band{
	{90, "Highly Original", "The project shows exceptional originality across code, concept, and execution"},
	{80, "Original", "The project demonstrates significant originality with minor similarities to existing work"},
	{70, "Mostly Original", "The project contains original elements but shows influence from existing work"},
	{60, "Partially Original", "The project has some original aspects but borrows heavily from existing work"},
	{45, "Inspired", "The project is heavily inspired by existing work with some modifications"},
	{math.Inf(-1), "Derivative", "The project closely resembles existing work with minimal original contribution"},
}

// SignalInputs carries the three signals. A Failed flag means the producing
// component failed upstream and its fallback value is used instead.
type SignalInputs struct {
	CodeSimilarity    float64 // 0-1
	IdeaSimilarity    float64 // 0-1
	Credibility       float64 // 0-100
	CodeFailed        bool
	IdeaFailed        bool
	CredibilityFailed bool
}

// Scorer combines signals into the originality score
type Scorer struct {
	fallbacks model.FallbackConfig
}

// NewScorer creates a new scorer
func NewScorer(fallbacks model.FallbackConfig) *Scorer {
	return &Scorer{fallbacks: fallbacks}
}

// Classify returns the band for a score
func Classify(score float64) Band {
	for _, b := range Bands {
		if score >= b.Min {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// Calculate computes the originality score with one signal per input. It
// does no I/O. A non-finite result falls back to the configured neutral
// score and verdict.
func (s *Scorer) Calculate(in SignalInputs) model.Score {
	in.CodeFailed = in.CodeFailed || !finite(in.CodeSimilarity)
	in.IdeaFailed = in.IdeaFailed || !finite(in.IdeaSimilarity)
	in.CredibilityFailed = in.CredibilityFailed || !finite(in.Credibility)

	var signals []model.Signal

	codeScore, codeSignal := s.codeComponent(in)
	signals = append(signals, codeSignal)

	ideaScore, ideaSignal := s.ideaComponent(in)
	signals = append(signals, ideaSignal)

	credScore, credSignal := s.credibilityComponent(in)
	signals = append(signals, credSignal)

	for _, f := range []struct {
		failed bool
		name   string
		value  float64
	}{
		{in.CodeFailed, "code_similarity", s.fallbacks.CodeScore},
		{in.IdeaFailed, "idea_similarity", s.fallbacks.IdeaScore},
		{in.CredibilityFailed, "contribution_credibility", s.fallbacks.Credibility},
	} {
		if f.failed {
			signals = append(signals, fallbackSignal(f.name, f.value))
		}
	}

	originality := codeScore*WeightCode + ideaScore*WeightIdea + credScore*WeightCredibility
	if math.IsNaN(originality) || math.IsInf(originality, 0) {
		signals = append(signals, fallbackSignal("originality", s.fallbacks.Originality))
		return s.Fallback(signals)
	}
	originality = clamp(originality, 0, 100)

	band := Classify(originality)
	return model.Score{
		Originality: originality,
		Verdict:     band.Verdict,
		Description: band.Description,
		Signals:     signals,
	}
}

// Fallback returns the neutral score used when scoring itself failed
func (s *Scorer) Fallback(signals []model.Signal) model.Score {
	verdict := s.fallbacks.Verdict
	description := ""
	for _, b := range Bands {
		if b.Verdict == verdict {
			description = b.Description
		}
	}
	if signals == nil {
		signals = []model.Signal{fallbackSignal("originality", s.fallbacks.Originality)}
	}
	return model.Score{
		Originality: s.fallbacks.Originality,
		Verdict:     verdict,
		Description: description,
		Signals:     signals,
	}
}

// codeComponent maps code similarity to its 0-100 originality component
func (s *Scorer) codeComponent(in SignalInputs) (float64, model.Signal) {
	if in.CodeFailed {
		return s.fallbacks.CodeScore, model.Signal{
			Type:        model.SignalCodeSimilarity,
			Severity:    model.SeverityWarning,
			Description: "Code similarity unavailable, neutral value used",
			Data: map[string]interface{}{
				"component": s.fallbacks.CodeScore,
				"weight":    WeightCode,
			},
		}
	}

	c := clamp(in.CodeSimilarity, 0, 1)
	component := 100 * (1 - c)

	severity := model.SeverityInfo
	if c >= 0.7 {
		severity = model.SeverityCritical
	} else if c >= 0.4 {
		severity = model.SeverityWarning
	}

	return component, model.Signal{
		Type:        model.SignalCodeSimilarity,
		Severity:    severity,
		Description: fmt.Sprintf("Code similarity: %.2f", c),
		Data: map[string]interface{}{
			"similarity": c,
			"component":  component,
			"weight":     WeightCode,
			"formula":    "100 * (1 - code_similarity)",
		},
	}
}

// ideaComponent maps idea similarity to its 0-100 originality component
func (s *Scorer) ideaComponent(in SignalInputs) (float64, model.Signal) {
	if in.IdeaFailed {
		return s.fallbacks.IdeaScore, model.Signal{
			Type:        model.SignalIdeaSimilarity,
			Severity:    model.SeverityWarning,
			Description: "Idea similarity unavailable, neutral value used",
			Data: map[string]interface{}{
				"component": s.fallbacks.IdeaScore,
				"weight":    WeightIdea,
			},
		}
	}

	i := clamp(in.IdeaSimilarity, 0, 1)
	component := 100 * (1 - i)

	severity := model.SeverityInfo
	if i >= 0.8 {
		severity = model.SeverityCritical
	} else if i >= 0.6 {
		severity = model.SeverityWarning
	}

	return component, model.Signal{
		Type:        model.SignalIdeaSimilarity,
		Severity:    severity,
		Description: fmt.Sprintf("Idea similarity: %.2f", i),
		Data: map[string]interface{}{
			"similarity": i,
			"component":  component,
			"weight":     WeightIdea,
			"formula":    "100 * (1 - idea_similarity)",
		},
	}
}

// credibilityComponent passes credibility through, clamped to 0-100
func (s *Scorer) credibilityComponent(in SignalInputs) (float64, model.Signal) {
	if in.CredibilityFailed {
		return s.fallbacks.Credibility, model.Signal{
			Type:        model.SignalCredibility,
			Severity:    model.SeverityWarning,
			Description: "Contribution credibility unavailable, neutral value used",
			Data: map[string]interface{}{
				"component": s.fallbacks.Credibility,
				"weight":    WeightCredibility,
			},
		}
	}

	cr := clamp(in.Credibility, 0, 100)

	severity := model.SeverityInfo
	if cr < 30 {
		severity = model.SeverityCritical
	} else if cr < 60 {
		severity = model.SeverityWarning
	}

	return cr, model.Signal{
		Type:        model.SignalCredibility,
		Severity:    severity,
		Description: fmt.Sprintf("Contribution credibility: %.0f/100 (heuristic)", cr),
		Data: map[string]interface{}{
			"credibility": cr,
			"component":   cr,
			"weight":      WeightCredibility,
		},
	}
}

func fallbackSignal(name string, value float64) model.Signal {
	return model.Signal{
		Type:        model.SignalFallbackApplied,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Fallback applied for %s", name),
		Data: map[string]interface{}{
			"signal": name,
			"value":  value,
		},
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
