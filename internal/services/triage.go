package services

import (
	"context"
	"time"

	"github.com/ShaharSGA/Project/internal/models"
)

const (
	reasonStrategicMiss = "Strategic Miss - Mandatory Lab review (overrides all other rules)"
	reasonTopRating     = "Score 5 - Auto-approved (high satisfaction)"
)

// TriageResult is the routing decision for newly submitted feedback.
type TriageResult struct {
	Status             models.Status `json:"status"`
	ActionabilityScore float64       `json:"actionability_score"`
	Reason             string        `json:"reason"`
	LabEntryDate       *time.Time    `json:"lab_entry_date,omitempty"`
	Source             string        `json:"source"`
}

// Toast is the user-facing confirmation for a triage outcome.
type Toast struct {
	Icon    string `json:"icon"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TriageService is the only place a new record's status is decided.
type TriageService struct {
	classifier *ActionabilityClassifier
	metrics    *Metrics
	now        func() time.Time
}

type TriageOption func(*TriageService)

func WithTriageClock(now func() time.Time) TriageOption {
	return func(s *TriageService) { s.now = now }
}

func NewTriageService(classifier *ActionabilityClassifier, metrics *Metrics, opts ...TriageOption) *TriageService {
	s := &TriageService{
		classifier: classifier,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate applies the routing rules in priority order; the first match wins.
func (s *TriageService) Evaluate(ctx context.Context, rating int, text string, category models.Category) TriageResult {
	result := s.evaluate(ctx, rating, text, category)
	s.metrics.RecordTriage(string(result.Status))
	return result
}

func (s *TriageService) evaluate(ctx context.Context, rating int, text string, category models.Category) TriageResult {
	if category == models.CategoryStrategicMiss {
		return s.toLab(0.0, reasonStrategicMiss, SourceRule)
	}

	if rating == models.MaxRating {
		return TriageResult{
			Status:             models.StatusApproved,
			ActionabilityScore: 1.0,
			Reason:             reasonTopRating,
			Source:             SourceRule,
		}
	}

	verdict := s.classifier.Classify(ctx, text, category, rating)
	if verdict.IsActionable {
		return TriageResult{
			Status:             models.StatusApproved,
			ActionabilityScore: verdict.Confidence,
			Reason:             "Actionable - " + verdict.Reason,
			Source:             verdict.Source,
		}
	}
	return s.toLab(verdict.Confidence, "Vague - "+verdict.Reason, verdict.Source)
}

func (s *TriageService) toLab(score float64, reason, source string) TriageResult {
	entered := s.now()
	return TriageResult{
		Status:             models.StatusPendingRefinement,
		ActionabilityScore: score,
		Reason:             reason,
		LabEntryDate:       &entered,
		Source:             source,
	}
}

// ToastFor returns the confirmation shown after submission.
func ToastFor(status models.Status) Toast {
	switch status {
	case models.StatusApproved:
		return Toast{Icon: "✅", Title: "הפידבק נשמר!", Message: "התובנות שלך נוספו למערכת הלמידה"}
	case models.StatusPendingRefinement:
		return Toast{Icon: "⚗️", Title: "הועבר למעבדת השיפור", Message: "נשמח לעזרתך בהבהרת הפידבק (אופציונלי)"}
	default:
		return Toast{Icon: "ℹ️", Title: "הפידבק נשמר", Message: ""}
	}
}
