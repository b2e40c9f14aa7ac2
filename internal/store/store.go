// Package store persists feedback records and answers the filtered queries
// the triage, refinement lab and learning aggregator depend on.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/utils"
	"github.com/ShaharSGA/Project/pkg/logger"
)

const (
	DefaultLabQueueLimit = 100
	DefaultPatternLimit  = 50
)

// FeedbackStore is the persistence contract of the feedback core.
type FeedbackStore interface {
	Save(ctx context.Context, record *models.FeedbackRecord) (uint, error)
	UpdateStatus(ctx context.Context, id uint, update StatusUpdate) error
	Get(ctx context.Context, id uint) (*models.FeedbackRecord, error)
	GetLabQueue(ctx context.Context, clientID, agentType string, limit int) ([]models.FeedbackRecord, error)
	AutoAgeLabItems(ctx context.Context, daysThreshold int) (int64, error)
	GetRecentFeedback(ctx context.Context, clientID, agentType string, days int, minConfidence float64) ([]models.FeedbackRecord, error)
	GetPatterns(ctx context.Context, filter PatternFilter) ([]models.FeedbackRecord, error)
	Stats(ctx context.Context, clientID, agentType string) (*models.FeedbackStats, error)
}

// StatusUpdate describes one status transition.
type StatusUpdate struct {
	// Status is case-insensitive; it is lower-cased before the write.
	Status string
	// Notes replaces the record's notes.
	Notes string
	// Refinement replaces the whole refinement payload when non-nil.
	Refinement *models.RefinementData
	// Expect, when set, makes the write conditional on the current status.
	Expect models.Status
}

// PatternFilter selects the records the learning aggregator compresses.
type PatternFilter struct {
	ClientID      string
	AgentType     string
	Persona       string
	Platform      string
	MinRating     int
	MaxRating     int
	Status        models.Status
	MinConfidence float64
	Limit         int
}

func (f PatternFilter) withDefaults() PatternFilter {
	if f.Status == "" {
		f.Status = models.StatusApproved
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPatternLimit
	}
	return f
}

func (f PatternFilter) matches(r *models.FeedbackRecord) bool {
	if r.ClientID != f.ClientID || r.AgentType != f.AgentType || r.Status != f.Status {
		return false
	}
	if r.ConfidenceScore < f.MinConfidence {
		return false
	}
	if f.Persona != "" && r.Persona != f.Persona {
		return false
	}
	if f.Platform != "" && r.Platform != f.Platform {
		return false
	}
	if f.hasRatingRange() && (r.Rating < f.MinRating || r.Rating > f.MaxRating) {
		return false
	}
	return true
}

func (f PatternFilter) hasRatingRange() bool {
	return f.MinRating > 0 && f.MaxRating > 0
}

// ApprovalHook runs after a record is written as approved. Its error is logged,
// never returned to the caller of UpdateStatus.
type ApprovalHook func(ctx context.Context, record *models.FeedbackRecord) error

type options struct {
	now          func() time.Time
	approvalHook ApprovalHook
}

type Option func(*options)

// WithClock overrides the time source used for timestamps and aging cutoffs.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithApprovalHook(hook ApprovalHook) Option {
	return func(o *options) { o.approvalHook = hook }
}

// buildOptions always hands out UTC: sqlite compares timestamps as text, so
// mixed zones would age and order records by the wrong instant.
func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	clock := o.now
	o.now = func() time.Time { return clock().UTC() }
	return o
}

// AgedNote is the audit note written when an item times out of the lab.
func AgedNote(days int) string {
	return fmt.Sprintf("auto-aged: no refinement after %d days", days)
}

// prepareForSave applies the write-side rules shared by every implementation.
func prepareForSave(record *models.FeedbackRecord, now time.Time) error {
	status, err := models.ParseStatus(string(record.Status))
	if err != nil {
		return err
	}
	record.Status = status
	record.RawTextFeedback = utils.SanitizeFeedback(record.RawTextFeedback)

	if err := record.Validate(); err != nil {
		return err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.LabEntryDate = utcPtr(record.LabEntryDate)
	record.ReviewedAt = utcPtr(record.ReviewedAt)
	if record.Status == models.StatusPendingRefinement && record.LabEntryDate == nil {
		t := now
		record.LabEntryDate = &t
	}
	if record.RAGQueriesUsed == nil {
		record.RAGQueriesUsed = models.StringList{}
	}
	if record.Metadata == nil {
		record.Metadata = models.JSONMap{}
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func runApprovalHook(ctx context.Context, hook ApprovalHook, record *models.FeedbackRecord) {
	if hook == nil || record == nil {
		return
	}
	if err := hook(ctx, record); err != nil {
		logger.Warn().Err(err).Uint("feedback_id", record.ID).Msg("[Store] approval hook failed")
	}
}

func agingCutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
