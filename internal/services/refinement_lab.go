package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/internal/utils"
	"github.com/ShaharSGA/Project/pkg/logger"
)

const (
	DefaultLabAgingDays = 7
	MaxExplanationChars = 100

	refinedNotePrefixRunes = 50
	skippedNote            = "skipped refinement — saved original vague feedback"
	discardedNote          = "Discarded - not useful"
)

// RefinementPrompt is the micro-interview shown for one feedback category.
// MaxWords is advisory guidance for the free-text answer and is not enforced.
type RefinementPrompt struct {
	Category         models.Category `json:"category"`
	Question         string          `json:"question"`
	Options          []string        `json:"options"`
	FollowupQuestion string          `json:"followup_question,omitempty"`
	FollowupOptions  []string        `json:"followup_options"`
	TextPrompt       string          `json:"text_prompt"`
	MaxWords         int             `json:"max_words,omitempty"`
}

func (p *RefinementPrompt) HasFollowup() bool { return len(p.FollowupOptions) > 0 }

var refinementPrompts = map[models.Category]RefinementPrompt{
	models.CategoryTone: {
		Question: "❓ איזה חלק הרגיש לא נכון?",
		Options: []string{
			"שורת הפתיחה",
			"משפטי המעבר",
			"קריאה לפעולה (CTA)",
			"האווירה הכללית",
		},
		FollowupQuestion: "❓ מה הבעיה?",
		FollowupOptions: []string{
			"מכירתי מדי",
			"פורמלי מדי",
			"חסר חום/אישיות",
			"ארכיטייפ לא נכון (Head/Heart/Hands)",
			"לא נשמע כמו דנה",
		},
		TextPrompt: "💬 הסבר קצר (עד 10 מילים):",
		MaxWords:   10,
	},
	models.CategoryStructure: {
		Question: "❓ מה חסר או לא תקין במבנה?",
		Options: []string{
			"חסר הוק פותח חזק",
			"אין CTA ברור",
			"חסרה הצעת ערך מרכזית",
			"סדר לא הגיוני (פותח->גוף->CTA)",
			"חסרה סגירה/מסקנה",
		},
		TextPrompt: "💬 מה צריך להיות במקום? (עד 10 מילים):",
		MaxWords:   10,
	},
	models.CategoryWords: {
		Question:   "❓ אילו מילים או ביטויים בעייתיים?",
		TextPrompt: "💬 רשמי את המילה/ביטוי הבעייתי ואת ההחלפה המוצעת (עד 15 מילים):",
		MaxWords:   15,
	},
	models.CategoryLength: {
		Question: "❓ מה הבעיה באורך?",
		Options: []string{
			"ארוך מדי לפלטפורמה",
			"קצר מדי - חסרה פיתוח",
			"לא מתאים לארכיטייפ (Heart=קצר, Head=ארוך)",
		},
		TextPrompt: "💬 איזה אורך מתאים? (למשל: '50-60 מילים'):",
	},
	models.CategoryPlatformFit: {
		Question: "❓ למה הפוסט לא מתאים לפלטפורמה?",
		Options: []string{
			"לא מתאים לטון של הפלטפורמה",
			"אורך לא נכון לפלטפורמה",
			"מבנה לא מתאים (למשל: לינקדאין צריך insight)",
			"שפה פורמלית/לא פורמלית מדי",
		},
		TextPrompt: "💬 מה צריך להשתנות? (עד 10 מילים):",
		MaxWords:   10,
	},
	models.CategoryStrategicMiss: {
		Question: "⚠️ איזה כלל אסטרטגי בסיסי נשבר?",
		Options: []string{
			"התאמה שגויה לפלטפורמה (פוסט נשמע כמו פלטפורמה אחרת)",
			"ארכיטייפ שגוי (Head במקום Heart או להיפך)",
			"חסרה תועלת מרכזית/ברורה",
			"טון שגוי לחלוטין לקהל יעד",
			"לא מתיישר עם ההצעה/המבצע",
			"לא משקף את DNA של הלקוח",
		},
		TextPrompt: "💬 מה היה צריך להיות במקום? (עד 15 מילים):",
		MaxWords:   15,
	},
	models.CategoryOther: {
		Question:   "❓ מה הבעיה?",
		TextPrompt: "💬 הסבר את הבעיה (עד 20 מילים):",
		MaxWords:   20,
	},
}

// PromptFor returns a copy of the category's prompt, falling back to Other
// for unknown categories.
func PromptFor(category models.Category) RefinementPrompt {
	p, ok := refinementPrompts[category]
	if !ok {
		p = refinementPrompts[models.CategoryOther]
		category = models.CategoryOther
	}
	p.Category = category
	p.Options = append([]string{}, p.Options...)
	p.FollowupOptions = append([]string{}, p.FollowupOptions...)
	return p
}

// RefineInput is the reviewer's answer to a refinement prompt.
type RefineInput struct {
	SelectedOptions  []string `json:"selected_options"`
	SelectedFollowup []string `json:"selected_followup"`
	ShortExplanation string   `json:"short_explanation"`
}

// BacklogItem summarizes a queued record behind the current one.
type BacklogItem struct {
	ID        uint            `json:"id"`
	Category  models.Category `json:"category"`
	Rating    int             `json:"rating"`
	CreatedAt time.Time       `json:"created_at"`
}

// LabView presents exactly one current item; everything else is backlog.
type LabView struct {
	Current      *models.FeedbackRecord `json:"current"`
	Prompt       *RefinementPrompt      `json:"prompt,omitempty"`
	Backlog      []BacklogItem          `json:"backlog"`
	BacklogCount int                    `json:"backlog_count"`
	AgedCount    int64                  `json:"aged_count"`
}

// LabService drives records out of pending_refinement. Every transition is
// conditional on the record still being in the lab.
type LabService struct {
	store      store.FeedbackStore
	agingDays  int
	queueLimit int
	metrics    *Metrics
	now        func() time.Time
}

type LabOption func(*LabService)

func WithLabClock(now func() time.Time) LabOption {
	return func(s *LabService) { s.now = now }
}

func NewLabService(s store.FeedbackStore, cfg *config.FeedbackConfig, metrics *Metrics, opts ...LabOption) *LabService {
	svc := &LabService{
		store:      s,
		agingDays:  DefaultLabAgingDays,
		queueLimit: store.DefaultLabQueueLimit,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if cfg != nil {
		if cfg.LabAgingDays > 0 {
			svc.agingDays = cfg.LabAgingDays
		}
		if cfg.LabQueueLimit > 0 {
			svc.queueLimit = cfg.LabQueueLimit
		}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *LabService) AgingDays() int { return s.agingDays }

// Queue ages stale items first, then returns the oldest waiting record as
// current. An aging failure is logged and does not block the queue.
func (s *LabService) Queue(ctx context.Context, clientID, agentType string) (*LabView, error) {
	aged, err := s.AutoAge(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("[Lab] auto-aging failed")
	}

	records, err := s.store.GetLabQueue(ctx, clientID, agentType, s.queueLimit)
	if err != nil {
		return nil, err
	}

	view := &LabView{Backlog: []BacklogItem{}, AgedCount: aged}
	if len(records) == 0 {
		return view, nil
	}

	current := records[0]
	prompt := PromptFor(current.Category)
	view.Current = &current
	view.Prompt = &prompt
	for _, r := range records[1:] {
		view.Backlog = append(view.Backlog, BacklogItem{
			ID:        r.ID,
			Category:  r.Category,
			Rating:    r.Rating,
			CreatedAt: r.CreatedAt,
		})
	}
	view.BacklogCount = len(view.Backlog)
	return view, nil
}

// SaveAndTrain promotes a lab record to approved with its refinement payload.
func (s *LabService) SaveAndTrain(ctx context.Context, id uint, input RefineInput) (*models.FeedbackRecord, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.InLab() {
		return nil, fmt.Errorf("feedback %d is %s: %w", id, record.Status, models.ErrStatusConflict)
	}

	prompt := PromptFor(record.Category)
	if err := checkSelection("selected_options", input.SelectedOptions, prompt.Options); err != nil {
		return nil, err
	}
	if err := checkSelection("selected_followup", input.SelectedFollowup, prompt.FollowupOptions); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(input.ShortExplanation); n > MaxExplanationChars {
		return nil, &models.ValidationError{
			Field:   "short_explanation",
			Message: fmt.Sprintf("at most %d characters, got %d", MaxExplanationChars, n),
		}
	}

	explanation := utils.SanitizeFeedback(input.ShortExplanation)
	refinement := &models.RefinementData{
		Category:         record.Category,
		SelectedOptions:  nonNil(input.SelectedOptions),
		SelectedFollowup: nonNil(input.SelectedFollowup),
		ShortExplanation: explanation,
		RefinedAt:        s.now(),
	}

	err = s.store.UpdateStatus(ctx, id, store.StatusUpdate{
		Status:     string(models.StatusApproved),
		Notes:      "Refined in Lab: " + preview(explanation, refinedNotePrefixRunes),
		Refinement: refinement,
		Expect:     models.StatusPendingRefinement,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLabTransition("refine")
	logger.Info().Uint("feedback_id", id).Int("options", len(refinement.SelectedOptions)).Msg("[Lab] refined")

	return s.store.Get(ctx, id)
}

// Skip keeps the original feedback as skipped. It never enters the corpus.
func (s *LabService) Skip(ctx context.Context, id uint) error {
	return s.dispose(ctx, id, models.StatusSkipped, skippedNote, "skip")
}

// Discard marks the feedback as not useful.
func (s *LabService) Discard(ctx context.Context, id uint) error {
	return s.dispose(ctx, id, models.StatusDiscarded, discardedNote, "discard")
}

func (s *LabService) dispose(ctx context.Context, id uint, status models.Status, note, action string) error {
	err := s.store.UpdateStatus(ctx, id, store.StatusUpdate{
		Status: string(status),
		Notes:  note,
		Expect: models.StatusPendingRefinement,
	})
	if err != nil {
		return err
	}
	s.metrics.RecordLabTransition(action)
	logger.Info().Uint("feedback_id", id).Str("status", string(status)).Msg("[Lab] disposed")
	return nil
}

// AutoAge moves items older than the aging threshold to skipped.
func (s *LabService) AutoAge(ctx context.Context) (int64, error) {
	n, err := s.store.AutoAgeLabItems(ctx, s.agingDays)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordAged(n)
		logger.Info().Int64("count", n).Int("days", s.agingDays).Msg("[Lab] auto-aged items")
	}
	return n, nil
}

func checkSelection(field string, selected, allowed []string) error {
	valid := make(map[string]bool, len(allowed))
	for _, opt := range allowed {
		valid[opt] = true
	}
	for _, opt := range selected {
		if !valid[opt] {
			return &models.ValidationError{Field: field, Message: fmt.Sprintf("unknown option %q", opt)}
		}
	}
	return nil
}

func nonNil(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}
