package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/internal/utils"
	"github.com/ShaharSGA/Project/pkg/logger"
)

var platformAgentTypes = map[string]string{
	"LinkedIn":  "linkedin_copywriter",
	"Facebook":  "facebook_copywriter",
	"Instagram": "instagram_copywriter",
}

// AgentTypeForPlatform maps a platform to the copywriter agent that serves it.
func AgentTypeForPlatform(platform string) string {
	if agent, ok := platformAgentTypes[platform]; ok {
		return agent
	}
	return "copywriter"
}

// SubmitRequest is one human rating of a generated post.
type SubmitRequest struct {
	PostID     string                 `json:"post_id"`
	SessionID  string                 `json:"session_id"`
	PostNumber int                    `json:"post_number"`
	Content    string                 `json:"content"`
	Rating     int                    `json:"rating"`
	Category   string                 `json:"category"`
	Text       string                 `json:"text"`
	ClientID   string                 `json:"client_id"`
	AgentType  string                 `json:"agent_type"`
	Persona    string                 `json:"persona"`
	Platform   string                 `json:"platform"`
	Archetype  string                 `json:"archetype"`
	RAGQueries models.QueryLog        `json:"rag_queries"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type SubmitResult struct {
	Record      *models.FeedbackRecord `json:"record"`
	Triage      TriageResult           `json:"triage"`
	Confidence  ConfidenceBreakdown    `json:"confidence"`
	Explanation string                 `json:"explanation"`
	Toast       Toast                  `json:"toast"`

	// Display hints only; Triage has already decided the status.
	ConfidenceLabel string `json:"confidence_label"`
	AutoApproveHint bool   `json:"auto_approve_hint"`
}

type FeedbackService struct {
	store  store.FeedbackStore
	triage *TriageService
	cfg    config.FeedbackConfig
}

func NewFeedbackService(s store.FeedbackStore, triage *TriageService, cfg *config.FeedbackConfig) *FeedbackService {
	svc := &FeedbackService{store: s, triage: triage}
	if cfg != nil {
		svc.cfg = *cfg
	}
	return svc
}

// Submit scores, triages and persists one piece of feedback. Scores are
// computed on the sanitized text so nothing derived carries raw PII.
func (s *FeedbackService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	category, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	agentType := req.AgentType
	if agentType == "" {
		agentType = AgentTypeForPlatform(req.Platform)
	}
	persona := req.Persona
	if persona == "" {
		persona = "Unknown"
	}
	text := utils.SanitizeFeedback(req.Text)

	history, err := s.store.GetRecentFeedback(ctx, req.ClientID, agentType, s.historyDays(), s.cfg.HistoryMinConfidence)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	record := &models.FeedbackRecord{
		PostID:          s.postID(req),
		Content:         preview(req.Content, models.ContentPreview),
		Rating:          req.Rating,
		Category:        category,
		RawTextFeedback: text,
		ClientID:        req.ClientID,
		AgentType:       agentType,
		Persona:         persona,
		Platform:        req.Platform,
		Archetype:       req.Archetype,
		RAGQueriesUsed:  req.RAGQueries.Capped(models.MaxRAGQueries),
		Metadata:        buildMetadata(req),
	}

	breakdown := ScoreConfidence(record, history)
	triage := s.triage.Evaluate(ctx, req.Rating, text, category)

	record.ConfidenceScore = breakdown.Total
	record.ActionabilityScore = triage.ActionabilityScore
	record.Status = triage.Status
	record.LabEntryDate = triage.LabEntryDate

	if _, err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}

	logger.Info().
		Uint("feedback_id", record.ID).
		Str("client_id", record.ClientID).
		Str("status", string(record.Status)).
		Float64("confidence", record.ConfidenceScore).
		Str("reason", triage.Reason).
		Msg("[Feedback] saved")

	return &SubmitResult{
		Record:          record,
		Triage:          triage,
		Confidence:      breakdown,
		Explanation:     ExplainConfidence(breakdown.Context, breakdown.Consistency, breakdown.Specificity),
		Toast:           ToastFor(record.Status),
		ConfidenceLabel: ConfidenceLabel(breakdown.Total),
		AutoApproveHint: ShouldAutoApprove(breakdown.Total),
	}, nil
}

func (s *FeedbackService) validate(req *SubmitRequest) (models.Category, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return "", &models.ValidationError{Field: "client_id", Message: "client_id is required"}
	}
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return "", &models.ValidationError{
			Field:   "rating",
			Message: fmt.Sprintf("rating must be between %d and %d, got %d", models.MinRating, models.MaxRating, req.Rating),
		}
	}
	return models.ParseCategory(req.Category)
}

func (s *FeedbackService) historyDays() int {
	if s.cfg.HistoryDays > 0 {
		return s.cfg.HistoryDays
	}
	return 30
}

// postID composes session, platform, archetype and post number when the
// caller did not supply one.
func (s *FeedbackService) postID(req *SubmitRequest) string {
	if req.PostID != "" {
		return req.PostID
	}
	session := req.SessionID
	if session == "" {
		session = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s_%d", session, req.Platform, req.Archetype, req.PostNumber)
}

func buildMetadata(req *SubmitRequest) models.JSONMap {
	meta := make(models.JSONMap, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.SessionID != "" {
		meta["session_id"] = req.SessionID
	}
	return meta
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (s *FeedbackService) Get(ctx context.Context, id uint) (*models.FeedbackRecord, error) {
	return s.store.Get(ctx, id)
}

// Recent returns the history window used for consistency scoring.
func (s *FeedbackService) Recent(ctx context.Context, clientID, agentType string, days int, minConfidence float64) ([]models.FeedbackRecord, error) {
	if days <= 0 {
		days = s.historyDays()
	}
	return s.store.GetRecentFeedback(ctx, clientID, agentType, days, minConfidence)
}

func (s *FeedbackService) Patterns(ctx context.Context, filter store.PatternFilter) ([]models.FeedbackRecord, error) {
	return s.store.GetPatterns(ctx, filter)
}

func (s *FeedbackService) Stats(ctx context.Context, clientID, agentType string) (*models.FeedbackStats, error) {
	return s.store.Stats(ctx, clientID, agentType)
}
