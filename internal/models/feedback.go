package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the routing state of a feedback record. Canonically lower-case at rest.
type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusFlagged           Status = "flagged"
	StatusPendingRefinement Status = "pending_refinement"
	StatusSkipped           Status = "skipped"
	StatusDiscarded         Status = "discarded"
)

var validStatuses = map[Status]bool{
	StatusPending:           true,
	StatusApproved:          true,
	StatusRejected:          true,
	StatusFlagged:           true,
	StatusPendingRefinement: true,
	StatusSkipped:           true,
	StatusDiscarded:         true,
}

// ParseStatus normalizes s to lower case and checks it against the fixed status set.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", s)}
	}
	return st, nil
}

func (s Status) Valid() bool { return validStatuses[s] }

// Category is the feedback category chosen by the reviewer. Values are exact strings.
type Category string

const (
	CategoryTone          Category = "Tone"
	CategoryLength        Category = "Length"
	CategoryWords         Category = "Words"
	CategoryStructure     Category = "Structure"
	CategoryPlatformFit   Category = "Platform_Fit"
	CategoryStrategicMiss Category = "Strategic Miss / DNA Mismatch"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTone,
	CategoryLength,
	CategoryWords,
	CategoryStructure,
	CategoryPlatformFit,
	CategoryStrategicMiss,
	CategoryOther,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "category", Message: fmt.Sprintf("invalid category %q", s)}
}

const (
	MinRating       = 1
	MaxRating       = 5
	MaxRAGQueries   = 10
	ContentPreview  = 200
	MaxFeedbackText = 1000
)

// FeedbackRecord is a single piece of human feedback on a generated post.
type FeedbackRecord struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	PostID             string          `gorm:"size:255;index" json:"post_id"`
	Content            string          `gorm:"type:text" json:"content"`
	Rating             int             `gorm:"not null" json:"rating"`
	Category           Category        `gorm:"size:64;not null" json:"category"`
	RawTextFeedback    string          `gorm:"type:text" json:"raw_text_feedback"`
	ClientID           string          `gorm:"size:100;index:idx_feedback_client_agent" json:"client_id"`
	AgentType          string          `gorm:"size:100;index:idx_feedback_client_agent" json:"agent_type"`
	Persona            string          `gorm:"size:100" json:"persona"`
	Platform           string          `gorm:"size:50" json:"platform"`
	Archetype          string          `gorm:"size:50" json:"archetype"`
	RAGQueriesUsed     StringList      `gorm:"type:text" json:"rag_queries_used"`
	Metadata           JSONMap         `gorm:"type:text" json:"metadata"`
	ConfidenceScore    float64         `gorm:"default:0" json:"confidence_score"`
	ActionabilityScore float64         `gorm:"default:0" json:"actionability_score"`
	Status             Status          `gorm:"size:32;index;not null" json:"status"`
	RefinementData     *RefinementData `gorm:"type:text" json:"refinement_data,omitempty"`
	LabEntryDate       *time.Time      `gorm:"index" json:"lab_entry_date,omitempty"`
	Notes              string          `gorm:"type:text" json:"notes"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	ReviewedAt         *time.Time      `json:"reviewed_at,omitempty"`
}

func (FeedbackRecord) TableName() string { return "feedback" }

// InLab reports whether the record is currently waiting in the refinement queue.
func (f *FeedbackRecord) InLab() bool { return f.Status == StatusPendingRefinement }

// Validate checks the record invariants that must hold before it is persisted.
func (f *FeedbackRecord) Validate() error {
	if f.Rating < MinRating || f.Rating > MaxRating {
		return &ValidationError{Field: "rating", Message: fmt.Sprintf("rating must be between %d and %d, got %d", MinRating, MaxRating, f.Rating)}
	}
	if _, err := ParseCategory(string(f.Category)); err != nil {
		return err
	}
	if !f.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", f.Status)}
	}
	if f.ConfidenceScore < 0 || f.ConfidenceScore > 1 {
		return &ValidationError{Field: "confidence_score", Message: "must be within [0,1]"}
	}
	if f.ActionabilityScore < 0 || f.ActionabilityScore > 1 {
		return &ValidationError{Field: "actionability_score", Message: "must be within [0,1]"}
	}
	if len(f.RAGQueriesUsed) > MaxRAGQueries {
		return &ValidationError{Field: "rag_queries_used", Message: fmt.Sprintf("at most %d queries", MaxRAGQueries)}
	}
	return nil
}

// RefinementData is the structured answer collected by the Refinement Lab.
type RefinementData struct {
	Category         Category  `json:"category"`
	SelectedOptions  []string  `json:"selected_options"`
	SelectedFollowup []string  `json:"selected_followup"`
	ShortExplanation string    `json:"short_explanation"`
	RefinedAt        time.Time `json:"refined_at"`
}

func (r RefinementData) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RefinementData) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		return err
	}
	return json.Unmarshal(b, r)
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(b, (*[]string)(l))
}

// JSONMap is free-form metadata stored as a JSON object in a text column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, (*map[string]interface{})(m))
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}

// QueryLog is the list of retrieval queries a generation used. The pipeline
// reports it either as a JSON array of strings or as an object keyed by query;
// both decode to the same ordered list.
type QueryLog struct {
	Queries []string
}

var errQueryLogShape = errors.New("query log must be an array of strings or an object")

func (q *QueryLog) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		q.Queries = nil
		return nil
	case strings.HasPrefix(trimmed, "["):
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		q.Queries = list
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(data, &keyed); err != nil {
			return err
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		q.Queries = keys
		return nil
	default:
		return errQueryLogShape
	}
}

func (q QueryLog) MarshalJSON() ([]byte, error) {
	if q.Queries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q.Queries)
}

// Capped returns at most n queries.
func (q QueryLog) Capped(n int) StringList {
	if len(q.Queries) <= n {
		return StringList(append([]string(nil), q.Queries...))
	}
	return StringList(append([]string(nil), q.Queries[:n]...))
}

// FeedbackStats summarizes feedback for one client.
type FeedbackStats struct {
	Total         int64            `json:"total"`
	ByStatus      map[Status]int64 `json:"by_status"`
	AvgConfidence float64          `json:"avg_confidence"`
	AvgRating     float64          `json:"avg_rating"`
}
