package services

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ShaharSGA/Project/internal/models"
)

const (
	contextWeight     = 0.3
	consistencyWeight = 0.4
	specificityWeight = 0.3

	emptyContextScore       = 0.2
	neutralConsistencyScore = 0.7

	// AutoApproveThreshold is informational only. Triage alone assigns status.
	AutoApproveThreshold = 0.8
)

var (
	hebrewSpecificityKeywords = []string{
		"מילה", "ביטוי", "משפט", "פתיחה", "סגירה",
		"רשמי", "קליל", "ארוך", "קצר", "טון", "סגנון",
		"מבנה", "תוכן", "סיום", "התחלה", "אורך", "קצרה",
	}
	englishSpecificityKeywords = []string{
		"word", "phrase", "sentence", "opening", "closing",
		"formal", "casual", "long", "short", "tone", "style",
		"structure", "content", "ending", "beginning", "length",
	}
)

// ConfidenceBreakdown keeps the sub-scores next to the blended value for auditing.
type ConfidenceBreakdown struct {
	Context        float64 `json:"context"`
	Consistency    float64 `json:"consistency"`
	Specificity    float64 `json:"specificity"`
	Total          float64 `json:"total"`
	HistoryMatches int     `json:"history_matches"`
}

// ContextScore rewards feedback that carries a concrete category, enough text
// and a decisive rating.
func ContextScore(fb *models.FeedbackRecord) float64 {
	text := fb.RawTextFeedback
	if strings.TrimSpace(text) == "" {
		return emptyContextScore
	}

	score := 0.5
	if fb.Category != models.CategoryOther {
		score += 0.2
	}
	if utf8.RuneCountInString(text) > 20 {
		score += 0.2
	}
	if fb.Rating == 1 || fb.Rating == 5 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

// ConsistencyScore compares the rating with earlier ratings for the same
// persona and platform.
func ConsistencyScore(fb *models.FeedbackRecord, history []models.FeedbackRecord) float64 {
	score, _ := consistency(fb, history)
	return score
}

func consistency(fb *models.FeedbackRecord, history []models.FeedbackRecord) (float64, int) {
	var sum, n int
	for i := range history {
		h := &history[i]
		if h.Persona == fb.Persona && h.Platform == fb.Platform {
			sum += h.Rating
			n++
		}
	}
	if n == 0 {
		return neutralConsistencyScore, 0
	}

	avg := float64(sum) / float64(n)
	diff := math.Abs(float64(fb.Rating) - avg)
	switch {
	case diff <= 1:
		return 1.0, n
	case diff <= 2:
		return 0.6, n
	default:
		return 0.3, n
	}
}

// SpecificityScore counts hits from the bilingual domain keyword lists.
func SpecificityScore(fb *models.FeedbackRecord) float64 {
	return specificityForMatches(countKeywordMatches(fb.RawTextFeedback))
}

func countKeywordMatches(text string) int {
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range hebrewSpecificityKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	for _, kw := range englishSpecificityKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	return matches
}

func specificityForMatches(matches int) float64 {
	switch {
	case matches >= 2:
		return 1.0
	case matches == 1:
		return 0.7
	default:
		return 0.4
	}
}

// BlendConfidence combines the three sub-scores and clamps the result to [0,1].
func BlendConfidence(context, consistency, specificity float64) float64 {
	total := context*contextWeight + consistency*consistencyWeight + specificity*specificityWeight
	return clamp01(total)
}

// CalculateConfidence returns the blended confidence of fb against the
// submitter's earlier feedback in history.
func CalculateConfidence(fb *models.FeedbackRecord, history []models.FeedbackRecord) float64 {
	return ScoreConfidence(fb, history).Total
}

// ScoreConfidence computes every sub-score for fb against history.
func ScoreConfidence(fb *models.FeedbackRecord, history []models.FeedbackRecord) ConfidenceBreakdown {
	ctxScore := ContextScore(fb)
	consScore, matches := consistency(fb, history)
	specScore := SpecificityScore(fb)
	return ConfidenceBreakdown{
		Context:        ctxScore,
		Consistency:    consScore,
		Specificity:    specScore,
		Total:          BlendConfidence(ctxScore, consScore, specScore),
		HistoryMatches: matches,
	}
}

// ExplainConfidence renders the breakdown for reviewers.
func ExplainConfidence(context, consistency, specificity float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ציון אמינות: %.2f\n\n", BlendConfidence(context, consistency, specificity))

	switch {
	case context >= 0.9:
		b.WriteString("✅ הקשר: מצוין - משוב מפורט עם קטגוריה ברורה\n")
	case context >= 0.7:
		b.WriteString("✓ הקשר: טוב - משוב עם פרטים מספיקים\n")
	case context <= 0.3:
		b.WriteString("⚠️ הקשר: חלש מאוד - משוב ריק או חסר פרטים\n")
	default:
		b.WriteString("⚠️ הקשר: חלש - חסרים פרטים\n")
	}

	switch {
	case consistency >= 0.9:
		b.WriteString("✅ עקביות: גבוהה - תואם למשובים קודמים\n")
	case consistency >= 0.7:
		b.WriteString("✓ עקביות: בינונית - עקביות סבירה\n")
	case consistency <= 0.3:
		b.WriteString("⚠️ עקביות: נמוכה מאוד - סותר משובים קודמים\n")
	default:
		b.WriteString("⚠️ עקביות: נמוכה - שונה ממשובים קודמים\n")
	}

	switch {
	case specificity >= 0.9:
		b.WriteString("✅ ספציפיות: גבוהה - משוב מאד מפורט\n")
	case specificity >= 0.7:
		b.WriteString("✓ ספציפיות: בינונית - פרטים סבירים\n")
	default:
		b.WriteString("⚠️ ספציפיות: נמוכה - משוב כללי\n")
	}

	return b.String()
}

// ConfidenceLabel buckets a confidence value for display.
func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence >= AutoApproveThreshold:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// ShouldAutoApprove is a display hint. It never sets a record's status.
func ShouldAutoApprove(confidence float64) bool {
	return confidence >= AutoApproveThreshold
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
