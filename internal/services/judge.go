package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/patrickmn/go-cache"
)

const (
	judgeSystemPrompt = "You are a feedback quality classifier. Always respond in valid JSON format."
	judgeTemperature  = 0.1
	judgeMaxTokens    = 150
	maxReasonWords    = 10
)

// Judgment is the semantic verdict on one piece of feedback.
type Judgment struct {
	IsActionable bool    `json:"is_actionable"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// Judge decides whether feedback names a specific fixable issue.
type Judge interface {
	Judge(ctx context.Context, text string, category models.Category, rating int) (Judgment, error)
}

// JudgmentCache memoizes verdicts for identical (category, rating, text) inputs.
type JudgmentCache struct {
	entries *cache.Cache
}

func NewJudgmentCache(ttl time.Duration) *JudgmentCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JudgmentCache{entries: cache.New(ttl, 2*ttl)}
}

func judgmentKey(text string, category models.Category, rating int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", category, rating, text)))
	return fmt.Sprintf("%x", h)
}

func (c *JudgmentCache) Get(text string, category models.Category, rating int) (Judgment, bool) {
	if c == nil {
		return Judgment{}, false
	}
	v, ok := c.entries.Get(judgmentKey(text, category, rating))
	if !ok {
		return Judgment{}, false
	}
	j, ok := v.(Judgment)
	return j, ok
}

func (c *JudgmentCache) Set(text string, category models.Category, rating int, j Judgment) {
	if c == nil {
		return
	}
	c.entries.SetDefault(judgmentKey(text, category, rating), j)
}

func (c *JudgmentCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.ItemCount()
}

// LLMJudge asks the configured LLM providers for an actionability verdict.
type LLMJudge struct {
	ai    *AIService
	cache *JudgmentCache
}

func NewLLMJudge(ai *AIService, judgmentCache *JudgmentCache) *LLMJudge {
	return &LLMJudge{ai: ai, cache: judgmentCache}
}

func (j *LLMJudge) Judge(ctx context.Context, text string, category models.Category, rating int) (Judgment, error) {
	if cached, ok := j.cache.Get(text, category, rating); ok {
		return cached, nil
	}

	completion, err := j.ai.Complete(ctx, CompletionRequest{
		System:      judgeSystemPrompt,
		Prompt:      buildJudgePrompt(text, category, rating),
		JSON:        true,
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemperature,
	})
	if err != nil {
		return Judgment{}, err
	}

	verdict, err := parseJudgment(completion.Text)
	if err != nil {
		return Judgment{}, fmt.Errorf("parse verdict from %s: %w", completion.Provider, err)
	}
	logger.Debug().
		Str("provider", completion.Provider).
		Bool("actionable", verdict.IsActionable).
		Float64("confidence", verdict.Confidence).
		Msg("[Judge] verdict")

	j.cache.Set(text, category, rating, verdict)
	return verdict, nil
}

// parseJudgment decodes the first JSON object in raw. A missing confidence
// defaults to 0.5.
func parseJudgment(raw string) (Judgment, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Judgment{}, fmt.Errorf("no JSON object in response")
	}

	var payload struct {
		IsActionable bool     `json:"is_actionable"`
		Confidence   *float64 `json:"confidence"`
		Reason       string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return Judgment{}, err
	}

	confidence := 0.5
	if payload.Confidence != nil {
		confidence = clamp01(*payload.Confidence)
	}
	reason := limitWords(payload.Reason, maxReasonWords)
	if reason == "" {
		reason = "no reason provided"
	}
	return Judgment{IsActionable: payload.IsActionable, Confidence: confidence, Reason: reason}, nil
}

func limitWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func buildJudgePrompt(text string, category models.Category, rating int) string {
	return fmt.Sprintf(`Analyze this feedback for ACTIONABILITY.

Context:
- Category: %s
- Rating: %d/5
- Feedback: %q

ACTIONABLE feedback contains at least ONE of:
- Specific words/phrases that are problematic (e.g. "הפתיח חלש", "המילה X מכירתית מדי")
- Missing elements (e.g. "חסר CTA", "אין הוק", "חסרה תועלת ברורה")
- Structural or platform-fit issues (e.g. "ארוך מדי לאינסטגרם", "לא מתאים לפלטפורמה")
- Tone problems with specifics (e.g. "פורמלי מדי לפייסבוק", "לא נשמע כמו דנה")
- Alternatives or suggestions (e.g. "צריך להתחיל בשאלה", "להדגיש את התועלת")

VAGUE feedback is general or emotional:
- "זה לא טוב" / "this is bad"
- "לא אהבתי" / "didn't like it"
- "משהו לא בסדר" / "something's wrong"
- "כך כך" / "so-so"
- Single-word reactions without context: "חלש", "רע"

Answer in JSON format:
{"is_actionable": true/false, "confidence": 0.0-1.0, "reason": "Short explanation in English (max 10 words)"}

Examples:
- "חסר הוק פותח" -> {"is_actionable": true, "confidence": 0.95, "reason": "Specific missing element: opening hook"}
- "זה ממש לא טוב בכלל" -> {"is_actionable": false, "confidence": 0.9, "reason": "Vague emotional reaction"}
- "המילה 'מבצע' מכירתית מדי" -> {"is_actionable": true, "confidence": 0.98, "reason": "Specific word critique"}
- "לא מרגיש נכון" -> {"is_actionable": false, "confidence": 0.85, "reason": "Vague feeling, no specifics"}
`, category, rating, text)
}
