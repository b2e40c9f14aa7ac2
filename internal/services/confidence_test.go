package services

import (
	"math"
	"strings"
	"testing"

	"github.com/ShaharSGA/Project/internal/models"
	"pgregory.net/rapid"
)

func fb(rating int, category models.Category, text string) *models.FeedbackRecord {
	return &models.FeedbackRecord{
		Rating:          rating,
		Category:        category,
		RawTextFeedback: text,
		Persona:         "Dana",
		Platform:        "LinkedIn",
	}
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestContextScore(t *testing.T) {
	tests := []struct {
		name     string
		record   *models.FeedbackRecord
		expected float64
	}{
		{name: "empty text", record: fb(5, models.CategoryTone, ""), expected: 0.2},
		{name: "whitespace text", record: fb(1, models.CategoryStructure, "   \n"), expected: 0.2},
		{name: "short other mid rating", record: fb(3, models.CategoryOther, "meh"), expected: 0.5},
		{name: "short specific category", record: fb(3, models.CategoryTone, "meh"), expected: 0.7},
		{name: "long text", record: fb(3, models.CategoryOther, "this is definitely longer than twenty"), expected: 0.7},
		{name: "extreme rating", record: fb(1, models.CategoryOther, "meh"), expected: 0.6},
		{name: "all bonuses", record: fb(5, models.CategoryTone, "the opening line is far too formal"), expected: 1.0},
		{name: "exactly twenty runes", record: fb(3, models.CategoryOther, strings.Repeat("א", 20)), expected: 0.5},
		{name: "twenty one runes", record: fb(3, models.CategoryOther, strings.Repeat("א", 21)), expected: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContextScore(tt.record)
			if !approxEqual(got, tt.expected) {
				t.Errorf("ContextScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestContextScore_RatingBonusProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-z]{1,10}( [a-z]{1,10}){0,5}`).Draw(t, "text")
		category := rapid.SampledFrom(models.Categories).Draw(t, "category")

		mid := ContextScore(fb(3, category, text))
		low := ContextScore(fb(1, category, text))
		high := ContextScore(fb(5, category, text))

		if !approxEqual(low, math.Min(mid+0.1, 1.0)) || !approxEqual(high, low) {
			t.Fatalf("rating bonus mismatch: mid=%v low=%v high=%v", mid, low, high)
		}
	})
}

func TestContextScore_EmptyAlwaysFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		blank := rapid.StringMatching(`[ \t\n]{0,8}`).Draw(t, "blank")
		rating := rapid.IntRange(1, 5).Draw(t, "rating")
		category := rapid.SampledFrom(models.Categories).Draw(t, "category")
		if got := ContextScore(fb(rating, category, blank)); got != 0.2 {
			t.Fatalf("ContextScore(blank) = %v, expected 0.2", got)
		}
	})
}

func TestConsistencyScore(t *testing.T) {
	same := func(rating int) models.FeedbackRecord {
		return models.FeedbackRecord{Rating: rating, Persona: "Dana", Platform: "LinkedIn"}
	}
	otherPlatform := models.FeedbackRecord{Rating: 1, Persona: "Dana", Platform: "Instagram"}
	otherPersona := models.FeedbackRecord{Rating: 1, Persona: "Noa", Platform: "LinkedIn"}

	tests := []struct {
		name     string
		rating   int
		history  []models.FeedbackRecord
		expected float64
	}{
		{name: "no history", rating: 4, history: nil, expected: 0.7},
		{name: "no matching context", rating: 4, history: []models.FeedbackRecord{otherPlatform, otherPersona}, expected: 0.7},
		{name: "identical rating", rating: 4, history: []models.FeedbackRecord{same(4)}, expected: 1.0},
		{name: "diff exactly one", rating: 4, history: []models.FeedbackRecord{same(3)}, expected: 1.0},
		{name: "diff exactly two", rating: 5, history: []models.FeedbackRecord{same(3)}, expected: 0.6},
		{name: "diff above two", rating: 5, history: []models.FeedbackRecord{same(2)}, expected: 0.3},
		{name: "average of matches", rating: 5, history: []models.FeedbackRecord{same(4), same(2), otherPlatform}, expected: 0.6},
		{name: "fractional diff just over one", rating: 5, history: []models.FeedbackRecord{same(4), same(3), same(4)}, expected: 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConsistencyScore(fb(tt.rating, models.CategoryTone, "x"), tt.history)
			if !approxEqual(got, tt.expected) {
				t.Errorf("ConsistencyScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestSpecificityScore(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{name: "vague", text: "לא אהבתי", expected: 0.4},
		{name: "one hebrew keyword", text: "הפתיחה חלשה", expected: 0.7},
		{name: "one english keyword", text: "bad tone", expected: 0.7},
		{name: "case insensitive", text: "The TONE is off", expected: 0.7},
		{name: "two keywords", text: "the opening sentence drags", expected: 1.0},
		{name: "mixed languages", text: "הטון too formal", expected: 1.0},
		{name: "substring match", text: "lengthy", expected: 0.7},
		{name: "empty", text: "", expected: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpecificityScore(fb(3, models.CategoryTone, tt.text))
			if got != tt.expected {
				t.Errorf("SpecificityScore(%q) = %v, expected %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestSpecificity_MonotonicInMatches(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 40).Draw(t, "a")
		b := rapid.IntRange(0, 40).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		if specificityForMatches(a) > specificityForMatches(b) {
			t.Fatalf("specificity decreased from %d to %d matches", a, b)
		}
		if b >= 2 && specificityForMatches(b) != 1.0 {
			t.Fatalf("specificity should saturate at 1.0 for %d matches", b)
		}
	})
}

func TestBlendConfidence_StaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.Float64Range(0, 1).Draw(t, "context")
		k := rapid.Float64Range(0, 1).Draw(t, "consistency")
		s := rapid.Float64Range(0, 1).Draw(t, "specificity")
		got := BlendConfidence(c, k, s)
		if got < 0 || got > 1 {
			t.Fatalf("BlendConfidence(%v, %v, %v) = %v out of range", c, k, s, got)
		}
	})
}

func TestBlendConfidence_ClampsOutOfRangeInputs(t *testing.T) {
	if got := BlendConfidence(5, 5, 5); got != 1 {
		t.Errorf("BlendConfidence(5,5,5) = %v, expected 1", got)
	}
	if got := BlendConfidence(-1, -1, -1); got != 0 {
		t.Errorf("BlendConfidence(-1,-1,-1) = %v, expected 0", got)
	}
	if got := BlendConfidence(math.NaN(), 0, 0); got != 0 {
		t.Errorf("BlendConfidence(NaN) = %v, expected 0", got)
	}
}

func TestScoreConfidence(t *testing.T) {
	record := fb(5, models.CategoryTone, "the opening sentence is too formal")
	history := []models.FeedbackRecord{{Rating: 5, Persona: "Dana", Platform: "LinkedIn"}}

	got := ScoreConfidence(record, history)
	if !approxEqual(got.Context, 1.0) || got.Consistency != 1.0 || got.Specificity != 1.0 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if !approxEqual(got.Total, 1.0) {
		t.Errorf("Total = %v, expected 1.0", got.Total)
	}
	if got.HistoryMatches != 1 {
		t.Errorf("HistoryMatches = %d, expected 1", got.HistoryMatches)
	}

	// empty strategic-miss feedback with no history
	empty := ScoreConfidence(fb(1, models.CategoryStrategicMiss, ""), nil)
	expected := 0.3*0.2 + 0.4*0.7 + 0.3*0.4
	if !approxEqual(empty.Total, expected) {
		t.Errorf("Total = %v, expected %v", empty.Total, expected)
	}
	if CalculateConfidence(fb(1, models.CategoryStrategicMiss, ""), nil) != empty.Total {
		t.Error("CalculateConfidence should match ScoreConfidence().Total")
	}
}

func TestExplainConfidence(t *testing.T) {
	out := ExplainConfidence(1.0, 0.7, 0.4)
	if !strings.HasPrefix(out, "ציון אמינות: 0.70") {
		t.Errorf("unexpected header: %q", out)
	}
	for _, want := range []string{"הקשר: מצוין", "עקביות: בינונית", "ספציפיות: נמוכה"} {
		if !strings.Contains(out, want) {
			t.Errorf("explanation missing %q:\n%s", want, out)
		}
	}

	weak := ExplainConfidence(0.2, 0.3, 0.4)
	if !strings.Contains(weak, "חלש מאוד") {
		t.Errorf("expected very weak context label:\n%s", weak)
	}
}

func TestConfidenceLabelAndAutoApprove(t *testing.T) {
	tests := []struct {
		confidence  float64
		label       string
		autoApprove bool
	}{
		{0.95, "high", true},
		{0.8, "high", true},
		{0.79, "medium", false},
		{0.5, "medium", false},
		{0.49, "low", false},
		{0, "low", false},
	}
	for _, tt := range tests {
		if got := ConfidenceLabel(tt.confidence); got != tt.label {
			t.Errorf("ConfidenceLabel(%v) = %q, expected %q", tt.confidence, got, tt.label)
		}
		if got := ShouldAutoApprove(tt.confidence); got != tt.autoApprove {
			t.Errorf("ShouldAutoApprove(%v) = %v, expected %v", tt.confidence, got, tt.autoApprove)
		}
	}
}
