package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
)

var learningNow = time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)

func seedPattern(t *testing.T, s store.FeedbackStore, client string, status models.Status, confidence float64, platform, text string) {
	t.Helper()
	rec := &models.FeedbackRecord{
		Rating:          2,
		Category:        models.CategoryTone,
		RawTextFeedback: text,
		Content:         "line one\nline two",
		ClientID:        client,
		AgentType:       "linkedin_copywriter",
		Persona:         "Founder",
		Platform:        platform,
		Archetype:       "Head",
		ConfidenceScore: confidence,
		Status:          status,
	}
	if status == models.StatusApproved && platform == "LinkedIn" {
		rec.RefinementData = &models.RefinementData{
			Category:         models.CategoryTone,
			SelectedOptions:  []string{"שורת הפתיחה"},
			SelectedFollowup: []string{"פורמלי מדי"},
			ShortExplanation: "לפתוח בשאלה",
		}
	}
	if _, err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func newTestLearning(t *testing.T, s store.FeedbackStore) *LearningService {
	return NewLearningService(s, &config.LearningConfig{
		CorpusDir:     t.TempDir(),
		MinConfidence: 0.5,
	}, nil, WithLearningClock(func() time.Time { return learningNow }))
}

func TestAggregate_OnlyApprovedPatterns(t *testing.T) {
	mem := store.NewMemoryStore()
	seedPattern(t, mem, "dana", models.StatusApproved, 0.9, "LinkedIn", "opening hook too formal")
	seedPattern(t, mem, "dana", models.StatusApproved, 0.6, "Facebook", "cta is missing")
	seedPattern(t, mem, "dana", models.StatusApproved, 0.3, "Facebook", "low confidence pattern")
	seedPattern(t, mem, "dana", models.StatusPendingRefinement, 0.95, "LinkedIn", "still in the lab")
	seedPattern(t, mem, "dana", models.StatusSkipped, 0.99, "LinkedIn", "skipped pattern")
	seedPattern(t, mem, "other-client", models.StatusApproved, 0.9, "LinkedIn", "belongs to someone else")

	svc := newTestLearning(t, mem)
	result, err := svc.Aggregate(context.Background(), "dana", "linkedin_copywriter")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if result.Patterns != 2 {
		t.Errorf("Patterns = %d, expected 2", result.Patterns)
	}
	if !result.UpdatedAt.Equal(learningNow) {
		t.Errorf("UpdatedAt = %v", result.UpdatedAt)
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	corpus := string(data)

	for _, want := range []string{
		"# Feedback Learnings: dana / linkedin_copywriter",
		"Last Updated: 2026-03-12 18:00:00 UTC",
		"Total Patterns: 2 (Facebook: 1, LinkedIn: 1)",
		"## Pattern 1 [Tone] rating 2/5, confidence 0.90",
		"Feedback: opening hook too formal",
		"Issues: שורת הפתיחה",
		"Details: פורמלי מדי",
		"Suggestion: לפתוח בשאלה",
		"Content: line one line two",
		"## Pattern 2 [Tone] rating 2/5, confidence 0.60",
	} {
		if !strings.Contains(corpus, want) {
			t.Errorf("corpus missing %q\n%s", want, corpus)
		}
	}
	for _, unwanted := range []string{"still in the lab", "skipped pattern", "low confidence pattern", "belongs to someone else"} {
		if strings.Contains(corpus, unwanted) {
			t.Errorf("corpus contains %q", unwanted)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(result.Path), ".corpus-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestAggregate_OverwritesCorpus(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestLearning(t, mem)
	ctx := context.Background()

	if _, err := svc.Aggregate(ctx, "dana", "linkedin_copywriter"); err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	seedPattern(t, mem, "dana", models.StatusApproved, 0.8, "LinkedIn", "new insight")
	result, err := svc.Aggregate(ctx, "dana", "linkedin_copywriter")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	data, _ := os.ReadFile(result.Path)
	if strings.Count(string(data), "# Feedback Learnings") != 1 || !strings.Contains(string(data), "new insight") {
		t.Errorf("corpus was not replaced:\n%s", data)
	}
}

func TestAggregate_RequiresScope(t *testing.T) {
	svc := newTestLearning(t, store.NewMemoryStore())
	_, err := svc.Aggregate(context.Background(), "", "linkedin_copywriter")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Aggregate() error = %v, expected ValidationError", err)
	}
}

func TestCorpusPath_SanitizesSegments(t *testing.T) {
	svc := NewLearningService(store.NewMemoryStore(), &config.LearningConfig{CorpusDir: "/data"}, nil)

	if got, want := svc.CorpusPath("dana", "linkedin_copywriter"), filepath.Join("/data", "dana", "feedback_learnings_linkedin_copywriter.txt"); got != want {
		t.Errorf("CorpusPath() = %q, expected %q", got, want)
	}
	if got, want := svc.CorpusPath("דנה", "copywriter"), filepath.Join("/data", "דנה", "feedback_learnings_copywriter.txt"); got != want {
		t.Errorf("CorpusPath() = %q, expected %q", got, want)
	}

	got := svc.CorpusPath("../../etc", "linkedin copywriter")
	if dir := filepath.Dir(filepath.Dir(got)); dir != "/data" {
		t.Errorf("CorpusPath() = %q escapes the corpus dir", got)
	}
	if seg := filepath.Base(filepath.Dir(got)); !strings.HasPrefix(seg, "_etc.") {
		t.Errorf("client segment = %q, expected an escaped _etc prefix", seg)
	}
}

func TestCorpusPath_DistinctIDsNeverShareAFile(t *testing.T) {
	svc := NewLearningService(store.NewMemoryStore(), &config.LearningConfig{CorpusDir: "/data"}, nil)

	pairs := [][2]string{
		{"דנה", "רוני"},
		{"acme co", "acme_co"},
		{"acme/co", "acme co"},
		{"", "default"},
		{" ", "_"},
		{"a..b", "a.b"},
	}
	for _, p := range pairs {
		if a, b := svc.CorpusPath(p[0], "copywriter"), svc.CorpusPath(p[1], "copywriter"); a == b {
			t.Errorf("clients %q and %q share %s", p[0], p[1], a)
		}
		if a, b := svc.CorpusPath("dana", p[0]), svc.CorpusPath("dana", p[1]); a == b {
			t.Errorf("agents %q and %q share %s", p[0], p[1], a)
		}
	}
}

// stallingStore blocks the first pattern read after it has loaded its rows.
type stallingStore struct {
	store.FeedbackStore
	once    sync.Once
	stalled chan struct{}
	release chan struct{}
}

func (s *stallingStore) GetPatterns(ctx context.Context, filter store.PatternFilter) ([]models.FeedbackRecord, error) {
	records, err := s.FeedbackStore.GetPatterns(ctx, filter)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.stalled)
		<-s.release
	}
	return records, err
}

func TestAggregate_OverlappingRunsKeepNewestCorpus(t *testing.T) {
	mem := store.NewMemoryStore()
	slow := &stallingStore{FeedbackStore: mem, stalled: make(chan struct{}), release: make(chan struct{})}
	svc := newTestLearning(t, slow)
	ctx := context.Background()

	seedPattern(t, mem, "dana", models.StatusApproved, 0.9, "LinkedIn", "alpha")

	first := make(chan error, 1)
	go func() {
		_, err := svc.Aggregate(ctx, "dana", "linkedin_copywriter")
		first <- err
	}()
	<-slow.stalled

	seedPattern(t, mem, "dana", models.StatusApproved, 0.8, "Facebook", "bravo")
	second := make(chan error, 1)
	go func() {
		_, err := svc.Aggregate(ctx, "dana", "linkedin_copywriter")
		second <- err
	}()

	select {
	case <-second:
		t.Error("second rebuild finished while the first still held the corpus")
	case <-time.After(50 * time.Millisecond):
	}

	close(slow.release)
	if err := <-first; err != nil {
		t.Fatalf("first Aggregate() error = %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second Aggregate() error = %v", err)
	}

	data, err := os.ReadFile(svc.CorpusPath("dana", "linkedin_copywriter"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "bravo") || !strings.Contains(string(data), "Total Patterns: 2") {
		t.Errorf("corpus lost the newest approval:\n%s", data)
	}
}

func TestProcessTask(t *testing.T) {
	mem := store.NewMemoryStore()
	seedPattern(t, mem, "dana", models.StatusApproved, 0.9, "LinkedIn", "x")
	svc := newTestLearning(t, mem)

	if err := svc.ProcessTask(context.Background(), &LearningTask{ClientID: "dana", AgentType: "linkedin_copywriter"}); err != nil {
		t.Fatalf("ProcessTask() error = %v", err)
	}
	if _, err := os.Stat(svc.CorpusPath("dana", "linkedin_copywriter")); err != nil {
		t.Errorf("corpus not written: %v", err)
	}
}
