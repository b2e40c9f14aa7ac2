package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/pkg/logger"
)

const defaultMaxPatterns = 200

// AggregateResult reports one corpus rebuild.
type AggregateResult struct {
	ClientID  string    `json:"client_id"`
	AgentType string    `json:"agent_type"`
	Path      string    `json:"path"`
	Patterns  int       `json:"patterns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LearningService compresses approved feedback into the plain-text corpus
// the retrieval layer indexes. Only approved records are ever read.
type LearningService struct {
	store   store.FeedbackStore
	cfg     config.LearningConfig
	metrics *Metrics
	now     func() time.Time

	// one lock per corpus file; runs for the same client and agent never overlap
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type LearningOption func(*LearningService)

func WithLearningClock(now func() time.Time) LearningOption {
	return func(s *LearningService) { s.now = now }
}

func NewLearningService(s store.FeedbackStore, cfg *config.LearningConfig, metrics *Metrics, opts ...LearningOption) *LearningService {
	svc := &LearningService{
		store:   s,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		locks:   make(map[string]*sync.Mutex),
	}
	if cfg != nil {
		svc.cfg = *cfg
	}
	if svc.cfg.CorpusDir == "" {
		svc.cfg.CorpusDir = "Data/learnings"
	}
	if svc.cfg.MaxPatterns <= 0 {
		svc.cfg.MaxPatterns = defaultMaxPatterns
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CorpusPath is where the corpus for one client and agent lives.
func (s *LearningService) CorpusPath(clientID, agentType string) string {
	return filepath.Join(s.cfg.CorpusDir, safeSegment(clientID), fmt.Sprintf("feedback_learnings_%s.txt", safeSegment(agentType)))
}

// Aggregate rebuilds the corpus file for one client and agent. Concurrent
// calls for the same pair run one after another, so the last one to finish
// always read the patterns last.
func (s *LearningService) Aggregate(ctx context.Context, clientID, agentType string) (*AggregateResult, error) {
	lock := s.corpusLock(s.CorpusPath(clientID, agentType))
	lock.Lock()
	defer lock.Unlock()

	result, err := s.aggregate(ctx, clientID, agentType)
	s.metrics.RecordLearningRun(err)
	return result, err
}

func (s *LearningService) aggregate(ctx context.Context, clientID, agentType string) (*AggregateResult, error) {
	if clientID == "" || agentType == "" {
		return nil, &models.ValidationError{Field: "client_id", Message: "client_id and agent_type are required"}
	}

	records, err := s.store.GetPatterns(ctx, store.PatternFilter{
		ClientID:      clientID,
		AgentType:     agentType,
		Status:        models.StatusApproved,
		MinConfidence: s.cfg.MinConfidence,
		Limit:         s.cfg.MaxPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	now := s.now()
	path := s.CorpusPath(clientID, agentType)
	if err := writeFileAtomic(path, []byte(renderCorpus(clientID, agentType, records, now))); err != nil {
		return nil, fmt.Errorf("write corpus: %w", err)
	}

	logger.Info().Str("client_id", clientID).Str("agent_type", agentType).
		Int("patterns", len(records)).Str("path", path).Msg("[Learning] corpus updated")

	return &AggregateResult{
		ClientID:  clientID,
		AgentType: agentType,
		Path:      path,
		Patterns:  len(records),
		UpdatedAt: now,
	}, nil
}

func (s *LearningService) corpusLock(path string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// ProcessTask is the queue processor for learning refresh tasks.
func (s *LearningService) ProcessTask(ctx context.Context, task *LearningTask) error {
	_, err := s.Aggregate(ctx, task.ClientID, task.AgentType)
	return err
}

func renderCorpus(clientID, agentType string, records []models.FeedbackRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Feedback Learnings: %s / %s\n", clientID, agentType)
	fmt.Fprintf(&b, "Last Updated: %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Total Patterns: %d%s\n", len(records), platformBreakdown(records))

	for i := range records {
		r := &records[i]
		fmt.Fprintf(&b, "\n## Pattern %d [%s] rating %d/5, confidence %.2f\n", i+1, r.Category, r.Rating, r.ConfidenceScore)
		fmt.Fprintf(&b, "Platform: %s | Persona: %s | Archetype: %s\n", r.Platform, r.Persona, r.Archetype)
		if r.RawTextFeedback != "" {
			fmt.Fprintf(&b, "Feedback: %s\n", r.RawTextFeedback)
		}
		if ref := r.RefinementData; ref != nil {
			if len(ref.SelectedOptions) > 0 {
				fmt.Fprintf(&b, "Issues: %s\n", strings.Join(ref.SelectedOptions, "; "))
			}
			if len(ref.SelectedFollowup) > 0 {
				fmt.Fprintf(&b, "Details: %s\n", strings.Join(ref.SelectedFollowup, "; "))
			}
			if ref.ShortExplanation != "" {
				fmt.Fprintf(&b, "Suggestion: %s\n", ref.ShortExplanation)
			}
		}
		if r.Content != "" {
			fmt.Fprintf(&b, "Content: %s\n", strings.ReplaceAll(r.Content, "\n", " "))
		}
	}
	return b.String()
}

func platformBreakdown(records []models.FeedbackRecord) string {
	if len(records) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for i := range records {
		counts[records[i].Platform]++
	}
	platforms := make([]string, 0, len(counts))
	for p := range counts {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	parts := make([]string, 0, len(platforms))
	for _, p := range platforms {
		name := p
		if name == "" {
			name = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("%s: %d", name, counts[p]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// safeSegment maps an id onto a single path segment. Ids made only of
// letters, digits, '-' and '_' are used as they are. Any other id is escaped
// and gets a hash of the raw value after a '.', which kept ids never contain,
// so two distinct ids never share a segment.
func safeSegment(id string) string {
	var b strings.Builder
	escaped, inRun := false, false
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '-' || r == '_' {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
		}
		escaped, inRun = true, true
	}

	seg := b.String()
	if seg == "" {
		seg, escaped = "default", true
	}
	if !escaped {
		return seg
	}
	sum := sha256.Sum256([]byte(id))
	return seg + "." + hex.EncodeToString(sum[:6])
}

// writeFileAtomic replaces path so readers never observe a partial corpus.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".corpus-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
