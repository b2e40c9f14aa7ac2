package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ShaharSGA/Project/internal/models"
)

// MemoryStore is an in-process FeedbackStore. Every read returns copies.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uint]*models.FeedbackRecord
	nextID  uint
	opts    options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[uint]*models.FeedbackRecord),
		nextID:  1,
		opts:    buildOptions(opts),
	}
}

func (s *MemoryStore) Save(ctx context.Context, record *models.FeedbackRecord) (uint, error) {
	if err := prepareForSave(record, s.opts.now()); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID != 0 {
		if _, exists := s.records[record.ID]; exists {
			return 0, &models.StorageError{Op: "save", Err: models.ErrDuplicate}
		}
	} else {
		record.ID = s.nextID
	}
	if record.ID >= s.nextID {
		s.nextID = record.ID + 1
	}

	s.records[record.ID] = cloneRecord(record)
	return record.ID, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uint, update StatusUpdate) error {
	status, err := models.ParseStatus(update.Status)
	if err != nil {
		return err
	}

	now := s.opts.now()

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return models.ErrNotFound
	}
	if update.Expect != "" && rec.Status != update.Expect {
		s.mu.Unlock()
		return models.ErrStatusConflict
	}

	rec.Status = status
	rec.Notes = update.Notes
	rec.ReviewedAt = &now
	if update.Refinement != nil {
		rec.RefinementData = cloneRefinement(update.Refinement)
	}
	if status == models.StatusPendingRefinement && rec.LabEntryDate == nil {
		entered := now
		rec.LabEntryDate = &entered
	}
	snapshot := cloneRecord(rec)
	s.mu.Unlock()

	if status == models.StatusApproved {
		runApprovalHook(ctx, s.opts.approvalHook, snapshot)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint) (*models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) GetLabQueue(ctx context.Context, clientID, agentType string, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = DefaultLabQueueLimit
	}

	s.mu.RLock()
	var out []models.FeedbackRecord
	for _, rec := range s.records {
		if rec.ClientID != clientID || rec.Status != models.StatusPendingRefinement {
			continue
		}
		if agentType != "" && rec.AgentType != agentType {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ae, be := labEntry(&a), labEntry(&b)
		if !ae.Equal(be) {
			return ae.Before(be)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return truncate(out, limit), nil
}

func (s *MemoryStore) AutoAgeLabItems(ctx context.Context, daysThreshold int) (int64, error) {
	now := s.opts.now()
	cutoff := agingCutoff(now, daysThreshold)
	note := AgedNote(daysThreshold)

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, rec := range s.records {
		if rec.Status != models.StatusPendingRefinement || rec.LabEntryDate == nil {
			continue
		}
		if !rec.LabEntryDate.Before(cutoff) {
			continue
		}
		reviewed := now
		rec.Status = models.StatusSkipped
		rec.Notes = note
		rec.ReviewedAt = &reviewed
		count++
	}
	return count, nil
}

func (s *MemoryStore) GetRecentFeedback(ctx context.Context, clientID, agentType string, days int, minConfidence float64) ([]models.FeedbackRecord, error) {
	cutoff := agingCutoff(s.opts.now(), days)

	s.mu.RLock()
	var out []models.FeedbackRecord
	for _, rec := range s.records {
		if rec.ClientID != clientID || rec.AgentType != agentType {
			continue
		}
		if rec.CreatedAt.Before(cutoff) || rec.ConfidenceScore < minConfidence {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetPatterns(ctx context.Context, filter PatternFilter) ([]models.FeedbackRecord, error) {
	filter = filter.withDefaults()

	s.mu.RLock()
	var out []models.FeedbackRecord
	for _, rec := range s.records {
		if filter.matches(rec) {
			out = append(out, *cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return truncate(out, filter.Limit), nil
}

func (s *MemoryStore) Stats(ctx context.Context, clientID, agentType string) (*models.FeedbackStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.FeedbackStats{ByStatus: make(map[models.Status]int64)}
	var confSum, ratingSum float64
	for _, rec := range s.records {
		if rec.ClientID != clientID {
			continue
		}
		if agentType != "" && rec.AgentType != agentType {
			continue
		}
		stats.Total++
		stats.ByStatus[rec.Status]++
		confSum += rec.ConfidenceScore
		ratingSum += float64(rec.Rating)
	}
	if stats.Total > 0 {
		stats.AvgConfidence = round2(confSum / float64(stats.Total))
		stats.AvgRating = round2(ratingSum / float64(stats.Total))
	}
	return stats, nil
}

func labEntry(r *models.FeedbackRecord) time.Time {
	if r.LabEntryDate != nil {
		return *r.LabEntryDate
	}
	return r.CreatedAt
}

func truncate(records []models.FeedbackRecord, limit int) []models.FeedbackRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func cloneRecord(r *models.FeedbackRecord) *models.FeedbackRecord {
	c := *r
	if r.RAGQueriesUsed != nil {
		c.RAGQueriesUsed = append(models.StringList{}, r.RAGQueriesUsed...)
	}
	if r.Metadata != nil {
		c.Metadata = make(models.JSONMap, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	c.RefinementData = cloneRefinement(r.RefinementData)
	if r.LabEntryDate != nil {
		t := *r.LabEntryDate
		c.LabEntryDate = &t
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

func cloneRefinement(r *models.RefinementData) *models.RefinementData {
	if r == nil {
		return nil
	}
	c := *r
	c.SelectedOptions = cloneStrings(r.SelectedOptions)
	c.SelectedFollowup = cloneStrings(r.SelectedFollowup)
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
