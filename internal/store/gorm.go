package store

import (
	"context"
	"errors"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/pkg/logger"
	"gorm.io/gorm"
)

// GormStore is the database-backed FeedbackStore.
type GormStore struct {
	db   *gorm.DB
	opts options
}

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	return &GormStore{db: db, opts: buildOptions(opts)}
}

func (s *GormStore) Save(ctx context.Context, record *models.FeedbackRecord) (uint, error) {
	if err := prepareForSave(record, s.opts.now()); err != nil {
		return 0, err
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, storageError("save", err)
	}
	return record.ID, nil
}

// UpdateStatus applies the transition in one conditional UPDATE so a lab action
// and an aging sweep racing on the same record cannot interleave field writes.
func (s *GormStore) UpdateStatus(ctx context.Context, id uint, update StatusUpdate) error {
	status, err := models.ParseStatus(update.Status)
	if err != nil {
		return err
	}

	now := s.opts.now()
	fields := map[string]interface{}{
		"status":      status,
		"notes":       update.Notes,
		"reviewed_at": now,
	}
	if update.Refinement != nil {
		fields["refinement_data"] = update.Refinement
	}
	if status == models.StatusPendingRefinement {
		fields["lab_entry_date"] = gorm.Expr("COALESCE(lab_entry_date, ?)", now)
	}

	q := s.db.WithContext(ctx).Model(&models.FeedbackRecord{}).Where("id = ?", id)
	if update.Expect != "" {
		q = q.Where("status = ?", update.Expect)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return storageError("update status", res.Error)
	}

	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if update.Expect != "" && current.Status != update.Expect {
			return models.ErrStatusConflict
		}
	}

	if status == models.StatusApproved && s.opts.approvalHook != nil {
		rec, err := s.Get(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Uint("feedback_id", id).Msg("[Store] reload for approval hook failed")
			return nil
		}
		runApprovalHook(ctx, s.opts.approvalHook, rec)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.FeedbackRecord, error) {
	var rec models.FeedbackRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, storageError("get", err)
	}
	return &rec, nil
}

func (s *GormStore) GetLabQueue(ctx context.Context, clientID, agentType string, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = DefaultLabQueueLimit
	}

	q := s.db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, models.StatusPendingRefinement)
	if agentType != "" {
		q = q.Where("agent_type = ?", agentType)
	}

	var records []models.FeedbackRecord
	err := q.Order("lab_entry_date ASC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, storageError("lab queue", err)
	}
	return records, nil
}

func (s *GormStore) AutoAgeLabItems(ctx context.Context, daysThreshold int) (int64, error) {
	now := s.opts.now()
	cutoff := agingCutoff(now, daysThreshold)

	res := s.db.WithContext(ctx).Model(&models.FeedbackRecord{}).
		Where("status = ? AND lab_entry_date IS NOT NULL AND lab_entry_date < ?", models.StatusPendingRefinement, cutoff).
		Updates(map[string]interface{}{
			"status":      models.StatusSkipped,
			"notes":       AgedNote(daysThreshold),
			"reviewed_at": now,
		})
	if res.Error != nil {
		return 0, storageError("auto age", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) GetRecentFeedback(ctx context.Context, clientID, agentType string, days int, minConfidence float64) ([]models.FeedbackRecord, error) {
	cutoff := agingCutoff(s.opts.now(), days)

	var records []models.FeedbackRecord
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND agent_type = ?", clientID, agentType).
		Where("confidence_score >= ? AND created_at >= ?", minConfidence, cutoff).
		Order("created_at DESC").
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, storageError("recent feedback", err)
	}
	return records, nil
}

func (s *GormStore) GetPatterns(ctx context.Context, filter PatternFilter) ([]models.FeedbackRecord, error) {
	filter = filter.withDefaults()

	q := s.db.WithContext(ctx).
		Where("client_id = ? AND agent_type = ?", filter.ClientID, filter.AgentType).
		Where("status = ? AND confidence_score >= ?", filter.Status, filter.MinConfidence)
	if filter.Persona != "" {
		q = q.Where("persona = ?", filter.Persona)
	}
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.hasRatingRange() {
		q = q.Where("rating BETWEEN ? AND ?", filter.MinRating, filter.MaxRating)
	}

	var records []models.FeedbackRecord
	err := q.Order("confidence_score DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&records).Error
	if err != nil {
		return nil, storageError("patterns", err)
	}
	return records, nil
}

func (s *GormStore) Stats(ctx context.Context, clientID, agentType string) (*models.FeedbackStats, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.FeedbackRecord{}).Where("client_id = ?", clientID)
		if agentType != "" {
			q = q.Where("agent_type = ?", agentType)
		}
		return q
	}

	stats := &models.FeedbackStats{ByStatus: make(map[models.Status]int64)}
	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, storageError("stats", err)
	}

	var byStatus []struct {
		Status models.Status
		Count  int64
	}
	if err := base().Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, storageError("stats", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
	}

	var avg struct {
		AvgConfidence float64
		AvgRating     float64
	}
	err := base().
		Select("COALESCE(AVG(confidence_score), 0) AS avg_confidence, COALESCE(AVG(rating), 0) AS avg_rating").
		Scan(&avg).Error
	if err != nil {
		return nil, storageError("stats", err)
	}
	stats.AvgConfidence = round2(avg.AvgConfidence)
	stats.AvgRating = round2(avg.AvgRating)
	return stats, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &models.StorageError{Op: op, Err: models.ErrDuplicate}
	}
	return &models.StorageError{Op: op, Err: err}
}
