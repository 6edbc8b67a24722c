package repository

import (
	"context"

	"github.com/timmy/mockup-studio/internal/domain"
	"gorm.io/gorm"
)

// LogFilter narrows a generation log listing. Zero values match everything.
type LogFilter struct {
	OwnerUID string
	Type     domain.EntryType
	JobID    string
	Limit    int
	Offset   int
}

// GenerationLogRepository handles generation log persistence.
type GenerationLogRepository struct {
	db *gorm.DB
}

// NewGenerationLogRepository creates a new GenerationLogRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GenerationLogRepository: repository instance bound to db.
func NewGenerationLogRepository(db *gorm.DB) *GenerationLogRepository {
	return &GenerationLogRepository{db: db}
}

// Create inserts a new log entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: log entry to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *GenerationLogRepository) Create(ctx context.Context, entry *domain.LogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetByIDs retrieves the entries with the given IDs. Unknown IDs are ignored.
func (r *GenerationLogRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.LogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []domain.LogEntry
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns entries matching filter, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: owner, type and job constraints plus pagination.
// Returns:
//   - []domain.LogEntry: matching entries.
//   - int64: total number of matching entries before pagination.
//   - error: non-nil if the query fails.
func (r *GenerationLogRepository) List(ctx context.Context, filter LogFilter) ([]domain.LogEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.LogEntry{})
	if filter.OwnerUID != "" {
		query = query.Where("owner_uid = ?", filter.OwnerUID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []domain.LogEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// DeleteByIDs removes the given entries and reports how many rows were deleted.
func (r *GenerationLogRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.LogEntry{})
	return result.RowsAffected, result.Error
}
