package repository

import (
	"context"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"gorm.io/gorm"
)

// FailureLogRepository 失败日志仓库
type FailureLogRepository struct {
	db *gorm.DB
}

func NewFailureLogRepository(db *gorm.DB) *FailureLogRepository {
	return &FailureLogRepository{db: db}
}

// Create 追加一条失败记录
func (r *FailureLogRepository) Create(ctx context.Context, entry *entity.FailureLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// BatchCreate 批量追加失败记录
func (r *FailureLogRepository) BatchCreate(ctx context.Context, entries []entity.FailureLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&entries, 500).Error
}

// FindByID 根据ID查找
func (r *FailureLogRepository) FindByID(ctx context.Context, id string) (*entity.FailureLog, error) {
	var entry entity.FailureLog
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FailureLogFilter 查询条件
type FailureLogFilter struct {
	Source   string
	Resolved *bool
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// List 按条件查询，最新的在前
func (r *FailureLogRepository) List(ctx context.Context, f FailureLogFilter) ([]entity.FailureLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.FailureLog{})
	if f.Source != "" {
		query = query.Where("source = ?", f.Source)
	}
	if f.Resolved != nil {
		if *f.Resolved {
			query = query.Where("resolved_at IS NOT NULL")
		} else {
			query = query.Where("resolved_at IS NULL")
		}
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []entity.FailureLog
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&entries).Error
	return entries, total, err
}

// MarkResolved sets the resolution exactly once. It returns the number of rows
// changed, which is 0 when the entry is already resolved.
func (r *FailureLogRepository) MarkResolved(ctx context.Context, id, resolvedBy, note string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.FailureLog{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]interface{}{
			"resolved_at": at,
			"resolved_by": resolvedBy,
			"resolution":  note,
		})
	return res.RowsAffected, res.Error
}
