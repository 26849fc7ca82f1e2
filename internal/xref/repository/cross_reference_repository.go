package repository

import (
	"context"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CrossReferenceRepository 交叉引用仓库
type CrossReferenceRepository struct {
	db *gorm.DB
}

func NewCrossReferenceRepository(db *gorm.DB) *CrossReferenceRepository {
	return &CrossReferenceRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *CrossReferenceRepository) WithTx(tx *gorm.DB) *CrossReferenceRepository {
	return &CrossReferenceRepository{db: tx}
}

// DeleteAll 清空交叉引用表（全量替换导入）
func (r *CrossReferenceRepository) DeleteAll(ctx context.Context) (int64, error) {
	return wipe(r.db.WithContext(ctx), &entity.CrossReference{})
}

// Create 创建交叉引用
func (r *CrossReferenceRepository) Create(ctx context.Context, xref *entity.CrossReference) error {
	return r.db.WithContext(ctx).Create(xref).Error
}

// FindByIdentity 按复合唯一键查找
func (r *CrossReferenceRepository) FindByIdentity(ctx context.Context, manufacturer, partNumber, wagoPartID string) (*entity.CrossReference, error) {
	var xref entity.CrossReference
	err := r.db.WithContext(ctx).
		Where("original_manufacturer = ? AND original_part_number = ? AND wago_part_id = ?", manufacturer, partNumber, wagoPartID).
		First(&xref).Error
	if err != nil {
		return nil, err
	}
	return &xref, nil
}

// UpdateMutable writes the merge-mode mutable columns. compatibility_score is never touched.
func (r *CrossReferenceRepository) UpdateMutable(ctx context.Context, xref *entity.CrossReference) error {
	return r.db.WithContext(ctx).Model(&entity.CrossReference{}).
		Where("id = ?", xref.ID).
		Updates(map[string]interface{}{
			"notes":           xref.Notes,
			"part_number_a":   xref.PartNumberA,
			"part_number_b":   xref.PartNumberB,
			"wago_cross_a":    xref.WagoCrossA,
			"wago_cross_b":    xref.WagoCrossB,
			"active":          xref.Active,
			"estimated_price": xref.EstimatedPrice,
			"notes_a":         xref.NotesA,
			"notes_b":         xref.NotesB,
			"author":          xref.Author,
			"last_modified":   xref.LastModified,
			"import_batch_id": xref.ImportBatchID,
			"updated_at":      time.Now(),
		}).Error
}

// FindByOriginal matches manufacturer and part number case-insensitively, best score first.
// limit <= 0 returns every match.
func (r *CrossReferenceRepository) FindByOriginal(ctx context.Context, manufacturer, partNumber string, limit int) ([]entity.CrossReference, error) {
	var xrefs []entity.CrossReference
	query := r.db.WithContext(ctx).
		Preload("WagoPart").
		Where("LOWER(original_manufacturer) = LOWER(?) AND LOWER(original_part_number) = LOWER(?)", manufacturer, partNumber).
		Order("compatibility_score DESC").
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&xrefs).Error
	return xrefs, err
}

// Count 统计总数
func (r *CrossReferenceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CrossReference{}).Count(&count).Error
	return count, err
}

// ListParams 交叉引用列表筛选
type ListParams struct {
	ImportBatchID string
	Manufacturer  string
	Page          int
	PageSize      int
}

// List 分页查询交叉引用
func (r *CrossReferenceRepository) List(ctx context.Context, params ListParams) ([]entity.CrossReference, int64, error) {
	if params.PageSize <= 0 || params.PageSize > 100 {
		params.PageSize = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	query := r.db.WithContext(ctx).Model(&entity.CrossReference{})
	if params.ImportBatchID != "" {
		query = query.Where("import_batch_id = ?", params.ImportBatchID)
	}
	if params.Manufacturer != "" {
		query = query.Where("LOWER(original_manufacturer) = LOWER(?)", params.Manufacturer)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var xrefs []entity.CrossReference
	err := query.Preload("WagoPart").
		Order("original_manufacturer ASC").
		Order("original_part_number ASC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&xrefs).Error
	return xrefs, total, err
}

// NonWagoProductRepository 无等效产品仓库
type NonWagoProductRepository struct {
	db *gorm.DB
}

func NewNonWagoProductRepository(db *gorm.DB) *NonWagoProductRepository {
	return &NonWagoProductRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *NonWagoProductRepository) WithTx(tx *gorm.DB) *NonWagoProductRepository {
	return &NonWagoProductRepository{db: tx}
}

// DeleteAll 清空表
func (r *NonWagoProductRepository) DeleteAll(ctx context.Context) (int64, error) {
	return wipe(r.db.WithContext(ctx), &entity.NonWagoProduct{})
}

// Create 创建记录
func (r *NonWagoProductRepository) Create(ctx context.Context, p *entity.NonWagoProduct) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Upsert inserts p, or restamps the existing (manufacturer, part_number) row with p's batch tag.
// created reports whether a row was inserted.
func (r *NonWagoProductRepository) Upsert(ctx context.Context, p *entity.NonWagoProduct) (created bool, err error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "manufacturer"}, {Name: "part_number"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	err = r.db.WithContext(ctx).Model(&entity.NonWagoProduct{}).
		Where("manufacturer = ? AND part_number = ?", p.Manufacturer, p.PartNumber).
		Updates(map[string]interface{}{"import_batch_id": p.ImportBatchID, "updated_at": time.Now()}).Error
	return false, err
}

// Count 统计总数
func (r *NonWagoProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.NonWagoProduct{}).Count(&count).Error
	return count, err
}
