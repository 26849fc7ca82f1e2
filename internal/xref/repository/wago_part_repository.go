package repository

import (
	"context"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"gorm.io/gorm"
)

// WagoPartRepository 规范零件查询（只读）
type WagoPartRepository struct {
	db *gorm.DB
}

func NewWagoPartRepository(db *gorm.DB) *WagoPartRepository {
	return &WagoPartRepository{db: db}
}

// FindByID 根据ID查找零件
func (r *WagoPartRepository) FindByID(ctx context.Context, id string) (*entity.WagoPart, error) {
	var part entity.WagoPart
	if err := r.db.WithContext(ctx).First(&part, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// FindByPartNumber looks up a part by exact part number. An empty catalogID
// searches every catalog; the oldest record wins when catalogs share a number.
func (r *WagoPartRepository) FindByPartNumber(ctx context.Context, partNumber, catalogID string) (*entity.WagoPart, error) {
	var part entity.WagoPart
	query := r.db.WithContext(ctx).Where("part_number = ?", partNumber)
	if catalogID != "" {
		query = query.Where("catalog_id = ?", catalogID)
	}
	err := query.Order("created_at ASC").Order("id ASC").First(&part).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}
