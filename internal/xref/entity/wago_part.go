package entity

import "time"

// WagoPart 规范零件（目录数据，本引擎只读）
type WagoPart struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	PartNumber  string    `json:"part_number" gorm:"size:64;not null;uniqueIndex:idx_wago_parts_catalog_pn,priority:2;index"`
	Description string    `json:"description" gorm:"type:text"`
	CatalogID   string    `json:"catalog_id" gorm:"size:32;not null;uniqueIndex:idx_wago_parts_catalog_pn,priority:1"`
	Series      string    `json:"series,omitempty" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (WagoPart) TableName() string {
	return "wago_parts"
}
