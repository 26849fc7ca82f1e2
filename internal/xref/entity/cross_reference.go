package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultCompatibilityScore is stamped on every cross reference at creation.
const DefaultCompatibilityScore = 1.0

// CrossReference maps a third-party manufacturer part to a WAGO part.
// (original_manufacturer, original_part_number, wago_part_id) is unique.
type CrossReference struct {
	ID                   string  `json:"id" gorm:"primaryKey;size:32"`
	OriginalManufacturer string  `json:"original_manufacturer" gorm:"size:200;not null;uniqueIndex:idx_xref_identity,priority:1"`
	OriginalPartNumber   string  `json:"original_part_number" gorm:"size:128;not null;uniqueIndex:idx_xref_identity,priority:2"`
	WagoPartID           string  `json:"wago_part_id" gorm:"size:32;not null;uniqueIndex:idx_xref_identity,priority:3"`
	CompatibilityScore   float64 `json:"compatibility_score" gorm:"not null;default:1"`
	Notes                string  `json:"notes,omitempty" gorm:"type:text"`

	// provenance
	PartNumberA    string              `json:"part_number_a,omitempty" gorm:"size:128"`
	PartNumberB    string              `json:"part_number_b,omitempty" gorm:"size:128"`
	WagoCrossA     string              `json:"wago_cross_a,omitempty" gorm:"size:64"`
	WagoCrossB     string              `json:"wago_cross_b,omitempty" gorm:"size:64"`
	Active         *bool               `json:"active,omitempty"`
	EstimatedPrice decimal.NullDecimal `json:"estimated_price" gorm:"type:numeric(15,4)"`
	NotesA         string              `json:"notes_a,omitempty" gorm:"type:text"`
	NotesB         string              `json:"notes_b,omitempty" gorm:"type:text"`
	Author         string              `json:"author,omitempty" gorm:"size:128"`
	LastModified   *datatypes.Date     `json:"last_modified,omitempty"`
	ImportBatchID  string              `json:"import_batch_id,omitempty" gorm:"size:64;index"`
	CreatedBy      *string             `json:"created_by,omitempty" gorm:"size:64"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`

	WagoPart *WagoPart `json:"wago_part,omitempty" gorm:"foreignKey:WagoPartID"`
}

func (CrossReference) TableName() string {
	return "cross_references"
}

// NonWagoProduct 无WAGO等效的第三方产品
type NonWagoProduct struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	Manufacturer  string    `json:"manufacturer" gorm:"size:200;not null;uniqueIndex:idx_non_wago_identity,priority:1"`
	PartNumber    string    `json:"part_number" gorm:"size:128;not null;uniqueIndex:idx_non_wago_identity,priority:2"`
	ImportBatchID string    `json:"import_batch_id,omitempty" gorm:"size:64;index"`
	CreatedBy     *string   `json:"created_by,omitempty" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (NonWagoProduct) TableName() string {
	return "non_wago_products"
}
