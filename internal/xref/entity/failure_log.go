package entity

import "time"

// Failure sources
const (
	FailureSourceCrossRefImport = "cross_reference_import"
	FailureSourceNonWagoImport  = "non_wago_import"
	FailureSourceBOMWorkflow    = "bom_workflow"
)

// Failure types
const (
	FailureTypeWagoPartNotFound = "wago_part_not_found"
	FailureTypeNoEquivalence    = "no_equivalence_reference"
	FailureTypeInvalidRow       = "invalid_row"
)

// FailureLog 解析失败审计记录（只追加，resolved_* 仅可写一次）
type FailureLog struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	Source        string     `json:"source" gorm:"size:32;not null;index"`
	FailureType   string     `json:"failure_type" gorm:"size:64;not null"`
	ImportBatchID *string    `json:"import_batch_id,omitempty" gorm:"size:64;index"`
	Context       JSONB      `json:"context,omitempty" gorm:"type:jsonb"`
	Message       string     `json:"message" gorm:"type:text;not null"`
	UserID        *string    `json:"user_id,omitempty" gorm:"size:64"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty" gorm:"index"`
	ResolvedBy    *string    `json:"resolved_by,omitempty" gorm:"size:64"`
	Resolution    string     `json:"resolution,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`
}

func (FailureLog) TableName() string {
	return "failure_logs"
}

// IsResolved reports whether the entry has been acknowledged.
func (f *FailureLog) IsResolved() bool {
	return f.ResolvedAt != nil
}
