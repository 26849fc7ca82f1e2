package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project 状态
const (
	ProjectStatusDraft      = "DRAFT"
	ProjectStatusProcessing = "PROCESSING"
	ProjectStatusSubmitted  = "SUBMITTED"
	ProjectStatusCompleted  = "COMPLETED"
)

var statusRank = map[string]int{
	ProjectStatusDraft:      0,
	ProjectStatusProcessing: 1,
	ProjectStatusSubmitted:  2,
	ProjectStatusCompleted:  3,
}

// StatusRank orders project statuses; unknown statuses rank -1.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

// Project BOM文档
type Project struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	Name        string     `json:"name" gorm:"size:200;not null"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	OwnerID     string     `json:"owner_id" gorm:"size:64;not null;index"`
	Status      string     `json:"status" gorm:"size:16;not null;default:DRAFT;index"`
	Revision    int        `json:"revision" gorm:"not null;default:1"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items []ProjectItem `json:"items,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectItem BOM行项
type ProjectItem struct {
	ID                string              `json:"id" gorm:"primaryKey;size:32"`
	ProjectID         string              `json:"project_id" gorm:"size:32;not null;index"`
	Revision          int                 `json:"revision" gorm:"not null;default:1"`
	ItemNumber        int                 `json:"item_number" gorm:"not null;default:0"`
	Manufacturer      string              `json:"manufacturer" gorm:"size:200"`
	PartNumber        string              `json:"part_number" gorm:"size:128"`
	Description       string              `json:"description,omitempty" gorm:"type:text"`
	Quantity          int                 `json:"quantity" gorm:"not null;default:1"`
	UnitPrice         decimal.NullDecimal `json:"unit_price" gorm:"type:numeric(15,4)"`
	WagoPartID        *string             `json:"wago_part_id,omitempty" gorm:"size:32"`
	IsWagoPart        bool                `json:"is_wago_part" gorm:"not null;default:false"`
	HasWagoEquivalent bool                `json:"has_wago_equivalent" gorm:"not null;default:false"`
	Classification    *string             `json:"classification,omitempty" gorm:"size:64"`
	Notes             string              `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`

	WagoPart *WagoPart `json:"wago_part,omitempty" gorm:"foreignKey:WagoPartID"`
}

func (ProjectItem) TableName() string {
	return "project_items"
}
