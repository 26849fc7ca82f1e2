package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/shopspring/decimal"
)

// ProjectService BOM文档与行项维护（仅草稿状态可编辑）
type ProjectService struct {
	projects *repository.ProjectRepository
}

func NewProjectService(projects *repository.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

// CreateProjectInput 创建BOM文档
type CreateProjectInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// ItemInput 新增行项
type ItemInput struct {
	Manufacturer   string              `json:"manufacturer"`
	PartNumber     string              `json:"part_number"`
	Description    string              `json:"description"`
	Quantity       *int                `json:"quantity"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	Classification *string             `json:"classification"`
	Notes          string              `json:"notes"`
}

// UpdateItemInput 更新行项（nil 字段不修改）
type UpdateItemInput struct {
	Manufacturer   *string              `json:"manufacturer"`
	PartNumber     *string              `json:"part_number"`
	Description    *string              `json:"description"`
	Quantity       *int                 `json:"quantity"`
	UnitPrice      *decimal.NullDecimal `json:"unit_price"`
	Classification *string              `json:"classification"`
	Notes          *string              `json:"notes"`
}

// Create 创建BOM文档（DRAFT）
func (s *ProjectService) Create(ctx context.Context, input *CreateProjectInput, ownerID string) (*entity.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	now := time.Now()
	project := &entity.Project{
		ID:          entity.NewID(),
		Name:        name,
		Description: input.Description,
		OwnerID:     ownerID,
		Status:      entity.ProjectStatusDraft,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// Get 获取BOM文档（含行项）
func (s *ProjectService) Get(ctx context.Context, id, userID string) (*entity.Project, error) {
	project, err := s.projects.FindWithItems(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "project", id)
	}
	if project.OwnerID != userID {
		return nil, forbiddenf("project %s belongs to another user", id)
	}
	return project, nil
}

// List 获取当前用户的BOM文档
func (s *ProjectService) List(ctx context.Context, ownerID, status string) ([]entity.Project, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && entity.StatusRank(status) < 0 {
		return nil, validationf("unknown status: %s", status)
	}
	projects, err := s.projects.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// AddItem 新增行项
func (s *ProjectService) AddItem(ctx context.Context, projectID, userID string, input *ItemInput) (*entity.ProjectItem, error) {
	project, err := s.loadEditable(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity < 1 {
		return nil, validationf("quantity must be at least 1")
	}

	maxNum, err := s.projects.GetMaxItemNumber(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("next item number: %w", err)
	}

	now := time.Now()
	item := &entity.ProjectItem{
		ID:             entity.NewID(),
		ProjectID:      projectID,
		Revision:       project.Revision,
		ItemNumber:     maxNum + 1,
		Manufacturer:   strings.TrimSpace(input.Manufacturer),
		PartNumber:     strings.TrimSpace(input.PartNumber),
		Description:    input.Description,
		Quantity:       quantity,
		UnitPrice:      input.UnitPrice,
		Classification: input.Classification,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.projects.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// UpdateItem 更新行项
func (s *ProjectService) UpdateItem(ctx context.Context, projectID, itemID, userID string, input *UpdateItemInput) (*entity.ProjectItem, error) {
	if _, err := s.loadEditable(ctx, projectID, userID); err != nil {
		return nil, err
	}
	item, err := s.loadItem(ctx, projectID, itemID)
	if err != nil {
		return nil, err
	}

	if input.Quantity != nil {
		if *input.Quantity < 1 {
			return nil, validationf("quantity must be at least 1")
		}
		item.Quantity = *input.Quantity
	}
	if input.Manufacturer != nil {
		item.Manufacturer = strings.TrimSpace(*input.Manufacturer)
	}
	if input.PartNumber != nil {
		item.PartNumber = strings.TrimSpace(*input.PartNumber)
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.UnitPrice != nil {
		item.UnitPrice = *input.UnitPrice
	}
	if input.Classification != nil {
		item.Classification = input.Classification
	}
	if input.Notes != nil {
		item.Notes = *input.Notes
	}
	item.UpdatedAt = time.Now()

	if err := s.projects.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return item, nil
}

// DeleteItem 删除行项
func (s *ProjectService) DeleteItem(ctx context.Context, projectID, itemID, userID string) error {
	if _, err := s.loadEditable(ctx, projectID, userID); err != nil {
		return err
	}
	if _, err := s.loadItem(ctx, projectID, itemID); err != nil {
		return err
	}
	if err := s.projects.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// loadEditable returns the project if userID owns it and it is still DRAFT.
func (s *ProjectService) loadEditable(ctx context.Context, projectID, userID string) (*entity.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFoundOr(err, "project", projectID)
	}
	if project.OwnerID != userID {
		return nil, forbiddenf("only the project owner can edit items")
	}
	if project.Status != entity.ProjectStatusDraft {
		return nil, preconditionf("project is %s, items can only be edited while DRAFT", project.Status)
	}
	return project, nil
}

func (s *ProjectService) loadItem(ctx context.Context, projectID, itemID string) (*entity.ProjectItem, error) {
	item, err := s.projects.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "item", itemID)
	}
	if item.ProjectID != projectID {
		return nil, notFoundf("item %s not found in project %s", itemID, projectID)
	}
	return item, nil
}
