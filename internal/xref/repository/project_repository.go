package repository

import (
	"context"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"gorm.io/gorm"
)

// ProjectRepository BOM文档仓库
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create 创建BOM文档
func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID 查找文档（不含行项）
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var p entity.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindWithItems 查找文档，行项按 item_number 排序并带出 WAGO 零件
func (r *ProjectRepository) FindWithItems(ctx context.Context, id string) (*entity.Project, error) {
	var p entity.Project
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_number ASC").Order("created_at ASC")
		}).
		Preload("Items.WagoPart").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByOwner 获取用户的BOM文档列表
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID, status string) ([]entity.Project, error) {
	var projects []entity.Project
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// TransitionStatus moves a project from one status to another only if it is
// still in the expected status. It returns the number of rows changed.
func (r *ProjectRepository) TransitionStatus(ctx context.Context, id, from, to string, extra map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&entity.Project{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListItems 获取行项（文档顺序）
func (r *ProjectRepository) ListItems(ctx context.Context, projectID string) ([]entity.ProjectItem, error) {
	var items []entity.ProjectItem
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("item_number ASC").
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// GetMaxItemNumber 获取最大 item_number
func (r *ProjectRepository) GetMaxItemNumber(ctx context.Context, projectID string) (int, error) {
	var maxNum int
	err := r.db.WithContext(ctx).Model(&entity.ProjectItem{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(item_number), 0)").
		Scan(&maxNum).Error
	return maxNum, err
}

// CreateItem 创建行项
func (r *ProjectRepository) CreateItem(ctx context.Context, item *entity.ProjectItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindItemByID 根据ID查找行项
func (r *ProjectRepository) FindItemByID(ctx context.Context, id string) (*entity.ProjectItem, error) {
	var item entity.ProjectItem
	if err := r.db.WithContext(ctx).Preload("WagoPart").First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem 保存行项
func (r *ProjectRepository) UpdateItem(ctx context.Context, item *entity.ProjectItem) error {
	return r.db.WithContext(ctx).Omit("WagoPart").Save(item).Error
}

// UpdateItemFields 更新行项的部分字段
func (r *ProjectRepository) UpdateItemFields(ctx context.Context, itemID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&entity.ProjectItem{}).Where("id = ?", itemID).Updates(fields).Error
}

// DeleteItem 删除行项
func (r *ProjectRepository) DeleteItem(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.ProjectItem{}, "id = ?", id).Error
}
