package handler

import (
	"github.com/Nickin919/WAIGO-sub001/internal/xref/service"
	"github.com/gin-gonic/gin"
)

// ProjectHandler BOM文档与工作流处理器
type ProjectHandler struct {
	svc      *service.ProjectService
	workflow *service.WorkflowService
}

func NewProjectHandler(svc *service.ProjectService, workflow *service.WorkflowService) *ProjectHandler {
	return &ProjectHandler{svc: svc, workflow: workflow}
}

// List 获取我的BOM文档
// GET /api/v1/projects?status=DRAFT
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.svc.List(c.Request.Context(), GetUserID(c), c.Query("status"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": projects, "total": len(projects)})
}

// Create 创建BOM文档
// POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	project, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, project)
}

// Get 获取BOM文档详情
// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, project)
}

// AddItem 新增行项
// POST /api/v1/projects/:id/items
func (h *ProjectHandler) AddItem(c *gin.Context) {
	var req service.ItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, item)
}

// UpdateItem 更新行项
// PUT /api/v1/projects/:id/items/:itemId
func (h *ProjectHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// DeleteItem 删除行项
// DELETE /api/v1/projects/:id/items/:itemId
func (h *ProjectHandler) DeleteItem(c *gin.Context) {
	if err := h.svc.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ==================== 工作流 ====================

// Submit 提交并解析BOM
// POST /api/v1/projects/:id/submit
func (h *ProjectHandler) Submit(c *gin.Context) {
	project, err := h.workflow.Submit(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, project)
}

// Suggest 获取替换建议
// GET /api/v1/projects/:id/suggestions
func (h *ProjectHandler) Suggest(c *gin.Context) {
	suggestions, err := h.workflow.Suggest(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": suggestions})
}

// ApplyUpgradeRequest 接受替换请求
type ApplyUpgradeRequest struct {
	WagoPartID string `json:"wago_part_id" binding:"required"`
}

// ApplyUpgrade 接受替换
// POST /api/v1/projects/:id/items/:itemId/upgrade
func (h *ProjectHandler) ApplyUpgrade(c *gin.Context) {
	var req ApplyUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.workflow.ApplyUpgrade(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.WagoPartID, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// Finalize 完成BOM
// POST /api/v1/projects/:id/finalize
func (h *ProjectHandler) Finalize(c *gin.Context) {
	project, err := h.workflow.Finalize(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, project)
}
