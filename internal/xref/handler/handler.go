package handler

import (
	"strconv"

	"github.com/Nickin919/WAIGO-sub001/internal/middleware"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/service"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	CrossReference *CrossReferenceHandler
	Project        *ProjectHandler
	FailureLog     *FailureLogHandler
	SSE            *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, repos *repository.Repositories, hub *sse.Hub) *Handlers {
	return &Handlers{
		CrossReference: NewCrossReferenceHandler(svc.Import, svc.Resolver, repos.CrossReference),
		Project:        NewProjectHandler(svc.Project, svc.Workflow),
		FailureLog:     NewFailureLogHandler(svc.FailureLog),
		SSE:            NewSSEHandler(hub),
	}
}

// RegisterRoutes mounts every engine route on an authenticated group.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	// 交叉引用
	xrefs := api.Group("/cross-references")
	{
		xrefs.GET("", h.CrossReference.List)
		xrefs.POST("/import", h.CrossReference.Import)
		xrefs.GET("/import/template", h.CrossReference.Template)
		xrefs.GET("/lookup", h.CrossReference.Lookup)
	}
	api.POST("/non-wago-products/import", h.CrossReference.ImportNonWago)

	// BOM 文档
	projects := api.Group("/projects")
	{
		projects.GET("", h.Project.List)
		projects.POST("", h.Project.Create)
		projects.GET("/:id", h.Project.Get)
		projects.POST("/:id/items", h.Project.AddItem)
		projects.PUT("/:id/items/:itemId", h.Project.UpdateItem)
		projects.DELETE("/:id/items/:itemId", h.Project.DeleteItem)
		projects.POST("/:id/submit", h.Project.Submit)
		projects.GET("/:id/suggestions", h.Project.Suggest)
		projects.POST("/:id/items/:itemId/upgrade", h.Project.ApplyUpgrade)
		projects.POST("/:id/finalize", h.Project.Finalize)
	}

	// 失败日志
	failures := api.Group("/failure-logs")
	{
		failures.GET("", h.FailureLog.List)
		failures.POST("/:id/resolve", middleware.RequireRole(middleware.RoleAdmin), h.FailureLog.Resolve)
	}

	api.GET("/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleError maps a service error onto the envelope codes.
func HandleError(c *gin.Context, err error) {
	switch service.KindOf(err) {
	case service.KindValidation:
		BadRequest(c, err.Error())
	case service.KindForbidden:
		Forbidden(c, err.Error())
	case service.KindNotFound:
		NotFound(c, err.Error())
	case service.KindPrecondition, service.KindConflict:
		Conflict(c, err.Error())
	default:
		c.Error(err)
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.CtxUserID)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
