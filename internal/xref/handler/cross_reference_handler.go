package handler

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CrossReferenceHandler 交叉引用处理器
type CrossReferenceHandler struct {
	importSvc *service.ImportService
	resolver  *service.Resolver
	repo      *repository.CrossReferenceRepository
}

func NewCrossReferenceHandler(importSvc *service.ImportService, resolver *service.Resolver, repo *repository.CrossReferenceRepository) *CrossReferenceHandler {
	return &CrossReferenceHandler{importSvc: importSvc, resolver: resolver, repo: repo}
}

// ImportRequest JSON 导入请求
type ImportRequest struct {
	Rows      json.RawMessage `json:"rows"`
	Replace   bool            `json:"replace"`
	CatalogID string          `json:"catalog_id"`
}

// Import 导入交叉引用
// POST /api/v1/cross-references/import
func (h *CrossReferenceHandler) Import(c *gin.Context) {
	rows, opts, err := h.readRows(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	result, err := h.importSvc.ImportCrossReferences(c.Request.Context(), rows, opts)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// ImportNonWago 导入无等效产品
// POST /api/v1/non-wago-products/import
func (h *CrossReferenceHandler) ImportNonWago(c *gin.Context) {
	rows, opts, err := h.readRows(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	result, err := h.importSvc.ImportNonWagoProducts(c.Request.Context(), rows, opts)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// readRows accepts a JSON envelope, a CSV or XLSX body, or a multipart "file" upload.
func (h *CrossReferenceHandler) readRows(c *gin.Context) ([]service.Row, service.ImportOptions, error) {
	opts := service.ImportOptions{
		UserID:    GetUserID(c),
		Replace:   queryBool(c, "replace"),
		CatalogID: c.Query("catalog_id"),
	}
	limit := h.importSvc.MaxRows()

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "text/csv":
		rows, lines, err := service.ReadCSVRows(c.Request.Body, c.Query("charset"), limit)
		opts.Lines = lines
		return rows, opts, asValidation(err)
	case xlsxContentType:
		rows, lines, err := service.ReadXLSXRows(c.Request.Body, limit)
		opts.Lines = lines
		return rows, opts, asValidation(err)
	case "multipart/form-data":
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			return nil, opts, service.ErrValidationReason("file is required")
		}
		defer file.Close()
		if v := c.PostForm("replace"); v != "" {
			opts.Replace = parseBool(v)
		}
		if v := c.PostForm("catalog_id"); v != "" {
			opts.CatalogID = v
		}
		var rows []service.Row
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".xlsx":
			rows, opts.Lines, err = service.ReadXLSXRows(file, limit)
		case ".csv":
			charset := c.PostForm("charset")
			if charset == "" {
				charset = c.Query("charset")
			}
			rows, opts.Lines, err = service.ReadCSVRows(file, charset, limit)
		default:
			return nil, opts, service.ErrValidationReason("only .csv and .xlsx files are supported")
		}
		return rows, opts, asValidation(err)
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, opts, service.ErrValidationReason("invalid request body: " + err.Error())
	}
	if req.Replace {
		opts.Replace = true
	}
	if req.CatalogID != "" {
		opts.CatalogID = req.CatalogID
	}
	rows, err := service.DecodeRows(req.Rows)
	return rows, opts, err
}

// Template 下载导入模板
// GET /api/v1/cross-references/import/template
func (h *CrossReferenceHandler) Template(c *gin.Context) {
	f, err := service.GenerateImportTemplate()
	if err != nil {
		InternalError(c, "生成模板失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=\"cross_reference_import_template.xlsx\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

// Lookup 查询零件的规范匹配与所有交叉引用
// GET /api/v1/cross-references/lookup?part_number=&manufacturer=&catalog_id=
func (h *CrossReferenceHandler) Lookup(c *gin.Context) {
	partNumber := strings.TrimSpace(c.Query("part_number"))
	if partNumber == "" {
		BadRequest(c, "part_number is required")
		return
	}
	resolver := h.resolver
	if catalogID := strings.TrimSpace(c.Query("catalog_id")); catalogID != "" {
		resolver = resolver.WithCatalog(catalogID)
	}
	res, err := resolver.ListAll(c.Request.Context(), partNumber, c.Query("manufacturer"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, res)
}

// List 分页查询交叉引用（可按导入批次过滤）
// GET /api/v1/cross-references?import_batch_id=&manufacturer=
func (h *CrossReferenceHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.repo.List(c.Request.Context(), repository.ListParams{
		ImportBatchID: c.Query("import_batch_id"),
		Manufacturer:  c.Query("manufacturer"),
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		InternalError(c, "获取交叉引用失败: "+err.Error())
		return
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

func queryBool(c *gin.Context, key string) bool {
	return parseBool(c.Query(key))
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func asValidation(err error) error {
	if err == nil {
		return nil
	}
	return service.ErrValidationReason(fmt.Sprintf("unreadable upload: %v", err))
}
