package handler

import (
	"strconv"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/service"
	"github.com/gin-gonic/gin"
)

// FailureLogHandler 失败日志处理器
type FailureLogHandler struct {
	svc *service.FailureLogService
}

func NewFailureLogHandler(svc *service.FailureLogService) *FailureLogHandler {
	return &FailureLogHandler{svc: svc}
}

// List 查询失败日志
// GET /api/v1/failure-logs?source=&resolved=&from=&to=&limit=&offset=
func (h *FailureLogHandler) List(c *gin.Context) {
	input := service.ListFailureLogsInput{Source: c.Query("source")}

	if v := c.Query("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(c, "resolved must be true or false")
			return
		}
		input.Resolved = &b
	}
	for key, dst := range map[string]**time.Time{"from": &input.From, "to": &input.To} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := parseTime(v, key == "to")
		if err != nil {
			BadRequest(c, key+" must be an RFC3339 timestamp or YYYY-MM-DD date")
			return
		}
		*dst = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			BadRequest(c, "limit must be a number")
			return
		}
		input.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			BadRequest(c, "offset must be a number")
			return
		}
		input.Offset = n
	}

	page, err := h.svc.List(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, page)
}

// ResolveRequest 处理失败记录请求
type ResolveRequest struct {
	Resolution string `json:"resolution"`
}

// Resolve 标记失败记录已处理（仅一次）
// POST /api/v1/failure-logs/:id/resolve
func (h *FailureLogHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	entry, err := h.svc.Resolve(c.Request.Context(), c.Param("id"), GetUserID(c), req.Resolution)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, entry)
}

// parseTime accepts RFC3339 or a bare date in server local time. A bare date used
// as an upper bound covers the whole day.
func parseTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}
