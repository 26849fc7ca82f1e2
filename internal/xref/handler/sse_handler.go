package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"github.com/gin-gonic/gin"
)

// SSEHandler 进度事件流
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: 30 * time.Second}
}

// Stream 订阅当前用户的导入/BOM 进度
// GET /api/v1/events?token=&types=import_progress,bom_progress&subject=<batch or project id>
func (h *SSEHandler) Stream(c *gin.Context) {
	filter, err := sse.ParseFilter(c.Query("types"), c.Query("subject"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID := GetUserID(c)
	client := &sse.Client{
		ID:     fmt.Sprintf("%s_%d", userID, time.Now().UnixNano()),
		UserID: userID,
		Filter: filter,
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	types := make([]string, 0, len(filter.Types))
	for _, t := range sse.EventTypes {
		if len(filter.Types) == 0 || filter.Types[t] {
			types = append(types, t)
		}
	}
	c.SSEvent("connected", gin.H{"client_id": client.ID, "types": types, "subject": filter.Subject})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			h.hub.Unregister(client.ID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.SSEvent(event.EventType, event.Data)
		case <-heartbeat.C:
			io.WriteString(c.Writer, ": keepalive\n\n")
		}
		c.Writer.Flush()
	}
}
