package api

import (
	"net/http"
	"time"

	"PromptToVideo-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	progressPushInterval = 2 * time.Second
	progressWriteWait    = 5 * time.Second
)

// 项目进度 WebSocket 推送：先推一次当前聚合，之后周期性重算并在有变化时推送，
// 项目到达终态（complete / error / abandoned）后发送最终状态并关闭连接。
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	progress, err := h.Orc.ComputeProgress(c.Request.Context(), projectID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "project not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(progress)

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	prevComplete := progress.Complete
	prevFailed := progress.Failed

	for range ticker.C {
		cur, err := h.Orc.ComputeProgress(c.Request.Context(), projectID)
		if err != nil {
			// 查询失败继续重试
			continue
		}

		if cur.Complete != prevComplete || cur.Failed != prevFailed {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevComplete = cur.Complete
			prevFailed = cur.Failed
		} else if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(progressWriteWait)); err != nil {
			// 进度没变化时靠 ping 探活，客户端断开即结束推送
			break
		}

		if cur.ProjectStatus == models.ProjectStatusComplete ||
			cur.ProjectStatus == models.ProjectStatusError ||
			cur.ProjectStatus == models.ProjectStatusAbandoned {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}
