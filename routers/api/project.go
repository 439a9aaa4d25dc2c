package api

import (
	"net/http"
	"time"

	"PromptToVideo-server/models"
	"PromptToVideo-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 持有各组件实例，由 main 装配后注入
type Handler struct {
	Store *models.SQLStore
	Orc   *service.Orchestrator
	Queue *service.Queue
}

// 创建项目
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Prompt      string `json:"prompt"`
		Duration    int    `json:"duration"`
		AspectRatio string `json:"aspect_ratio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}

	project := models.Project{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
		Status:      models.ProjectStatusDraft,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := h.Store.CreateProject(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": project.ID,
		"status":     project.Status,
	})
}

// 获取项目详情（项目 + 分镜列表）
func (h *Handler) GetProject(c *gin.Context) {
	projectID := c.Param("project_id")

	project, err := h.Store.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	scenes, err := h.Store.GetScenesByProjectID(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分镜失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_detail": project,
		"scenes":         scenes,
	})
}

// 标记项目开始生成剧本（剧本由外部 LLM 产出，完成后再调 CreateScenes 入库）
func (h *Handler) MarkScripting(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := h.Store.GetProjectByID(projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if err := h.Store.UpdateProjectStatus(projectID, models.ProjectStatusScripting); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新项目状态失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": projectID, "status": models.ProjectStatusScripting})
}

// 剧本入库：按段落建档分镜
func (h *Handler) CreateScenes(c *gin.Context) {
	projectID := c.Param("project_id")

	var req struct {
		Segments []service.ScriptSegment `json:"segments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scenes, err := h.Orc.CreateScenesFromScript(projectID, req.Segments)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建分镜失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id":   projectID,
		"total_scenes": len(scenes),
		"scenes":       scenes,
	})
}

// 项目进度聚合
func (h *Handler) GetProgress(c *gin.Context) {
	projectID := c.Param("project_id")

	progress, err := h.Orc.ComputeProgress(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "计算进度失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// 操作员重试：error 状态的项目重新进入 generating，并重新调度未终态分镜
func (h *Handler) RetryProject(c *gin.Context) {
	projectID := c.Param("project_id")

	if err := h.Orc.RetryProject(projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "重试失败: " + err.Error()})
		return
	}

	scenes, err := h.Store.GetScenesByProjectID(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分镜失败: " + err.Error()})
		return
	}
	requeued := 0
	for _, sc := range scenes {
		if sc.BaseClipStatus == models.BaseClipStatusComplete &&
			(sc.ExtensionStatus == models.ExtensionStatusComplete || sc.ExtensionStatus == models.ExtensionStatusFailed) {
			continue
		}
		if sc.BaseClipStatus == models.BaseClipStatusFailed {
			continue
		}
		if err := h.Queue.EnqueueAdvanceScene(sc.ID, 0); err == nil {
			requeued++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"status":     models.ProjectStatusGenerating,
		"requeued":   requeued,
	})
}

// 本地放弃项目：停止轮询与续写，已提交的外部任务不取消
func (h *Handler) AbandonProject(c *gin.Context) {
	projectID := c.Param("project_id")

	if err := h.Orc.AbandonProject(projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "放弃项目失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"status":     models.ProjectStatusAbandoned,
		"message":    "项目已放弃，不再推进",
	})
}
