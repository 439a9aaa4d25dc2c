package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 分镜详情（含候选图列表）
func (h *Handler) GetSceneDetail(c *gin.Context) {
	sceneID := c.Param("scene_id")

	scene, err := h.Store.GetSceneByID(sceneID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到: " + err.Error()})
		return
	}
	options, err := h.Store.GetImageOptionsBySceneID(sceneID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取候选图失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scene":         scene,
		"image_options": options,
	})
}

// 触发候选图生成（入队异步执行）
func (h *Handler) GenerateImages(c *gin.Context) {
	sceneID := c.Param("scene_id")

	var req struct {
		Count int `json:"count"`
	}
	_ = c.ShouldBindJSON(&req)

	scene, err := h.Store.GetSceneByID(sceneID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到: " + err.Error()})
		return
	}
	if scene.VisualDescription == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "分镜缺少画面描述"})
		return
	}

	if err := h.Queue.EnqueueGenerateImages(sceneID, req.Count); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "任务入队失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scene_id": sceneID,
		"message":  "候选图生成任务已入队",
	})
}

// 选中候选图
func (h *Handler) SelectImage(c *gin.Context) {
	sceneID := c.Param("scene_id")

	var req struct {
		OptionID string `json:"option_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option_id is required"})
		return
	}

	if err := h.Orc.SelectImage(sceneID, req.OptionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "选图失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scene_id":  sceneID,
		"option_id": req.OptionID,
	})
}

// 提交基础片段生成，并调度后续推进
func (h *Handler) StartBaseVideo(c *gin.Context) {
	sceneID := c.Param("scene_id")

	taskID, err := h.Orc.StartBaseVideo(c.Request.Context(), sceneID)
	if err != nil {
		// 提交失败不落状态，调用方可重试
		c.JSON(http.StatusInternalServerError, gin.H{"error": "基础片段提交失败: " + err.Error()})
		return
	}

	if err := h.Queue.EnqueueAdvanceScene(sceneID, 0); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"scene_id": sceneID,
			"task_id":  taskID,
			"message":  "任务已提交，但调度入队失败，请手动轮询",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scene_id": sceneID,
		"task_id":  taskID,
	})
}

// 查询基础片段状态（单次轮询，已完成则返回缓存）
func (h *Handler) PollBaseVideo(c *gin.Context) {
	sceneID := c.Param("scene_id")

	status, err := h.Orc.PollBaseVideo(c.Request.Context(), sceneID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scene, err := h.Store.GetSceneByID(sceneID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scene_id": sceneID,
		"status":   status,
		"task_id":  scene.BaseClipTaskId,
		"url":      scene.BaseClipUrl,
		"error":    scene.BaseClipError,
	})
}

// 提交链上的下一段续写
func (h *Handler) StartNextExtension(c *gin.Context) {
	sceneID := c.Param("scene_id")

	taskID, err := h.Orc.StartNextExtension(c.Request.Context(), sceneID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Queue.EnqueueAdvanceScene(sceneID, 0); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"scene_id": sceneID,
			"task_id":  taskID,
			"message":  "任务已提交，但调度入队失败，请手动轮询",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scene_id": sceneID,
		"task_id":  taskID,
	})
}

// 查询续写链聚合状态
func (h *Handler) PollExtensions(c *gin.Context) {
	sceneID := c.Param("scene_id")

	status, err := h.Orc.PollExtensions(c.Request.Context(), sceneID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	scene, err := h.Store.GetSceneByID(sceneID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scene_id":           sceneID,
		"status":             status,
		"extension_task_ids": scene.ExtensionTaskIds,
		"extension_urls":     scene.ExtensionUrls,
		"error":              scene.ExtensionError,
	})
}
