package routers

import (
	"PromptToVideo-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.POST("/projects/:project_id/script", h.MarkScripting)
		v1.POST("/projects/:project_id/scenes", h.CreateScenes)
		v1.GET("/projects/:project_id/progress", h.GetProgress)
		v1.POST("/projects/:project_id/retry", h.RetryProject)
		v1.POST("/projects/:project_id/abandon", h.AbandonProject)

		v1.GET("/scenes/:scene_id", h.GetSceneDetail)
		v1.POST("/scenes/:scene_id/images", h.GenerateImages)
		v1.POST("/scenes/:scene_id/select", h.SelectImage)
		v1.POST("/scenes/:scene_id/video", h.StartBaseVideo)
		v1.GET("/scenes/:scene_id/video", h.PollBaseVideo)
		v1.POST("/scenes/:scene_id/extensions", h.StartNextExtension)
		v1.GET("/scenes/:scene_id/extensions", h.PollExtensions)
	}
	r.GET("/projects/:project_id/progress/wss", h.ProgressWebSocket)
	return r
}
