package service

import (
	"context"
	"fmt"
	"log"

	"PromptToVideo-server/models"

	"golang.org/x/sync/errgroup"
)

// SceneProgress 单个分镜的聚合视图，带 task_id 方便调用方决定是否继续等待
type SceneProgress struct {
	SceneId          string   `json:"scene_id"`
	Order            int      `json:"order"`
	Status           string   `json:"status"` // generating | complete | failed
	BaseClipStatus   string   `json:"base_clip_status"`
	BaseClipTaskId   string   `json:"base_clip_task_id,omitempty"`
	ExtensionStatus  string   `json:"extension_status"`
	ExtensionTaskIds []string `json:"extension_task_ids,omitempty"`
	NeededExtensions int      `json:"needed_extensions"`
}

type ProjectProgress struct {
	ProjectId     string          `json:"project_id"`
	ProjectStatus string          `json:"project_status"`
	Total         int             `json:"total"`
	Generating    int             `json:"generating"`
	Complete      int             `json:"complete"`
	Failed        int             `json:"failed"`
	Scenes        []SceneProgress `json:"scenes"`
}

const (
	sceneProgressGenerating = "generating"
	sceneProgressComplete   = "complete"
	sceneProgressFailed     = "failed"

	// 续写未开始时对外显示 pending，与 extending 区分
	extensionProgressPending = "pending"
)

// ComputeProgress 对已持久化状态做聚合。非终态分镜先做一次即时轮询再计算，
// 不同分镜的轮询互不相关，可并发执行。
// 单个分镜失败只体现在该分镜的计数里，不把项目打成 error；
// 项目只在所有分镜 complete 时翻转为 complete。
func (o *Orchestrator) ComputeProgress(ctx context.Context, projectID string) (*ProjectProgress, error) {
	project, err := o.store.GetProjectByID(projectID)
	if err != nil {
		return nil, fmt.Errorf("project not found: %v", err)
	}

	scenes, err := o.store.GetScenesByProjectID(projectID)
	if err != nil {
		// 存储层故障：项目级 error，尽力落库
		if uerr := o.store.UpdateProjectStatus(projectID, models.ProjectStatusError); uerr != nil {
			log.Printf("标记项目 error 失败: %v", uerr)
		}
		return nil, fmt.Errorf("读取分镜失败: %w", err)
	}

	// 放弃的项目不再触发任何外部轮询
	if project.Status != models.ProjectStatusAbandoned {
		g, gctx := errgroup.WithContext(ctx)
		for _, sc := range scenes {
			sc := sc
			switch {
			case sc.BaseClipStatus == models.BaseClipStatusGenerating:
				g.Go(func() error {
					if _, err := o.PollBaseVideo(gctx, sc.ID); err != nil {
						log.Printf("进度聚合轮询基础片段失败: scene=%s err=%v", sc.ID, err)
					}
					return nil
				})
			case sc.ExtensionStatus == models.ExtensionStatusExtending:
				g.Go(func() error {
					if _, err := o.PollExtensions(gctx, sc.ID); err != nil {
						log.Printf("进度聚合轮询续写失败: scene=%s err=%v", sc.ID, err)
					}
					return nil
				})
			}
		}
		_ = g.Wait()

		// 轮询可能更新了状态，重读后再计算
		scenes, err = o.store.GetScenesByProjectID(projectID)
		if err != nil {
			if uerr := o.store.UpdateProjectStatus(projectID, models.ProjectStatusError); uerr != nil {
				log.Printf("标记项目 error 失败: %v", uerr)
			}
			return nil, fmt.Errorf("读取分镜失败: %w", err)
		}
	}

	progress := &ProjectProgress{
		ProjectId:     projectID,
		ProjectStatus: project.Status,
		Total:         len(scenes),
	}

	for _, sc := range scenes {
		sp := o.sceneProgress(&sc)
		progress.Scenes = append(progress.Scenes, sp)
		switch sp.Status {
		case sceneProgressComplete:
			progress.Complete++
		case sceneProgressFailed:
			progress.Failed++
		default:
			progress.Generating++
		}
	}

	// error 状态的项目不自动翻转，必须经操作员重试回到 generating
	if progress.Total > 0 && progress.Complete == progress.Total &&
		project.Status != models.ProjectStatusComplete &&
		project.Status != models.ProjectStatusAbandoned &&
		project.Status != models.ProjectStatusError {
		if err := o.store.UpdateProjectStatus(projectID, models.ProjectStatusComplete); err != nil {
			log.Printf("更新项目完成状态失败: %v", err)
		} else {
			progress.ProjectStatus = models.ProjectStatusComplete
		}
	}
	return progress, nil
}

// sceneProgress 单分镜判定，规则按优先级：
//  1. 基础片段未完成 -> generating（基础失败则 failed）
//  2. 无需续写 -> complete
//  3. 续写未开始 -> generating（extension_status 显示 pending）
//  4. 其余交给续写链聚合结果
func (o *Orchestrator) sceneProgress(sc *models.Scene) SceneProgress {
	sp := SceneProgress{
		SceneId:          sc.ID,
		Order:            sc.Order,
		BaseClipStatus:   sc.BaseClipStatus,
		BaseClipTaskId:   sc.BaseClipTaskId,
		ExtensionStatus:  sc.ExtensionStatus,
		ExtensionTaskIds: sc.ExtensionTaskIds,
		NeededExtensions: o.neededExtensions(sc),
	}

	if sc.BaseClipStatus != models.BaseClipStatusComplete {
		if sc.BaseClipStatus == models.BaseClipStatusFailed {
			sp.Status = sceneProgressFailed
		} else {
			sp.Status = sceneProgressGenerating
		}
		return sp
	}

	if sp.NeededExtensions == 0 {
		sp.Status = sceneProgressComplete
		return sp
	}

	switch sc.ExtensionStatus {
	case models.ExtensionStatusNone:
		sp.Status = sceneProgressGenerating
		sp.ExtensionStatus = extensionProgressPending
	case models.ExtensionStatusComplete:
		sp.Status = sceneProgressComplete
	case models.ExtensionStatusFailed:
		sp.Status = sceneProgressFailed
	default:
		sp.Status = sceneProgressGenerating
	}
	return sp
}
