package service

import (
	"context"
	"fmt"
	"log"

	"PromptToVideo-server/models"
)

// neededExtensions 目标时长超出基础片段的部分，按基础片段时长向上取整
func (o *Orchestrator) neededExtensions(scene *models.Scene) int {
	if scene.Duration <= o.set.BaseUnitSec {
		return 0
	}
	return (scene.Duration - o.set.BaseUnitSec + o.set.BaseUnitSec - 1) / o.set.BaseUnitSec
}

// StartNextExtension 提交链上的下一段续写。
// 续写是真正的链而不是扇出：第 N 段必须引用第 N-1 段（N=1 引用基础片段）的 task_id，
// 因此只有当前一段已解析出结果（url 列表追平 task_id 列表）才允许提交下一段。
// 提交成功后立即把 task_id 追加落库，列表只增不减。
func (o *Orchestrator) StartNextExtension(ctx context.Context, sceneID string) (string, error) {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return "", fmt.Errorf("scene not found: %v", err)
	}
	if scene.BaseClipStatus != models.BaseClipStatusComplete {
		return "", fmt.Errorf("scene %s base clip not complete (status=%s)", sceneID, scene.BaseClipStatus)
	}

	needed := o.neededExtensions(scene)
	if needed == 0 {
		return "", ErrNoExtensionDue
	}

	switch scene.ExtensionStatus {
	case models.ExtensionStatusFailed:
		// 链上已有失败，不再提交后续片段
		return "", ErrChainFailed
	case models.ExtensionStatusComplete:
		return "", ErrChainComplete
	}

	if len(scene.ExtensionTaskIds) >= needed {
		// 全部提交完毕，剩下的交给 PollExtensions
		return "", ErrChainBusy
	}
	if len(scene.ExtensionUrls) < len(scene.ExtensionTaskIds) {
		// 前一段尚未到终态，提交下一段违反链序
		return "", ErrChainBusy
	}

	sourceTaskID := scene.BaseClipTaskId
	if n := len(scene.ExtensionTaskIds); n > 0 {
		sourceTaskID = scene.ExtensionTaskIds[n-1]
	}

	taskID, err := o.gen.Submit(ctx, GenSpec{
		Kind:         TaskKindExtension,
		Prompt:       scene.VisualDescription,
		SourceTaskID: sourceTaskID,
		DurationSec:  o.set.BaseUnitSec,
		Seed:         o.clampSeed(scene.Seed), // 种子固定，保证整条链风格一致
	})
	if err != nil {
		// 不推进链，由调用方按原序重试
		return "", fmt.Errorf("续写片段提交失败: %w", err)
	}

	if err := o.store.AppendExtensionTaskID(sceneID, taskID); err != nil {
		return "", fmt.Errorf("追加续写任务失败: %v", err)
	}
	log.Printf("续写任务已提交: scene=%s #%d task=%s source=%s",
		sceneID, len(scene.ExtensionTaskIds)+1, taskID, sourceTaskID)
	return taskID, nil
}

// PollExtensions 轮询未解析的续写任务并聚合分镜级状态。
//   - 已 complete 的分镜直接返回缓存聚合，不访问生成服务
//   - 任一任务失败立即落 failed 短路，即使其余仍在进行
//   - URL 按任务顺序逐个落库，两个列表始终保持对应；全部解析且数量达到
//     needed 时聚合为 complete
//
// 瞬时轮询错误不改动任何状态，等下一次调度。
func (o *Orchestrator) PollExtensions(ctx context.Context, sceneID string) (string, error) {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return "", fmt.Errorf("scene not found: %v", err)
	}

	switch scene.ExtensionStatus {
	case models.ExtensionStatusComplete:
		return models.ExtensionStatusComplete, nil
	case models.ExtensionStatusFailed:
		return models.ExtensionStatusFailed, nil
	case models.ExtensionStatusNone:
		return models.ExtensionStatusNone, nil
	}

	resolved := append([]string(nil), scene.ExtensionUrls...)

	for i := len(resolved); i < len(scene.ExtensionTaskIds); i++ {
		taskID := scene.ExtensionTaskIds[i]
		res, err := o.gen.Poll(ctx, taskID)
		if err != nil {
			log.Printf("续写轮询网络错误(下次重试): task=%s err=%v", taskID, err)
			return models.ExtensionStatusExtending, nil
		}

		switch res.State {
		case GenStateFailed:
			if err := o.store.SetExtensionFailed(sceneID, res.ErrMsg); err != nil {
				return "", fmt.Errorf("记录续写失败状态失败: %v", err)
			}
			log.Printf("续写失败: scene=%s task=%s err=%s", sceneID, taskID, res.ErrMsg)
			return models.ExtensionStatusFailed, nil

		case GenStateComplete:
			url := o.mirrorUrl(res.Url, fmt.Sprintf("scenes/%s/ext_%d.mp4", sceneID, i+1))
			resolved = append(resolved, url)
			if err := o.store.SetExtensionUrls(sceneID, resolved, models.ExtensionStatusExtending); err != nil {
				return "", fmt.Errorf("记录续写结果失败: %v", err)
			}

		default:
			// 仍在生成，链上它后面也不会有已提交的任务
			return models.ExtensionStatusExtending, nil
		}
	}

	needed := o.neededExtensions(scene)
	if len(scene.ExtensionTaskIds) == needed && len(resolved) == needed {
		if err := o.store.SetExtensionUrls(sceneID, resolved, models.ExtensionStatusComplete); err != nil {
			return "", fmt.Errorf("记录续写完成状态失败: %v", err)
		}
		log.Printf("续写链完成: scene=%s segments=%d", sceneID, needed)
		return models.ExtensionStatusComplete, nil
	}
	return models.ExtensionStatusExtending, nil
}
