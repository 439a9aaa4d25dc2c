package service

import (
	"context"
	"fmt"
	"log"

	"PromptToVideo-server/models"
)

// StartBaseVideo 提交分镜的基础片段生成任务。
// 前置条件：分镜已有选图，或至少有画面描述可作提示词。
// 种子在首次提交时分配并落库，之后所有续写沿用同一个值。
// 提交失败不落任何状态，错误抛给调用方重试。
func (o *Orchestrator) StartBaseVideo(ctx context.Context, sceneID string) (string, error) {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return "", fmt.Errorf("scene not found: %v", err)
	}
	if scene.BaseClipStatus == models.BaseClipStatusGenerating || scene.BaseClipStatus == models.BaseClipStatusComplete {
		return scene.BaseClipTaskId, nil
	}
	if scene.ChosenImageUrl == "" && scene.VisualDescription == "" {
		return "", fmt.Errorf("scene %s has neither chosen image nor visual description", sceneID)
	}

	seed := scene.Seed
	if seed == 0 {
		seed = o.randomSeed()
		if err := o.store.UpdateSceneSeed(sceneID, seed); err != nil {
			return "", fmt.Errorf("写入分镜种子失败: %v", err)
		}
	}

	taskID, err := o.gen.Submit(ctx, GenSpec{
		Kind:        TaskKindBaseVideo,
		Prompt:      scene.VisualDescription,
		ImageUrl:    scene.ChosenImageUrl,
		AspectRatio: o.aspectRatioFor(scene.ProjectId),
		DurationSec: o.set.BaseUnitSec,
		Seed:        o.clampSeed(seed),
	})
	if err != nil {
		// 分镜保持 none，调用方可直接重试
		return "", fmt.Errorf("基础片段提交失败: %w", err)
	}

	if err := o.store.SetBaseClipSubmitted(sceneID, taskID); err != nil {
		return "", fmt.Errorf("记录基础片段任务失败: %v", err)
	}

	// 第一条基础片段提交即视为项目进入生成阶段
	if p, err := o.store.GetProjectByID(scene.ProjectId); err == nil &&
		(p.Status == models.ProjectStatusAwaitingSelection || p.Status == models.ProjectStatusScripting) {
		if err := o.store.UpdateProjectStatus(p.ID, models.ProjectStatusGenerating); err != nil {
			log.Printf("更新项目状态失败: %v", err)
		}
	}

	log.Printf("基础片段任务已提交: scene=%s task=%s seed=%d", sceneID, taskID, seed)
	return taskID, nil
}

// PollBaseVideo 单次查询基础片段任务。三种终态：
//   - success 且拿到 URL：落 complete
//   - 厂商明确失败：落 failed
//   - success 但无 URL：适配层已归一为 pending，这里不落任何状态等待下次轮询
//
// 已 complete 的分镜直接返回缓存结果，不再访问生成服务。
func (o *Orchestrator) PollBaseVideo(ctx context.Context, sceneID string) (string, error) {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return "", fmt.Errorf("scene not found: %v", err)
	}

	switch scene.BaseClipStatus {
	case models.BaseClipStatusComplete:
		return models.BaseClipStatusComplete, nil
	case models.BaseClipStatusFailed:
		return models.BaseClipStatusFailed, nil
	case models.BaseClipStatusNone:
		return models.BaseClipStatusNone, fmt.Errorf("scene %s has no submitted base clip task", sceneID)
	}

	res, err := o.gen.Poll(ctx, scene.BaseClipTaskId)
	if err != nil {
		// 瞬时错误：状态不动，下次轮询再试
		return models.BaseClipStatusGenerating, nil
	}

	switch res.State {
	case GenStateComplete:
		url := o.mirrorUrl(res.Url, fmt.Sprintf("scenes/%s/base.mp4", sceneID))
		if err := o.store.SetBaseClipComplete(sceneID, url); err != nil {
			return "", fmt.Errorf("记录基础片段结果失败: %v", err)
		}
		log.Printf("基础片段完成: scene=%s url=%s", sceneID, url)
		return models.BaseClipStatusComplete, nil

	case GenStateFailed:
		if err := o.store.SetBaseClipFailed(sceneID, res.ErrMsg); err != nil {
			return "", fmt.Errorf("记录基础片段失败状态失败: %v", err)
		}
		log.Printf("基础片段失败: scene=%s err=%s", sceneID, res.ErrMsg)
		return models.BaseClipStatusFailed, nil

	default:
		return models.BaseClipStatusGenerating, nil
	}
}
