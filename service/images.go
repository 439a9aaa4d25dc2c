package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"PromptToVideo-server/models"

	"github.com/google/uuid"
)

// GenerateImages 为一个分镜生成 count 张候选图。
// 串行逐张提交并轮询（生成服务有调用方并发上限），单张失败或超时只跳过该槽位，
// 不回滚也不阻塞后续：分镜最终可能少于 count 张候选，属于可接受的部分成功。
func (o *Orchestrator) GenerateImages(ctx context.Context, sceneID string, count int) error {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return fmt.Errorf("scene not found: %v", err)
	}
	if scene.VisualDescription == "" {
		return fmt.Errorf("scene %s has no visual description", sceneID)
	}
	if count <= 0 {
		count = o.set.ImageCount
	}
	aspect := o.aspectRatioFor(scene.ProjectId)

	for i := 0; i < count; i++ {
		taskID, err := o.gen.Submit(ctx, GenSpec{
			Kind:        TaskKindImage,
			Prompt:      scene.VisualDescription,
			AspectRatio: aspect,
		})
		if err != nil {
			log.Printf("候选图 %d/%d 提交失败(跳过): %v", i+1, count, err)
			continue
		}

		handle := TaskHandle{TaskID: taskID, Kind: TaskKindImage, SubmittedAt: time.Now()}
		res, err := o.pollUntilTerminal(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Printf("候选图 %d/%d 轮询超时(跳过): task=%s", i+1, count, taskID)
			continue
		}
		if res.State != GenStateComplete {
			log.Printf("候选图 %d/%d 生成失败(跳过): %s", i+1, count, res.ErrMsg)
			continue
		}

		url := o.mirrorUrl(res.Url, fmt.Sprintf("scenes/%s/options/%s.png", sceneID, taskID))
		opt := models.ImageOption{
			ID:         uuid.NewString(),
			SceneId:    sceneID,
			Url:        url,
			IsSelected: false,
		}
		if err := o.store.CreateImageOption(&opt); err != nil {
			return fmt.Errorf("保存候选图失败: %v", err)
		}
		log.Printf("候选图已保存: scene=%s option=%s", sceneID, opt.ID)
	}
	return nil
}

// SelectImage 选中一张候选图：先全部取消选中，再选中目标，最后把 URL 写回分镜。
// 存储层没有跨行事务，取消在前保证崩溃时至多出现"没有选中"而不是"多于一个选中"。
func (o *Orchestrator) SelectImage(sceneID, optionID string) error {
	scene, err := o.store.GetSceneByID(sceneID)
	if err != nil {
		return fmt.Errorf("scene not found: %v", err)
	}
	opt, err := o.store.GetImageOptionByID(optionID)
	if err != nil {
		return fmt.Errorf("image option not found: %v", err)
	}
	if opt.SceneId != scene.ID {
		return fmt.Errorf("option %s does not belong to scene %s", optionID, sceneID)
	}

	if err := o.store.DeselectImageOptions(sceneID); err != nil {
		return fmt.Errorf("取消已选候选图失败: %v", err)
	}
	if err := o.store.MarkImageOptionSelected(optionID); err != nil {
		return fmt.Errorf("选中候选图失败: %v", err)
	}
	if err := o.store.UpdateSceneChosenImage(sceneID, opt.Url); err != nil {
		return fmt.Errorf("写回分镜选图失败: %v", err)
	}
	return nil
}

// mirrorUrl 将结果转存到对象存储；未配置时直接使用厂商 URL
func (o *Orchestrator) mirrorUrl(sourceUrl, objectName string) string {
	if o.oss == nil {
		return sourceUrl
	}
	mirrored, err := o.oss.MirrorResource(sourceUrl, objectName)
	if err != nil {
		log.Printf("资源转存失败，保留源地址: %v", err)
		return sourceUrl
	}
	return mirrored
}
