package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"PromptToVideo-server/models"

	"github.com/hibiken/asynq"
)

// Processor 消费队列任务，驱动分镜状态机。
// 每次消费只做一个有界步骤（提交一个任务 / 轮询一轮），未到终态的分镜
// 通过延迟自入队继续推进，进程重启后照常衔接。
type Processor struct {
	orc      *Orchestrator
	queue    *Queue
	redisOpt asynq.RedisClientOpt
	interval time.Duration
}

func NewProcessor(orc *Orchestrator, queue *Queue, redisAddr, redisPassword string) *Processor {
	return &Processor{
		orc:   orc,
		queue: queue,
		redisOpt: asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
		},
		interval: orc.set.PollInterval,
	}
}

// StartProcessor 启动任务消费者
func (p *Processor) StartProcessor(concurrency int) {
	srv := asynq.NewServer(
		p.redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateImages, p.HandleGenerateImages)
	mux.HandleFunc(TypeAdvanceScene, p.HandleAdvanceScene)

	log.Printf("Starting Task Processor with concurrency %d...", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandleGenerateImages 执行整批候选图生成（内部逐张、可部分成功）
func (p *Processor) HandleGenerateImages(ctx context.Context, t *asynq.Task) error {
	var payload ImagesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing Images Task: scene=%s count=%d", payload.SceneID, payload.Count)
	if err := p.orc.GenerateImages(ctx, payload.SceneID, payload.Count); err != nil {
		log.Printf("候选图任务失败: %v", err)
		return err // 触发重试
	}
	return nil
}

// HandleAdvanceScene 幂等推进一步：
// 基础片段未提交则提交，生成中则轮询；完成后按需提交/轮询续写链；
// 终态（complete/failed/无需续写）即停止，否则按轮询间隔自入队。
func (p *Processor) HandleAdvanceScene(ctx context.Context, t *asynq.Task) error {
	var payload AdvancePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	sceneID := payload.SceneID

	scene, err := p.orc.store.GetSceneByID(sceneID)
	if err != nil {
		return fmt.Errorf("scene not found: %v: %w", err, asynq.SkipRetry)
	}

	// 项目已放弃：停止推进，外部任务自行跑完但不再被观察
	if project, err := p.orc.store.GetProjectByID(scene.ProjectId); err == nil &&
		project.Status == models.ProjectStatusAbandoned {
		log.Printf("项目已放弃，停止推进: scene=%s", sceneID)
		return nil
	}

	switch scene.BaseClipStatus {
	case models.BaseClipStatusNone:
		if _, err := p.orc.StartBaseVideo(ctx, sceneID); err != nil {
			log.Printf("基础片段提交失败(重试): %v", err)
			return err
		}
		return p.reenqueue(sceneID)

	case models.BaseClipStatusGenerating:
		status, err := p.orc.PollBaseVideo(ctx, sceneID)
		if err != nil {
			return err
		}
		if status == models.BaseClipStatusFailed {
			log.Printf("基础片段失败，分镜终止: scene=%s", sceneID)
			return nil
		}
		if status != models.BaseClipStatusComplete {
			return p.reenqueue(sceneID)
		}
		// 基础片段刚完成，落到下面的续写分支

	case models.BaseClipStatusFailed:
		return nil
	}

	// 至此基础片段 complete
	if _, err := p.orc.StartNextExtension(ctx, sceneID); err != nil {
		switch {
		case errors.Is(err, ErrNoExtensionDue):
			log.Printf("分镜无需续写，已完成: scene=%s", sceneID)
			return nil
		case errors.Is(err, ErrChainComplete), errors.Is(err, ErrChainFailed):
			return nil
		case errors.Is(err, ErrChainBusy):
			// 前一段还在生成，转入轮询
		default:
			log.Printf("续写提交失败(重试): %v", err)
			return err
		}
	}

	status, err := p.orc.PollExtensions(ctx, sceneID)
	if err != nil {
		return err
	}
	switch status {
	case models.ExtensionStatusFailed, models.ExtensionStatusComplete:
		return nil
	default:
		return p.reenqueue(sceneID)
	}
}

func (p *Processor) reenqueue(sceneID string) error {
	if err := p.queue.EnqueueAdvanceScene(sceneID, p.interval); err != nil {
		return fmt.Errorf("advance 自入队失败: %w", err)
	}
	return nil
}
