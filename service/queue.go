package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeGenerateImages = "scene:images"
	TypeAdvanceScene   = "scene:advance"
)

type ImagesPayload struct {
	SceneID string `json:"scene_id"`
	Count   int    `json:"count"`
}

type AdvancePayload struct {
	SceneID string `json:"scene_id"`
}

// Queue 任务入队客户端
type Queue struct {
	client *asynq.Client
}

func NewQueue(addr, password string) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueGenerateImages 候选图生成整批作为一个任务（内部逐张串行）
func (q *Queue) EnqueueGenerateImages(sceneID string, count int) error {
	payload, err := json.Marshal(ImagesPayload{SceneID: sceneID, Count: count})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypeGenerateImages, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(40*time.Minute), // 逐张生成较慢，给足超时
		asynq.Retention(24*time.Hour),
	)

	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	log.Printf("[Queue] Images Task Enqueued: ID=%s, Scene=%s", info.ID, sceneID)
	return nil
}

// EnqueueAdvanceScene 推进一步分镜状态机；delay 用于轮询间隔式的自我续期
func (q *Queue) EnqueueAdvanceScene(sceneID string, delay time.Duration) error {
	payload, err := json.Marshal(AdvancePayload{SceneID: sceneID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(5 * time.Minute),
		asynq.Retention(24 * time.Hour),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	info, err := q.client.Enqueue(asynq.NewTask(TypeAdvanceScene, payload), opts...)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	log.Printf("[Queue] Advance Task Enqueued: ID=%s, Scene=%s", info.ID, sceneID)
	return nil
}
