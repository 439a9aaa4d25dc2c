package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"PromptToVideo-server/models"

	"github.com/google/uuid"
)

// Store 编排器对持久层的窄依赖；models.SQLStore 为线上实现，测试用内存实现
type Store interface {
	GetProjectByID(id string) (*models.Project, error)
	UpdateProjectStatus(id, status string) error

	BatchCreateScenes(scenes []models.Scene) error
	GetSceneByID(id string) (*models.Scene, error)
	GetScenesByProjectID(projectID string) ([]models.Scene, error)
	UpdateSceneChosenImage(sceneID, url string) error
	UpdateSceneSeed(sceneID string, seed int64) error
	SetBaseClipSubmitted(sceneID, taskID string) error
	SetBaseClipComplete(sceneID, url string) error
	SetBaseClipFailed(sceneID, reason string) error
	AppendExtensionTaskID(sceneID, taskID string) error
	SetExtensionUrls(sceneID string, urls []string, status string) error
	SetExtensionFailed(sceneID, reason string) error

	CreateImageOption(opt *models.ImageOption) error
	GetImageOptionByID(id string) (*models.ImageOption, error)
	GetImageOptionsBySceneID(sceneID string) ([]models.ImageOption, error)
	DeselectImageOptions(sceneID string) error
	MarkImageOptionSelected(optionID string) error
}

// Settings 生成相关参数，进程启动时从配置构造一次，注入后不再修改
type Settings struct {
	ImageCount   int
	BaseUnitSec  int
	AspectRatio  string
	SeedMin      int64
	SeedMax      int64
	PollInterval time.Duration
	PollTimeout  time.Duration
}

var (
	ErrPollTimeout    = errors.New("poll timeout")
	ErrChainBusy      = errors.New("previous clip not complete yet")
	ErrChainComplete  = errors.New("extension chain already complete")
	ErrChainFailed    = errors.New("extension chain already failed")
	ErrNoExtensionDue = errors.New("scene needs no extension")
)

// Orchestrator 生成任务编排器：分镜建档、候选图、基础片段、续写链、进度聚合
type Orchestrator struct {
	store Store
	gen   GenClient
	oss   *ObjectStore // 可为 nil，此时直接落厂商 URL
	set   Settings
}

func NewOrchestrator(store Store, gen GenClient, oss *ObjectStore, set Settings) *Orchestrator {
	if set.PollInterval <= 0 {
		set.PollInterval = 3 * time.Second
	}
	if set.PollTimeout <= 0 {
		set.PollTimeout = 30 * time.Minute
	}
	return &Orchestrator{store: store, gen: gen, oss: oss, set: set}
}

// ScriptSegment 剧本来源（外部 LLM）产出的一段分镜描述
type ScriptSegment struct {
	ScriptText        string `json:"script_text"`
	VisualDescription string `json:"visual_description"`
	DurationSec       int    `json:"duration_seconds"`
}

// CreateScenesFromScript 按剧本段落建档分镜。只做结构性校验（visual_description 非空），
// 不评判剧本质量。成功后项目进入 awaiting_selection。
func (o *Orchestrator) CreateScenesFromScript(projectID string, segs []ScriptSegment) ([]models.Scene, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	if _, err := o.store.GetProjectByID(projectID); err != nil {
		return nil, fmt.Errorf("project not found: %v", err)
	}

	now := time.Now()
	scenes := make([]models.Scene, 0, len(segs))
	for i, seg := range segs {
		if seg.VisualDescription == "" {
			return nil, fmt.Errorf("segment %d missing visual_description", i+1)
		}
		duration := seg.DurationSec
		if duration <= 0 {
			duration = o.set.BaseUnitSec
		}
		scenes = append(scenes, models.Scene{
			ID:                uuid.NewString(),
			ProjectId:         projectID,
			Order:             i + 1,
			ScriptText:        seg.ScriptText,
			VisualDescription: seg.VisualDescription,
			Duration:          duration,
			BaseClipStatus:    models.BaseClipStatusNone,
			ExtensionStatus:   models.ExtensionStatusNone,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if err := o.store.BatchCreateScenes(scenes); err != nil {
		return nil, fmt.Errorf("批量创建分镜失败: %v", err)
	}
	if err := o.store.UpdateProjectStatus(projectID, models.ProjectStatusAwaitingSelection); err != nil {
		log.Printf("更新项目状态失败: %v", err)
	}
	log.Printf("Created %d scenes for project %s", len(scenes), projectID)
	return scenes, nil
}

// RetryProject 操作员重试：error 状态的项目回到 generating，之后由调度继续推进
func (o *Orchestrator) RetryProject(projectID string) error {
	p, err := o.store.GetProjectByID(projectID)
	if err != nil {
		return fmt.Errorf("project not found: %v", err)
	}
	if p.Status != models.ProjectStatusError {
		return fmt.Errorf("project %s is not in error state (status=%s)", projectID, p.Status)
	}
	return o.store.UpdateProjectStatus(projectID, models.ProjectStatusGenerating)
}

// AbandonProject 本地放弃：只是停止后续轮询和续写，已提交的外部任务不做取消
func (o *Orchestrator) AbandonProject(projectID string) error {
	if _, err := o.store.GetProjectByID(projectID); err != nil {
		return fmt.Errorf("project not found: %v", err)
	}
	return o.store.UpdateProjectStatus(projectID, models.ProjectStatusAbandoned)
}

// aspectRatioFor 优先使用项目级画幅，项目未设置（或读不到）时回退到配置默认
func (o *Orchestrator) aspectRatioFor(projectID string) string {
	if p, err := o.store.GetProjectByID(projectID); err == nil && p.AspectRatio != "" {
		return p.AspectRatio
	}
	return o.set.AspectRatio
}

// randomSeed 在厂商允许的数值区间内取一次性的确定种子
func (o *Orchestrator) randomSeed() int64 {
	return o.set.SeedMin + rand.Int63n(o.set.SeedMax-o.set.SeedMin+1)
}

// clampSeed 提交前约束到厂商区间
func (o *Orchestrator) clampSeed(seed int64) int64 {
	if seed < o.set.SeedMin {
		return o.set.SeedMin
	}
	if seed > o.set.SeedMax {
		return o.set.SeedMax
	}
	return seed
}

// pollUntilTerminal 轮询到终态或超时；超时以任务提交时刻为基准，
// 瞬时错误只记录、下个周期重试
func (o *Orchestrator) pollUntilTerminal(ctx context.Context, h TaskHandle) (GenResult, error) {
	deadline := time.NewTimer(time.Until(h.SubmittedAt.Add(o.set.PollTimeout)))
	defer deadline.Stop()
	ticker := time.NewTicker(o.set.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return GenResult{State: GenStatePending}, ErrPollTimeout
		case <-ctx.Done():
			return GenResult{}, ctx.Err()
		case <-ticker.C:
			res, err := o.gen.Poll(ctx, h.TaskID)
			if err != nil {
				log.Printf("轮询网络错误(重试中): kind=%s task=%s err=%v", h.Kind, h.TaskID, err)
				continue
			}
			if res.State != GenStatePending {
				return res, nil
			}
		}
	}
}
