package models

import "time"

// 项目状态（除 error 外单向推进；error 可从任意状态进入，重试后回到 generating）
const (
	ProjectStatusDraft             = "draft"              // 项目已创建，仅有 prompt
	ProjectStatusScripting         = "scripting"          // 剧本生成中（外部 LLM）
	ProjectStatusAwaitingSelection = "awaiting_selection" // 分镜已入库，等待候选图选择
	ProjectStatusGenerating        = "generating"         // 视频生成中
	ProjectStatusComplete          = "complete"           // 所有分镜生成完成
	ProjectStatusError             = "error"              // 存储层不可恢复错误
	ProjectStatusAbandoned         = "abandoned"          // 本地放弃，不再轮询/推进
)

type Project struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string    `json:"title"`
	Prompt      string    `json:"prompt"`
	Duration    int       `json:"duration"` // 目标总时长（秒）
	AspectRatio string    `json:"aspectRatio"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}
