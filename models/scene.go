package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 基础片段状态
const (
	BaseClipStatusNone       = "none"
	BaseClipStatusGenerating = "generating"
	BaseClipStatusComplete   = "complete"
	BaseClipStatusFailed     = "failed"
)

// 续写（extension）聚合状态
const (
	ExtensionStatusNone      = "none"
	ExtensionStatusExtending = "extending"
	ExtensionStatusComplete  = "complete"
	ExtensionStatusFailed    = "failed"
)

// StringList 以 JSON 数组形式存入单列（task_id 列表 / 结果 URL 列表）
type StringList []string

// 实现 driver.Valuer 接口: Go Slice -> JSON String (存入数据库)
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// 实现 sql.Scanner 接口: JSON String -> Go Slice (从数据库读取)
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	if len(bytes) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Scene 在剧本入库时一次性创建，之后只有状态类字段发生变化，不会被删除
type Scene struct {
	ID                string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectId         string     `json:"projectId"`
	Order             int        `gorm:"column:order" json:"order"`
	ScriptText        string     `json:"scriptText"`
	VisualDescription string     `json:"visualDescription"`
	Duration          int        `json:"duration"` // 本分镜目标时长（秒）
	ChosenImageUrl    string     `json:"chosenImageUrl"`
	Seed              int64      `json:"seed"` // 0 表示未分配；首次分配后不再变化
	BaseClipStatus    string     `json:"baseClipStatus"`
	BaseClipTaskId    string     `json:"baseClipTaskId"`
	BaseClipUrl       string     `json:"baseClipUrl"`
	BaseClipError     string     `json:"baseClipError"`
	ExtensionStatus   string     `json:"extensionStatus"`
	ExtensionTaskIds  StringList `gorm:"type:json" json:"extensionTaskIds"`
	ExtensionUrls     StringList `gorm:"type:json" json:"extensionUrls"`
	ExtensionError    string     `json:"extensionError"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (Scene) TableName() string {
	return "scene"
}
