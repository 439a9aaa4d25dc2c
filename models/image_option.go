package models

import "time"

// ImageOption 一个分镜的候选图；同一分镜任一时刻最多一条 is_selected = true，
// 由协调器先取消后选中来保证，存储层不做约束
type ImageOption struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SceneId    string    `json:"sceneId"`
	Url        string    `json:"url"`
	IsSelected bool      `json:"isSelected"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (ImageOption) TableName() string {
	return "image_option"
}
