package models

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SQLStore 持有原生连接与 GORM 两套句柄（部分查询用原生 SQL 更直接）
type SQLStore struct {
	DB   *sql.DB
	Gorm *gorm.DB
}

func InitDB(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("GORM 初始化失败: %w", err)
	}

	if err := gdb.AutoMigrate(&Project{}, &Scene{}, &ImageOption{}); err != nil {
		return nil, fmt.Errorf("自动建表失败: %w", err)
	}

	return &SQLStore{DB: db, Gorm: gdb}, nil
}

// Project CRUD

func (s *SQLStore) CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.Gorm.Create(p).Error
}

func (s *SQLStore) GetProjectByID(id string) (*Project, error) {
	var p Project
	if err := s.Gorm.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) UpdateProjectStatus(id, status string) error {
	return s.Gorm.Model(&Project{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}).Error
}

// Scene CRUD

func (s *SQLStore) BatchCreateScenes(scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	return s.Gorm.Create(&scenes).Error
}

func (s *SQLStore) GetSceneByID(id string) (*Scene, error) {
	var sc Scene
	if err := s.Gorm.First(&sc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *SQLStore) GetScenesByProjectID(projectID string) ([]Scene, error) {
	var res []Scene
	err := s.Gorm.Where("project_id = ?", projectID).Order("`order` ASC").Find(&res).Error
	return res, err
}

func (s *SQLStore) UpdateSceneChosenImage(sceneID, url string) error {
	return s.updateScene(sceneID, map[string]interface{}{"chosen_image_url": url})
}

func (s *SQLStore) UpdateSceneSeed(sceneID string, seed int64) error {
	return s.updateScene(sceneID, map[string]interface{}{"seed": seed})
}

func (s *SQLStore) SetBaseClipSubmitted(sceneID, taskID string) error {
	return s.updateScene(sceneID, map[string]interface{}{
		"base_clip_status":  BaseClipStatusGenerating,
		"base_clip_task_id": taskID,
	})
}

func (s *SQLStore) SetBaseClipComplete(sceneID, url string) error {
	return s.updateScene(sceneID, map[string]interface{}{
		"base_clip_status": BaseClipStatusComplete,
		"base_clip_url":    url,
	})
}

func (s *SQLStore) SetBaseClipFailed(sceneID, reason string) error {
	return s.updateScene(sceneID, map[string]interface{}{
		"base_clip_status": BaseClipStatusFailed,
		"base_clip_error":  reason,
	})
}

// AppendExtensionTaskID 读后写追加：提交成功后立即调用，task_id 列表单调增长
func (s *SQLStore) AppendExtensionTaskID(sceneID, taskID string) error {
	sc, err := s.GetSceneByID(sceneID)
	if err != nil {
		return err
	}
	ids := append(sc.ExtensionTaskIds, taskID)
	return s.updateScene(sceneID, map[string]interface{}{
		"extension_task_ids": ids,
		"extension_status":   ExtensionStatusExtending,
	})
}

func (s *SQLStore) SetExtensionUrls(sceneID string, urls []string, status string) error {
	return s.updateScene(sceneID, map[string]interface{}{
		"extension_urls":   StringList(urls),
		"extension_status": status,
	})
}

func (s *SQLStore) SetExtensionFailed(sceneID, reason string) error {
	return s.updateScene(sceneID, map[string]interface{}{
		"extension_status": ExtensionStatusFailed,
		"extension_error":  reason,
	})
}

func (s *SQLStore) updateScene(sceneID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return s.Gorm.Model(&Scene{}).Where("id = ?", sceneID).Updates(updates).Error
}

// ImageOption CRUD

func (s *SQLStore) CreateImageOption(opt *ImageOption) error {
	opt.CreatedAt = time.Now()
	return s.Gorm.Create(opt).Error
}

func (s *SQLStore) GetImageOptionByID(id string) (*ImageOption, error) {
	var opt ImageOption
	if err := s.Gorm.First(&opt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &opt, nil
}

func (s *SQLStore) GetImageOptionsBySceneID(sceneID string) ([]ImageOption, error) {
	var res []ImageOption
	err := s.Gorm.Where("scene_id = ?", sceneID).Order("created_at ASC").Find(&res).Error
	return res, err
}

// DeselectImageOptions 先全部取消选中（崩溃时宁可没有选中项，也不要出现多个）
func (s *SQLStore) DeselectImageOptions(sceneID string) error {
	_, err := s.DB.Exec(`UPDATE image_option SET is_selected = 0 WHERE scene_id = ?`, sceneID)
	return err
}

func (s *SQLStore) MarkImageOptionSelected(optionID string) error {
	_, err := s.DB.Exec(`UPDATE image_option SET is_selected = 1 WHERE id = ?`, optionID)
	return err
}
