package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PromptToVideo-server/models"

	"gorm.io/gorm"
)

// memStore 内存实现的 Store，测试专用
type memStore struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	scenes   map[string]*models.Scene
	options  map[string]*models.ImageOption

	failListScenes bool
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]*models.Project),
		scenes:   make(map[string]*models.Scene),
		options:  make(map[string]*models.ImageOption),
	}
}

func (m *memStore) addProject(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.projects[p.ID] = &cp
}

func (m *memStore) addScene(s models.Scene) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.scenes[s.ID] = &cp
}

func (m *memStore) GetProjectByID(id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProjectStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) BatchCreateScenes(scenes []models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scenes {
		cp := s
		m.scenes[s.ID] = &cp
	}
	return nil
}

func (m *memStore) GetSceneByID(id string) (*models.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.ExtensionTaskIds = append(models.StringList(nil), s.ExtensionTaskIds...)
	cp.ExtensionUrls = append(models.StringList(nil), s.ExtensionUrls...)
	return &cp, nil
}

func (m *memStore) GetScenesByProjectID(projectID string) ([]models.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListScenes {
		return nil, fmt.Errorf("store unavailable")
	}
	var res []models.Scene
	for _, s := range m.scenes {
		if s.ProjectId == projectID {
			cp := *s
			cp.ExtensionTaskIds = append(models.StringList(nil), s.ExtensionTaskIds...)
			cp.ExtensionUrls = append(models.StringList(nil), s.ExtensionUrls...)
			res = append(res, cp)
		}
	}
	for i := 0; i < len(res); i++ {
		for j := i + 1; j < len(res); j++ {
			if res[j].Order < res[i].Order {
				res[i], res[j] = res[j], res[i]
			}
		}
	}
	return res, nil
}

func (m *memStore) updateScene(id string, fn func(*models.Scene)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(s)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdateSceneChosenImage(sceneID, url string) error {
	return m.updateScene(sceneID, func(s *models.Scene) { s.ChosenImageUrl = url })
}

func (m *memStore) UpdateSceneSeed(sceneID string, seed int64) error {
	return m.updateScene(sceneID, func(s *models.Scene) { s.Seed = seed })
}

func (m *memStore) SetBaseClipSubmitted(sceneID, taskID string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.BaseClipStatus = models.BaseClipStatusGenerating
		s.BaseClipTaskId = taskID
	})
}

func (m *memStore) SetBaseClipComplete(sceneID, url string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.BaseClipStatus = models.BaseClipStatusComplete
		s.BaseClipUrl = url
	})
}

func (m *memStore) SetBaseClipFailed(sceneID, reason string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.BaseClipStatus = models.BaseClipStatusFailed
		s.BaseClipError = reason
	})
}

func (m *memStore) AppendExtensionTaskID(sceneID, taskID string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.ExtensionTaskIds = append(s.ExtensionTaskIds, taskID)
		s.ExtensionStatus = models.ExtensionStatusExtending
	})
}

func (m *memStore) SetExtensionUrls(sceneID string, urls []string, status string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.ExtensionUrls = append(models.StringList(nil), urls...)
		s.ExtensionStatus = status
	})
}

func (m *memStore) SetExtensionFailed(sceneID, reason string) error {
	return m.updateScene(sceneID, func(s *models.Scene) {
		s.ExtensionStatus = models.ExtensionStatusFailed
		s.ExtensionError = reason
	})
}

func (m *memStore) CreateImageOption(opt *models.ImageOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *opt
	m.options[opt.ID] = &cp
	return nil
}

func (m *memStore) GetImageOptionByID(id string) (*models.ImageOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opt, ok := m.options[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *opt
	return &cp, nil
}

func (m *memStore) GetImageOptionsBySceneID(sceneID string) ([]models.ImageOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []models.ImageOption
	for _, opt := range m.options {
		if opt.SceneId == sceneID {
			res = append(res, *opt)
		}
	}
	return res, nil
}

func (m *memStore) DeselectImageOptions(sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, opt := range m.options {
		if opt.SceneId == sceneID {
			opt.IsSelected = false
		}
	}
	return nil
}

func (m *memStore) MarkImageOptionSelected(optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	opt, ok := m.options[optionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	opt.IsSelected = true
	return nil
}

// fakeGen 脚本化的生成服务客户端
type fakeGen struct {
	mu         sync.Mutex
	nextID     int
	submitted  []GenSpec
	submitErrs []error // 按提交顺序消费，nil 表示成功
	results    map[string]GenResult
	pollErrs   map[string]error
	pollCount  map[string]int
	totalPolls int
}

func newFakeGen() *fakeGen {
	return &fakeGen{
		results:   make(map[string]GenResult),
		pollErrs:  make(map[string]error),
		pollCount: make(map[string]int),
	}
}

func (f *fakeGen) Submit(ctx context.Context, spec GenSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	id := fmt.Sprintf("task-%d", f.nextID)
	f.nextID++
	f.submitted = append(f.submitted, spec)
	return id, nil
}

func (f *fakeGen) Poll(ctx context.Context, taskID string) (GenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCount[taskID]++
	f.totalPolls++
	if err, ok := f.pollErrs[taskID]; ok {
		return GenResult{}, err
	}
	if res, ok := f.results[taskID]; ok {
		return res, nil
	}
	return GenResult{State: GenStatePending}, nil
}

func (f *fakeGen) complete(taskID, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[taskID] = GenResult{State: GenStateComplete, Url: url}
}

func (f *fakeGen) fail(taskID, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[taskID] = GenResult{State: GenStateFailed, ErrMsg: msg}
}

func (f *fakeGen) submittedSpecs() []GenSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenSpec(nil), f.submitted...)
}

func newTestOrchestrator(store Store, gen GenClient) *Orchestrator {
	return NewOrchestrator(store, gen, nil, Settings{
		ImageCount:   3,
		BaseUnitSec:  8,
		AspectRatio:  "16:9",
		SeedMin:      1,
		SeedMax:      1000,
		PollInterval: time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
	})
}
