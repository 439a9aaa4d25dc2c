package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// 外部生成任务类型
type TaskKind string

const (
	TaskKindImage     TaskKind = "image"
	TaskKindBaseVideo TaskKind = "base_video"
	TaskKindExtension TaskKind = "extension"
)

// TaskHandle 提交与后续轮询之间的关联记录，只存在于内存，不落库
type TaskHandle struct {
	TaskID      string
	Kind        TaskKind
	SubmittedAt time.Time
}

// GenSpec 一次生成请求的参数
type GenSpec struct {
	Kind         TaskKind
	Prompt       string
	ImageUrl     string // 图生视频：起始图
	SourceTaskID string // 续写：前一段片段的 task_id
	AspectRatio  string
	DurationSec  int
	Seed         int64
}

type GenState string

const (
	GenStatePending  GenState = "pending"
	GenStateComplete GenState = "complete"
	GenStateFailed   GenState = "failed"
)

// GenResult 适配层归一化后的唯一内部形态，厂商响应的各种分支不向外扩散
type GenResult struct {
	State  GenState
	Url    string
	ErrMsg string
}

type GenClient interface {
	Submit(ctx context.Context, spec GenSpec) (string, error)
	Poll(ctx context.Context, taskID string) (GenResult, error)
}

// VendorClient 对接生成服务的 HTTP 客户端
type VendorClient struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

func NewVendorClient(endpoint, apiKey string) *VendorClient {
	return &VendorClient{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit 发送 POST /v1/generate，返回厂商 task_id
func (c *VendorClient) Submit(ctx context.Context, spec GenSpec) (string, error) {
	var params map[string]interface{}

	switch spec.Kind {
	case TaskKindImage:
		if spec.Prompt == "" {
			return "", fmt.Errorf("missing prompt for image task")
		}
		params = map[string]interface{}{
			"prompt":       spec.Prompt,
			"aspect_ratio": spec.AspectRatio,
		}

	case TaskKindBaseVideo:
		params = map[string]interface{}{
			"prompt":       spec.Prompt,
			"image_url":    spec.ImageUrl,
			"aspect_ratio": spec.AspectRatio,
			"duration":     spec.DurationSec,
			"seed":         spec.Seed,
		}

	case TaskKindExtension:
		if spec.SourceTaskID == "" {
			return "", fmt.Errorf("missing source task id for extension")
		}
		params = map[string]interface{}{
			"prompt":         spec.Prompt,
			"source_task_id": spec.SourceTaskID,
			"duration":       spec.DurationSec,
			"seed":           spec.Seed,
		}

	default:
		return "", fmt.Errorf("unsupported task kind: %s", spec.Kind)
	}

	reqBody := map[string]interface{}{
		"type":       string(spec.Kind),
		"parameters": params,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/v1/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("generation service status code: %d", resp.StatusCode)
	}

	var respData struct {
		ID     string `json:"id"`
		TaskID string `json:"task_id"`
		Data   struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("decode response failed: %v", err)
	}

	// 不同版本的返回里 task_id 位置不同，依次取
	if respData.ID != "" {
		return respData.ID, nil
	}
	if respData.TaskID != "" {
		return respData.TaskID, nil
	}
	if respData.Data.TaskID != "" {
		return respData.Data.TaskID, nil
	}
	return "", fmt.Errorf("response missing 'task_id'")
}

// vendorTaskResponse 厂商任务查询的宽松形态：结果 URL 可能落在多个字段，
// result/output 还可能是一段需要二次解析的 JSON 字符串
type vendorTaskResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	State    string          `json:"state"`
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	VideoUrl string          `json:"video_url"`
	ImageUrl string          `json:"image_url"`
	Result   json.RawMessage `json:"result"`
	Output   json.RawMessage `json:"output"`
	Data     struct {
		Status    string `json:"status"`
		VideoUrl  string `json:"video_url"`
		Resources []struct {
			Url string `json:"url"`
		} `json:"resources"`
	} `json:"data"`
	Resources []struct {
		Url string `json:"url"`
	} `json:"resources"`
}

// Poll 查询 GET /v1/tasks/{task_id}，对厂商状态与结果位置做归一化。
// 注意：success 但拿不到 URL 时按 pending 返回（误报失败的代价比多轮询几次大），
// 这条规则在这里统一处理，外层不再判断厂商形态。
func (c *VendorClient) Poll(ctx context.Context, taskID string) (GenResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return GenResult{}, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return GenResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GenResult{}, fmt.Errorf("poll status code: %d", resp.StatusCode)
	}

	var raw vendorTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return GenResult{}, fmt.Errorf("decode poll response failed: %v", err)
	}

	status := raw.Status
	if status == "" {
		status = raw.State
	}
	if status == "" {
		status = raw.Data.Status
	}

	switch normalizeStatus(status) {
	case GenStateFailed:
		msg := raw.Error
		if msg == "" {
			msg = raw.Message
		}
		if msg == "" {
			msg = "generation service reported failure"
		}
		return GenResult{State: GenStateFailed, ErrMsg: msg}, nil

	case GenStateComplete:
		url := extractResultUrl(&raw)
		if url == "" {
			// 已知的服务端不一致：success 但结果为空，按照 pending 处理等待补全
			return GenResult{State: GenStatePending}, nil
		}
		return GenResult{State: GenStateComplete, Url: url}, nil

	default:
		return GenResult{State: GenStatePending}, nil
	}
}

func normalizeStatus(status string) GenState {
	switch strings.ToLower(status) {
	case "finished", "success", "succeeded", "completed", "complete", "done":
		return GenStateComplete
	case "failed", "error":
		return GenStateFailed
	default:
		return GenStatePending
	}
}

func extractResultUrl(raw *vendorTaskResponse) string {
	if raw.VideoUrl != "" {
		return raw.VideoUrl
	}
	if raw.ImageUrl != "" {
		return raw.ImageUrl
	}
	if raw.Data.VideoUrl != "" {
		return raw.Data.VideoUrl
	}
	if len(raw.Data.Resources) > 0 && raw.Data.Resources[0].Url != "" {
		return raw.Data.Resources[0].Url
	}
	if len(raw.Resources) > 0 && raw.Resources[0].Url != "" {
		return raw.Resources[0].Url
	}
	if url := decodeLooseUrl(raw.Result); url != "" {
		return url
	}
	return decodeLooseUrl(raw.Output)
}

// decodeLooseUrl 处理 result/output 的三种形态：
// 对象 {url|video_url|image_url}、字符串数组、或 JSON 编码的字符串（内嵌 JSON 或裸 URL）
func decodeLooseUrl(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var obj struct {
		Url      string `json:"url"`
		VideoUrl string `json:"video_url"`
		ImageUrl string `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Url != "" {
			return obj.Url
		}
		if obj.VideoUrl != "" {
			return obj.VideoUrl
		}
		if obj.ImageUrl != "" {
			return obj.ImageUrl
		}
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return arr[0]
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		// 字符串里可能又包了一层 JSON
		if strings.HasPrefix(strings.TrimSpace(s), "{") || strings.HasPrefix(strings.TrimSpace(s), "[") {
			return decodeLooseUrl(json.RawMessage(s))
		}
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s
		}
	}
	return ""
}
