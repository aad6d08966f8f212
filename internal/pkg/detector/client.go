package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ModelOutput 单个子模型的原始输出
type ModelOutput struct {
	RealProb      float64  `json:"real_prob"`
	FakeProb      float64  `json:"fake_prob"`
	Patterns      []string `json:"patterns,omitempty"`
	FlaggedFrames []int    `json:"flagged_frames,omitempty"`
}

// TimeSegment 风险时间段
type TimeSegment struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Risk   string  `json:"risk"` // low / medium / high
	Reason string  `json:"reason,omitempty"`
}

// Frame 帧级检测数据，服务端可能不返回
type Frame struct {
	FrameNumber int             `json:"frame_number"`
	Timestamp   float64         `json:"timestamp"`
	Verdict     string          `json:"verdict"`
	Confidence  float64         `json:"confidence"`
	AnomalyType string          `json:"anomaly_type,omitempty"`
	Features    json.RawMessage `json:"features,omitempty"`
}

// AnalyzeResponse 检测服务的原始响应
type AnalyzeResponse struct {
	Verdict          string                 `json:"verdict"` // fake / real
	Confidence       float64                `json:"confidence"`
	ModelVersion     string                 `json:"model_version"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
	ModelOutputs     map[string]ModelOutput `json:"model_outputs"`
	TimeSegments     []TimeSegment          `json:"time_segments,omitempty"`
	Frames           []Frame                `json:"frames,omitempty"`
}

// Client 外部 AI 检测服务客户端
// 超时、非 2xx 响应、响应体无法解析都视为该任务的终态失败，不做重试
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze 上传媒体文件并等待检测结果
func (c *Client) Analyze(ctx context.Context, filePath string, analysisID int64) (*AnalyzeResponse, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	if err := writer.WriteField("analysis_id", strconv.FormatInt(analysisID, 10)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := c.baseURL + "/api/v1/video/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, string(data))
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}

	if result.Verdict == "" {
		return nil, fmt.Errorf("detector response missing verdict")
	}

	return &result, nil
}
