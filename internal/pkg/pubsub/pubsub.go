package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnalysisProgress = "video_analysis_progress_events"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type       string `json:"type"`
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// 流水线阶段常量
const (
	StageQueued      = "queued"
	StageTranscoding = "transcoding"
	StageAnalyzing   = "ai_analysis"
	StageSaving      = "saving"
	StageCompleted   = "completed"
	StageFailed      = "failed"
)

// 阶段对应的进度百分比
var StageProgress = map[string]int{
	StageQueued:      0,
	StageTranscoding: 20,
	StageAnalyzing:   60,
	StageSaving:      85,
	StageCompleted:   100,
	StageFailed:      0,
}

// 阶段对应的消息
var StageDetails = map[string]string{
	StageQueued:      "任务已提交，等待处理",
	StageTranscoding: "正在转码视频",
	StageAnalyzing:   "正在进行 AI 分析",
	StageSaving:      "正在保存分析结果",
	StageCompleted:   "分析完成",
	StageFailed:      "分析失败",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "analysis_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Stage != "" {
		if progress, ok := StageProgress[msg.Stage]; ok {
			msg.Progress = progress
		}
	}
	if msg.Detail == "" && msg.Stage != "" {
		if detail, ok := StageDetails[msg.Stage]; ok {
			msg.Detail = detail
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
