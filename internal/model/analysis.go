package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray 用于 JSON 数组字段
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// IntArray 用于 JSON 整数数组字段（帧序号列表等）
type IntArray []int

func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *IntArray) Scan(value interface{}) error {
	if value == nil {
		*a = []int{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// 分析任务状态
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// VideoAnalysis 一次视频分析任务的持久化记录
// 状态机：PENDING → PROCESSING → COMPLETED / FAILED，终态后不再写入
type VideoAnalysis struct {
	ID          int64      `gorm:"primaryKey" json:"analysis_id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Status      string     `gorm:"size:20;default:PENDING;index" json:"status"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (VideoAnalysis) TableName() string {
	return "video_analyses"
}

// IsTerminal 是否已到终态
func (a *VideoAnalysis) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
