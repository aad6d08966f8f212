package model

import (
	"time"
)

// 风险等级
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// 伪影类别
const (
	CategorySpatial    = "spatial"
	CategoryTemporal   = "temporal"
	CategoryStructural = "structural"
)

// AnalysisResult 聚合后的检测结论，每个任务最多一条，写入后不可变
type AnalysisResult struct {
	ID                  int64     `gorm:"primaryKey" json:"result_id"`
	AnalysisID          int64     `gorm:"not null;index" json:"analysis_id"`
	IsDeepfake          bool      `gorm:"not null" json:"is_deepfake"`
	ConfidenceScore     float64   `gorm:"not null" json:"confidence_score"`
	EnsembleProbability float64   `json:"ensemble_probability"`
	ModelAgreement      float64   `json:"model_agreement"`
	RiskLevel           string    `gorm:"size:20" json:"risk_level"`
	Summary             string    `gorm:"type:text" json:"summary"`
	ProcessingTimeMs    int64     `json:"processing_time_ms"`
	ModelVersion        string    `gorm:"size:50" json:"model_version"`
	AnalyzedAt          time.Time `json:"analyzed_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}

// ModelVote 单个子模型的投票，随结果批量写入
type ModelVote struct {
	ID              int64       `gorm:"primaryKey" json:"vote_id"`
	ResultID        int64       `gorm:"not null;index" json:"result_id"`
	ModelName       string      `gorm:"size:100;not null" json:"model_name"`
	Prediction      string      `gorm:"size:10;not null" json:"prediction"` // fake / real
	Confidence      float64     `json:"confidence"`
	FakeProbability float64     `json:"fake_probability"`
	Patterns        StringArray `gorm:"type:json" json:"patterns,omitempty"`
	FrameIndices    IntArray    `gorm:"type:json" json:"frame_indices,omitempty"`
}

func (ModelVote) TableName() string {
	return "model_votes"
}

// ArtifactFinding 按类别归组的伪影检出
type ArtifactFinding struct {
	ID              int64       `gorm:"primaryKey" json:"finding_id"`
	ResultID        int64       `gorm:"not null;index" json:"result_id"`
	Category        string      `gorm:"size:20;not null" json:"category"` // spatial / temporal / structural
	Detected        bool        `json:"detected"`
	EvidenceSources StringArray `gorm:"type:json" json:"evidence_sources,omitempty"`
	Patterns        StringArray `gorm:"type:json" json:"patterns,omitempty"`
}

func (ArtifactFinding) TableName() string {
	return "artifact_findings"
}

// FrameSample 帧级采样结果，批量写入后只读
type FrameSample struct {
	ID               int64   `gorm:"primaryKey" json:"frame_id"`
	ResultID         int64   `gorm:"not null;index" json:"result_id"`
	FrameNumber      int     `gorm:"not null" json:"frame_number"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	IsDeepfake       bool    `json:"is_deepfake"`
	ConfidenceScore  float64 `json:"confidence_score"`
	AnomalyType      string  `gorm:"size:100" json:"anomaly_type,omitempty"`
	Features         string  `gorm:"type:text" json:"features,omitempty"`
}

func (FrameSample) TableName() string {
	return "frame_samples"
}
