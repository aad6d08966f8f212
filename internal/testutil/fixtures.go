package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/internal/model"
)

// TestVideoAnalysis 创建测试分析任务
func TestVideoAnalysis(t *testing.T, db *gorm.DB, opts ...func(*model.VideoAnalysis)) *model.VideoAnalysis {
	t.Helper()

	analysis := &model.VideoAnalysis{
		Title:  fmt.Sprintf("test_video_%d.mp4", time.Now().UnixNano()%10000),
		Status: model.StatusProcessing,
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithTitle 设置任务标题
func WithTitle(title string) func(*model.VideoAnalysis) {
	return func(a *model.VideoAnalysis) {
		a.Title = title
	}
}

// WithStatus 设置任务状态
func WithStatus(status string) func(*model.VideoAnalysis) {
	return func(a *model.VideoAnalysis) {
		a.Status = status
		if a.IsTerminal() {
			now := time.Now()
			a.CompletedAt = &now
		}
	}
}

// TestVideoFile 创建测试视频文件记录
func TestVideoFile(t *testing.T, db *gorm.DB, analysisID int64, opts ...func(*model.VideoFile)) *model.VideoFile {
	t.Helper()

	file := &model.VideoFile{
		AnalysisID:       analysisID,
		OriginalFilename: "test_video.mp4",
		StoredFilename:   fmt.Sprintf("%d_%d.mp4", analysisID, time.Now().UnixMilli()),
		FilePath:         fmt.Sprintf("/tmp/uploads/videos/%d.mp4", analysisID),
		FileSize:         1024 * 1024,
		Format:           "mp4",
		UploadedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(file)
	}

	if err := db.Create(file).Error; err != nil {
		t.Fatalf("Failed to create test video file: %v", err)
	}

	return file
}

// WithFilePath 设置原始文件路径
func WithFilePath(path string) func(*model.VideoFile) {
	return func(f *model.VideoFile) {
		f.FilePath = path
	}
}

// WithWebFilePath 设置转码产物路径
func WithWebFilePath(path string) func(*model.VideoFile) {
	return func(f *model.VideoFile) {
		f.WebFilePath = path
	}
}

// TestResult 创建测试分析结果
func TestResult(t *testing.T, db *gorm.DB, analysisID int64, opts ...func(*model.AnalysisResult)) *model.AnalysisResult {
	t.Helper()

	result := &model.AnalysisResult{
		AnalysisID:          analysisID,
		IsDeepfake:          true,
		ConfidenceScore:     0.92,
		EnsembleProbability: 0.88,
		ModelAgreement:      1.0,
		RiskLevel:           model.RiskHigh,
		Summary:             "检测到深度伪造特征",
		ProcessingTimeMs:    4200,
		ModelVersion:        "v2.1.0",
		AnalyzedAt:          time.Now(),
	}

	for _, opt := range opts {
		opt(result)
	}

	if err := db.Create(result).Error; err != nil {
		t.Fatalf("Failed to create test result: %v", err)
	}

	return result
}

// WithVerdict 设置结论与置信度
func WithVerdict(isDeepfake bool, confidence float64) func(*model.AnalysisResult) {
	return func(r *model.AnalysisResult) {
		r.IsDeepfake = isDeepfake
		r.ConfidenceScore = confidence
	}
}
