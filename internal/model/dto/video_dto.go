package dto

import (
	"time"

	"github.com/fakehunters/detect_go_server/internal/model"
)

// SubmitVideoResponse 提交分析后的即时响应
type SubmitVideoResponse struct {
	AnalysisID int64            `json:"analysis_id"`
	Title      string           `json:"title"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	VideoFile  *model.VideoFile `json:"video_file,omitempty"`
}

// VideoAnalysisDetail 任务完整视图：任务 + 文件 + 结果（如已产出）
type VideoAnalysisDetail struct {
	AnalysisID  int64                    `json:"analysis_id"`
	Title       string                   `json:"title"`
	Status      string                   `json:"status"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	VideoFile   *VideoFileView           `json:"video_file,omitempty"`
	Result      *model.AnalysisResult    `json:"analysis_result,omitempty"`
	ModelVotes  []*model.ModelVote       `json:"model_votes,omitempty"`
	Findings    []*model.ArtifactFinding `json:"artifact_findings,omitempty"`
	Frames      []*model.FrameSample     `json:"frame_samples,omitempty"`
}

// VideoFileView 文件元数据视图，附带可选的 OSS 签名播放地址
type VideoFileView struct {
	FileID           int64     `json:"file_id"`
	AnalysisID       int64     `json:"analysis_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	DurationSeconds  *float64  `json:"duration_seconds,omitempty"`
	Resolution       string    `json:"resolution,omitempty"`
	FPS              *float64  `json:"fps,omitempty"`
	Format           string    `json:"format"`
	UploadedAt       time.Time `json:"uploaded_at"`
	SignedURL        string    `json:"signed_url,omitempty"`
}
