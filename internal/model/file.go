package model

import (
	"time"
)

// VideoFile 上传视频的文件元数据，随任务创建一次写入
// WebFilePath 仅在转码成功时设置一次，为空时回退到原始文件
type VideoFile struct {
	ID               int64     `gorm:"primaryKey" json:"file_id"`
	AnalysisID       int64     `gorm:"not null;index" json:"analysis_id"`
	OriginalFilename string    `gorm:"size:500;not null" json:"original_filename"`
	StoredFilename   string    `gorm:"size:500;not null" json:"stored_filename"`
	FilePath         string    `gorm:"size:500;not null" json:"file_path"`
	WebFilePath      string    `gorm:"size:500" json:"web_file_path,omitempty"`
	OSSURL           string    `gorm:"size:500" json:"oss_url,omitempty"`
	FileSize         int64     `gorm:"not null" json:"file_size"`
	DurationSeconds  *float64  `json:"duration_seconds,omitempty"`
	Resolution       string    `gorm:"size:20" json:"resolution,omitempty"`
	FPS              *float64  `json:"fps,omitempty"`
	Format           string    `gorm:"size:10" json:"format"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

func (VideoFile) TableName() string {
	return "video_files"
}

// PlayablePath 返回用于播放的文件路径（转码产物优先）
func (f *VideoFile) PlayablePath() string {
	if f.WebFilePath != "" {
		return f.WebFilePath
	}
	return f.FilePath
}
