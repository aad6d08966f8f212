package repository

import (
	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.VideoFile) error {
	return r.db.Create(file).Error
}

func (r *FileRepository) GetByAnalysisID(analysisID int64) (*model.VideoFile, error) {
	var file model.VideoFile
	err := r.db.Where("analysis_id = ?", analysisID).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateWebFile 记录转码产物路径和时长，转码成功后只调用一次
func (r *FileRepository) UpdateWebFile(analysisID int64, webPath string, duration *float64) error {
	updates := map[string]interface{}{
		"web_file_path": webPath,
	}
	if duration != nil {
		updates["duration_seconds"] = *duration
	}
	return r.db.Model(&model.VideoFile{}).Where("analysis_id = ?", analysisID).Updates(updates).Error
}

// UpdateOSSURL 记录归档到 OSS 后的访问地址
func (r *FileRepository) UpdateOSSURL(analysisID int64, url string) error {
	return r.db.Model(&model.VideoFile{}).Where("analysis_id = ?", analysisID).Update("oss_url", url).Error
}
