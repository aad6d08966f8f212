package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(analysis *model.VideoAnalysis) error {
	return r.db.Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(id int64) (*model.VideoAnalysis, error) {
	var analysis model.VideoAnalysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.VideoAnalysis{}).Where("id = ?", id).Update("status", status).Error
}

// MarkCompleted 置为完成态并记录完成时间
func (r *AnalysisRepository) MarkCompleted(id int64) error {
	now := time.Now()
	return r.db.Model(&model.VideoAnalysis{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.StatusCompleted,
		"completed_at": &now,
	}).Error
}

// MarkFailed 置为失败态并记录完成时间
func (r *AnalysisRepository) MarkFailed(id int64) error {
	now := time.Now()
	return r.db.Model(&model.VideoAnalysis{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.StatusFailed,
		"completed_at": &now,
	}).Error
}

// ListStaleProcessing 查询超过给定时长仍处于 PROCESSING 的任务（供清理工具巡检报告用）
func (r *AnalysisRepository) ListStaleProcessing(olderThan time.Duration) ([]*model.VideoAnalysis, error) {
	var analyses []*model.VideoAnalysis
	cutoff := time.Now().Add(-olderThan)
	err := r.db.Where("status = ? AND created_at < ?", model.StatusProcessing, cutoff).
		Order("created_at ASC").
		Find(&analyses).Error
	return analyses, err
}
