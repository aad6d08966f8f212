package repository

import (
	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/internal/model"
)

type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// CreateWithDetails 在同一事务中写入结果及其子记录
func (r *ResultRepository) CreateWithDetails(
	result *model.AnalysisResult,
	votes []*model.ModelVote,
	findings []*model.ArtifactFinding,
	frames []*model.FrameSample,
) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}

		for _, v := range votes {
			v.ResultID = result.ID
		}
		if len(votes) > 0 {
			if err := tx.Create(votes).Error; err != nil {
				return err
			}
		}

		for _, f := range findings {
			f.ResultID = result.ID
		}
		if len(findings) > 0 {
			if err := tx.Create(findings).Error; err != nil {
				return err
			}
		}

		for _, f := range frames {
			f.ResultID = result.ID
		}
		if len(frames) > 0 {
			if err := tx.Create(frames).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *ResultRepository) GetByAnalysisID(analysisID int64) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	err := r.db.Where("analysis_id = ?", analysisID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) ListVotes(resultID int64) ([]*model.ModelVote, error) {
	var votes []*model.ModelVote
	err := r.db.Where("result_id = ?", resultID).Order("model_name ASC").Find(&votes).Error
	return votes, err
}

func (r *ResultRepository) ListFindings(resultID int64) ([]*model.ArtifactFinding, error) {
	var findings []*model.ArtifactFinding
	err := r.db.Where("result_id = ?", resultID).Order("id ASC").Find(&findings).Error
	return findings, err
}

func (r *ResultRepository) ListFrames(resultID int64) ([]*model.FrameSample, error) {
	var frames []*model.FrameSample
	err := r.db.Where("result_id = ?", resultID).Order("frame_number ASC").Find(&frames).Error
	return frames, err
}
