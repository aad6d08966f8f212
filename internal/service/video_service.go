package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/model"
	"github.com/fakehunters/detect_go_server/internal/model/dto"
	"github.com/fakehunters/detect_go_server/internal/pkg/oss"
	"github.com/fakehunters/detect_go_server/internal/pkg/progress"
	"github.com/fakehunters/detect_go_server/internal/pkg/pubsub"
	"github.com/fakehunters/detect_go_server/internal/pkg/queue"
	"github.com/fakehunters/detect_go_server/internal/repository"
)

var (
	ErrFileRequired     = errors.New("请上传视频文件")
	ErrFileTooLarge     = errors.New("文件过大")
	ErrInvalidFormat    = errors.New("不支持的视频格式")
	ErrAnalysisNotFound = errors.New("分析任务不存在")
	ErrFileNotFound     = errors.New("视频文件不存在")
)

type VideoService struct {
	analysisRepo *repository.AnalysisRepository
	fileRepo     *repository.FileRepository
	resultRepo   *repository.ResultRepository
	progress     *progress.Cache
	jobQueue     *queue.Queue
	ossClient    *oss.Client // 可为 nil，表示未配置 OSS
	cfg          *config.Config
}

func NewVideoService(
	analysisRepo *repository.AnalysisRepository,
	fileRepo *repository.FileRepository,
	resultRepo *repository.ResultRepository,
	progressCache *progress.Cache,
	jobQueue *queue.Queue,
	ossClient *oss.Client,
	cfg *config.Config,
) *VideoService {
	return &VideoService{
		analysisRepo: analysisRepo,
		fileRepo:     fileRepo,
		resultRepo:   resultRepo,
		progress:     progressCache,
		jobQueue:     jobQueue,
		ossClient:    ossClient,
		cfg:          cfg,
	}
}

// Submit 提交视频分析
// 同步完成校验和持久化登记后立即返回，流水线其余部分交给后台 worker
func (s *VideoService) Submit(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*dto.SubmitVideoResponse, error) {
	// 校验失败是唯一同步返回的错误类别，此时不产生任何记录
	if err := s.validateFile(header); err != nil {
		return nil, err
	}

	analysis := &model.VideoAnalysis{
		Title:  header.Filename,
		Status: model.StatusPending,
	}
	if err := s.analysisRepo.Create(analysis); err != nil {
		return nil, err
	}

	storedFilename, filePath, err := s.saveFile(file, header, analysis.ID)
	if err != nil {
		// 存储失败不会有后台任务接手，任务直接终结，不能留在 PENDING
		log.Printf("Analysis %d: failed to store upload: %v", analysis.ID, err)
		s.analysisRepo.MarkFailed(analysis.ID)
		return nil, err
	}

	videoFile := &model.VideoFile{
		AnalysisID:       analysis.ID,
		OriginalFilename: header.Filename,
		StoredFilename:   storedFilename,
		FilePath:         filePath,
		FileSize:         header.Size,
		Format:           strings.TrimPrefix(fileExtension(header.Filename), "."),
		UploadedAt:       time.Now(),
	}
	if err := s.fileRepo.Create(videoFile); err != nil {
		log.Printf("Analysis %d: failed to record video file: %v", analysis.ID, err)
		s.analysisRepo.MarkFailed(analysis.ID)
		return nil, err
	}

	if err := s.analysisRepo.UpdateStatus(analysis.ID, model.StatusProcessing); err != nil {
		return nil, err
	}

	// 初始进度快照写入缓存，客户端从此刻起可以轮询进度
	if err := s.progress.Set(ctx, analysis.ID, &progress.Snapshot{
		Progress: pubsub.StageProgress[pubsub.StageQueued],
		Stage:    pubsub.StageQueued,
		Detail:   pubsub.StageDetails[pubsub.StageQueued],
	}); err != nil {
		log.Printf("Analysis %d: failed to write initial progress: %v", analysis.ID, err)
	}

	msg := &queue.JobMessage{
		AnalysisID:     analysis.ID,
		FilePath:       filePath,
		StoredFilename: storedFilename,
		Format:         videoFile.Format,
	}
	if err := s.jobQueue.Push(ctx, msg); err != nil {
		// 入队失败意味着不会有后台任务接手，直接终结
		log.Printf("Analysis %d: failed to enqueue job: %v", analysis.ID, err)
		s.analysisRepo.MarkFailed(analysis.ID)
		s.progress.Set(ctx, analysis.ID, &progress.Snapshot{
			Progress: 0,
			Stage:    pubsub.StageFailed,
			Detail:   pubsub.StageDetails[pubsub.StageFailed],
		})
		return nil, err
	}

	log.Printf("Analysis %d: submitted, file=%s size=%d", analysis.ID, storedFilename, header.Size)

	return &dto.SubmitVideoResponse{
		AnalysisID: analysis.ID,
		Title:      analysis.Title,
		Status:     model.StatusProcessing,
		CreatedAt:  analysis.CreatedAt,
		VideoFile:  videoFile,
	}, nil
}

// GetAnalysis 任务完整视图：任务 + 文件 + 结果（如已产出）
func (s *VideoService) GetAnalysis(analysisID int64) (*dto.VideoAnalysisDetail, error) {
	analysis, err := s.analysisRepo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	detail := &dto.VideoAnalysisDetail{
		AnalysisID:  analysis.ID,
		Title:       analysis.Title,
		Status:      analysis.Status,
		CreatedAt:   analysis.CreatedAt,
		CompletedAt: analysis.CompletedAt,
	}

	if file, err := s.fileRepo.GetByAnalysisID(analysisID); err == nil {
		detail.VideoFile = s.buildFileView(file)
	}

	result, err := s.resultRepo.GetByAnalysisID(analysisID)
	if err != nil {
		// 结果尚未产出（任务处理中或失败）不是错误
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return detail, nil
		}
		return nil, err
	}

	detail.Result = result
	if votes, err := s.resultRepo.ListVotes(result.ID); err == nil {
		detail.ModelVotes = votes
	}
	if findings, err := s.resultRepo.ListFindings(result.ID); err == nil {
		detail.Findings = findings
	}
	if frames, err := s.resultRepo.ListFrames(result.ID); err == nil {
		detail.Frames = frames
	}

	return detail, nil
}

// GetProgress 读取进度快照，缓存无数据时返回 (nil, nil)
// 缓存缺失不等于任务不存在，调用方应回退到查询任务状态
func (s *VideoService) GetProgress(ctx context.Context, analysisID int64) (*progress.Snapshot, error) {
	return s.progress.Get(ctx, analysisID)
}

// ResolveMediaPath 解析播放文件路径（转码产物优先），不关心任务状态
// 分析进行中也允许播放
func (s *VideoService) ResolveMediaPath(analysisID int64) (string, error) {
	file, err := s.fileRepo.GetByAnalysisID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrFileNotFound
		}
		return "", err
	}

	path := file.PlayablePath()
	if _, err := os.Stat(path); err != nil {
		return "", ErrFileNotFound
	}
	return path, nil
}

func (s *VideoService) validateFile(header *multipart.FileHeader) error {
	if header == nil || header.Size == 0 {
		return ErrFileRequired
	}
	if header.Size > s.cfg.Upload.MaxSize {
		return ErrFileTooLarge
	}

	ext := fileExtension(header.Filename)
	for _, allowed := range s.cfg.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return ErrInvalidFormat
}

func (s *VideoService) saveFile(file multipart.File, header *multipart.FileHeader, analysisID int64) (string, string, error) {
	if err := os.MkdirAll(s.cfg.Upload.Dir, 0755); err != nil {
		return "", "", err
	}

	storedFilename := fmt.Sprintf("%d_%d%s", analysisID, time.Now().UnixMilli(), fileExtension(header.Filename))
	filePath := filepath.Join(s.cfg.Upload.Dir, storedFilename)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath)
		return "", "", err
	}

	return storedFilename, filePath, nil
}

func (s *VideoService) buildFileView(file *model.VideoFile) *dto.VideoFileView {
	view := &dto.VideoFileView{
		FileID:           file.ID,
		AnalysisID:       file.AnalysisID,
		OriginalFilename: file.OriginalFilename,
		StoredFilename:   file.StoredFilename,
		FilePath:         file.PlayablePath(),
		FileSize:         file.FileSize,
		DurationSeconds:  file.DurationSeconds,
		Resolution:       file.Resolution,
		FPS:              file.FPS,
		Format:           file.Format,
		UploadedAt:       file.UploadedAt,
	}

	// OSS 已归档时附带签名播放地址
	if s.ossClient != nil && file.OSSURL != "" {
		if objectKey := s.ossClient.ExtractObjectKey(file.OSSURL); objectKey != "" {
			if signed, err := s.ossClient.GetSignedURL(objectKey); err == nil {
				view.SignedURL = signed
			}
		}
	}

	return view
}

func fileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
