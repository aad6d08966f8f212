package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/model"
	"github.com/fakehunters/detect_go_server/internal/pkg/detector"
	"github.com/fakehunters/detect_go_server/internal/pkg/ffmpeg"
	"github.com/fakehunters/detect_go_server/internal/pkg/oss"
	"github.com/fakehunters/detect_go_server/internal/pkg/progress"
	"github.com/fakehunters/detect_go_server/internal/pkg/pubsub"
	"github.com/fakehunters/detect_go_server/internal/pkg/queue"
	"github.com/fakehunters/detect_go_server/internal/repository"
	"github.com/fakehunters/detect_go_server/internal/service"
)

// Processor 流水线处理器，每条任务消息是对应分析任务的唯一写入者
type Processor struct {
	analysisRepo *repository.AnalysisRepository
	fileRepo     *repository.FileRepository
	resultRepo   *repository.ResultRepository
	progress     *progress.Cache
	publisher    *pubsub.Publisher
	transcoder   *ffmpeg.Transcoder
	detector     *detector.Client
	ossClient    *oss.Client
	cfg          *config.Config
}

// NewProcessor 创建流水线处理器
func NewProcessor(
	analysisRepo *repository.AnalysisRepository,
	fileRepo *repository.FileRepository,
	resultRepo *repository.ResultRepository,
	progressCache *progress.Cache,
	publisher *pubsub.Publisher,
	transcoder *ffmpeg.Transcoder,
	detectorClient *detector.Client,
	ossClient *oss.Client,
	cfg *config.Config,
) *Processor {
	return &Processor{
		analysisRepo: analysisRepo,
		fileRepo:     fileRepo,
		resultRepo:   resultRepo,
		progress:     progressCache,
		publisher:    publisher,
		transcoder:   transcoder,
		detector:     detectorClient,
		ossClient:    ossClient,
		cfg:          cfg,
	}
}

// Process 处理一条分析任务
// 阶段严格顺序：转码 → AI 检测 → 聚合入库 → 终态标记，任何阶段失败即终结任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	analysis, err := p.analysisRepo.GetByID(msg.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	// 终态任务不再进入流水线
	if analysis.IsTerminal() {
		log.Printf("Analysis %d: already %s, skipping", analysis.ID, analysis.Status)
		return nil
	}

	// 定义进度更新辅助函数：缓存覆盖写入 + pub/sub 推送
	updateProgress := func(stage string, errMsg string) {
		snap := &progress.Snapshot{
			Progress: pubsub.StageProgress[stage],
			Stage:    stage,
			Detail:   pubsub.StageDetails[stage],
		}
		if err := p.progress.Set(ctx, msg.AnalysisID, snap); err != nil {
			log.Printf("Analysis %d: failed to update progress cache: %v", msg.AnalysisID, err)
		}

		status := model.StatusProcessing
		if stage == pubsub.StageCompleted {
			status = model.StatusCompleted
		} else if stage == pubsub.StageFailed {
			status = model.StatusFailed
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			AnalysisID: msg.AnalysisID,
			Status:     status,
			Stage:      stage,
			Error:      errMsg,
		})
	}

	// 定义失败处理函数：FAILED 终态只写一次
	handleError := func(stage string, err error) error {
		log.Printf("Analysis %d: pipeline failed at %s: %v", msg.AnalysisID, stage, err)
		if dbErr := p.analysisRepo.MarkFailed(msg.AnalysisID); dbErr != nil {
			log.Printf("Analysis %d: failed to mark failed: %v", msg.AnalysisID, dbErr)
		}
		updateProgress(pubsub.StageFailed, err.Error())
		return err
	}

	mediaPath := msg.FilePath

	// Step 1: 转码（软降级：失败只记录日志，继续用原始文件）
	log.Printf("Analysis %d: transcoding", msg.AnalysisID)
	updateProgress(pubsub.StageTranscoding, "")

	if p.cfg.FFmpeg.Enabled {
		if conv := p.transcoder.Normalize(ctx, msg.FilePath, msg.AnalysisID); conv != nil {
			if err := p.fileRepo.UpdateWebFile(msg.AnalysisID, conv.OutputPath, conv.Duration); err != nil {
				log.Printf("Analysis %d: failed to record web file: %v", msg.AnalysisID, err)
			} else {
				mediaPath = conv.OutputPath
			}
			p.archiveToOSS(msg.AnalysisID, conv.OutputPath)
		} else {
			log.Printf("Analysis %d: transcode failed, continuing with original file", msg.AnalysisID)
		}
	}

	// Step 2: 调用外部检测服务
	log.Printf("Analysis %d: calling detector", msg.AnalysisID)
	updateProgress(pubsub.StageAnalyzing, "")

	raw, err := p.detector.Analyze(ctx, mediaPath, msg.AnalysisID)
	if err != nil {
		return handleError(pubsub.StageAnalyzing, fmt.Errorf("detection failed: %w", err))
	}

	// Step 3: 聚合并入库
	// 入库失败只记录日志：检测本身已成功，任务仍然走向完成（沿用既有行为）
	log.Printf("Analysis %d: aggregating result", msg.AnalysisID)
	updateProgress(pubsub.StageSaving, "")

	output := service.BuildAnalysisResult(msg.AnalysisID, raw)
	if err := p.resultRepo.CreateWithDetails(output.Result, output.Votes, output.Findings, output.Frames); err != nil {
		log.Printf("Analysis %d: failed to persist result: %v", msg.AnalysisID, err)
	}

	// Step 4: 终态标记
	if err := p.analysisRepo.MarkCompleted(msg.AnalysisID); err != nil {
		return handleError(pubsub.StageSaving, fmt.Errorf("failed to mark completed: %w", err))
	}
	updateProgress(pubsub.StageCompleted, "")

	log.Printf("Analysis %d: completed, verdict=%s confidence=%.2f votes=%d",
		msg.AnalysisID, raw.Verdict, raw.Confidence, len(output.Votes))

	return nil
}

// archiveToOSS 将可播放文件归档到 OSS（未配置时跳过）
func (p *Processor) archiveToOSS(analysisID int64, localPath string) {
	if p.ossClient == nil {
		return
	}

	url, err := p.ossClient.UploadVideoFromFile(analysisID, localPath)
	if err != nil {
		log.Printf("Analysis %d: OSS archive failed: %v", analysisID, err)
		return
	}
	if err := p.fileRepo.UpdateOSSURL(analysisID, url); err != nil {
		log.Printf("Analysis %d: failed to record OSS URL: %v", analysisID, err)
	}
}
