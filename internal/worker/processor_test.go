package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/model"
	"github.com/fakehunters/detect_go_server/internal/pkg/detector"
	"github.com/fakehunters/detect_go_server/internal/pkg/ffmpeg"
	"github.com/fakehunters/detect_go_server/internal/pkg/progress"
	"github.com/fakehunters/detect_go_server/internal/pkg/pubsub"
	"github.com/fakehunters/detect_go_server/internal/pkg/queue"
	"github.com/fakehunters/detect_go_server/internal/repository"
	"github.com/fakehunters/detect_go_server/internal/testutil"
)

type processorEnv struct {
	db            *gorm.DB
	processor     *Processor
	progressCache *progress.Cache
	resultRepo    *repository.ResultRepository
	cfg           *config.Config
}

func setupProcessor(t *testing.T, detectorURL string) (*processorEnv, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		FFmpeg: config.FFmpegConfig{
			Enabled: false,
		},
		Upload: config.UploadConfig{
			Dir: t.TempDir(),
		},
	}

	analysisRepo := repository.NewAnalysisRepository(db)
	fileRepo := repository.NewFileRepository(db)
	resultRepo := repository.NewResultRepository(db)
	progressCache := progress.NewCache(rdb, time.Hour)
	publisher := pubsub.NewPublisher(rdb)
	transcoder := ffmpeg.NewTranscoder("/nonexistent/ffmpeg", cfg.Upload.Dir)
	detectorClient := detector.NewClient(detectorURL, 10*time.Second)

	p := NewProcessor(analysisRepo, fileRepo, resultRepo, progressCache, publisher, transcoder, detectorClient, nil, cfg)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
		rdb.Close()
		mr.Close()
	}

	return &processorEnv{
		db:            db,
		processor:     p,
		progressCache: progressCache,
		resultRepo:    resultRepo,
		cfg:           cfg,
	}, cleanup
}

func newJob(t *testing.T, env *processorEnv) *queue.JobMessage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video payload"), 0644))

	analysis := testutil.TestVideoAnalysis(t, env.db)
	testutil.TestVideoFile(t, env.db, analysis.ID, testutil.WithFilePath(path))

	return &queue.JobMessage{
		AnalysisID:     analysis.ID,
		FilePath:       path,
		StoredFilename: filepath.Base(path),
		Format:         "mp4",
	}
}

func fakeDetectorServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, body, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

const fakeVerdictBody = `{
	"verdict": "fake",
	"confidence": 0.91,
	"model_version": "v2.1.0",
	"processing_time_ms": 3500,
	"model_outputs": {
		"xception": {"real_prob": 0.1, "fake_prob": 0.9, "patterns": ["face_boundary_blur"]},
		"efficientnet": {"real_prob": 0.15, "fake_prob": 0.85}
	},
	"time_segments": [
		{"start": 0, "end": 2, "risk": "high"},
		{"start": 2, "end": 4, "risk": "low"}
	]
}`

func TestProcessor_Process_Completed(t *testing.T) {
	server := fakeDetectorServer(t, fakeVerdictBody, http.StatusOK)
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	msg := newJob(t, env)

	err := env.processor.Process(context.Background(), msg)
	require.NoError(t, err)

	// 任务进入 COMPLETED 终态并记录完成时间
	var analysis model.VideoAnalysis
	require.NoError(t, env.db.First(&analysis, msg.AnalysisID).Error)
	assert.Equal(t, model.StatusCompleted, analysis.Status)
	require.NotNil(t, analysis.CompletedAt)

	// 结果已入库
	result, err := env.resultRepo.GetByAnalysisID(msg.AnalysisID)
	require.NoError(t, err)
	assert.True(t, result.IsDeepfake)
	assert.Equal(t, 0.91, result.ConfidenceScore)
	assert.Equal(t, model.RiskHigh, result.RiskLevel)

	votes, err := env.resultRepo.ListVotes(result.ID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, "efficientnet", votes[0].ModelName)
	assert.Equal(t, "xception", votes[1].ModelName)

	// 进度快照到达 100/completed
	snap, err := env.progressCache.Get(context.Background(), msg.AnalysisID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, pubsub.StageCompleted, snap.Stage)
}

func TestProcessor_Process_DetectorFailure(t *testing.T) {
	server := fakeDetectorServer(t, "model unavailable", http.StatusInternalServerError)
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	msg := newJob(t, env)

	err := env.processor.Process(context.Background(), msg)
	require.Error(t, err)

	// 任务进入 FAILED 终态
	var analysis model.VideoAnalysis
	require.NoError(t, env.db.First(&analysis, msg.AnalysisID).Error)
	assert.Equal(t, model.StatusFailed, analysis.Status)
	require.NotNil(t, analysis.CompletedAt)

	// 没有结果写入
	_, err = env.resultRepo.GetByAnalysisID(msg.AnalysisID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 失败快照
	snap, err := env.progressCache.Get(context.Background(), msg.AnalysisID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Progress)
	assert.Equal(t, pubsub.StageFailed, snap.Stage)
}

func TestProcessor_Process_SkipsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(fakeVerdictBody))
	}))
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	analysis := testutil.TestVideoAnalysis(t, env.db, testutil.WithStatus(model.StatusCompleted))
	msg := &queue.JobMessage{AnalysisID: analysis.ID, FilePath: "/tmp/whatever.mp4"}

	// 终态任务直接跳过，不触发任何外部调用
	err := env.processor.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestProcessor_Process_UnknownAnalysis(t *testing.T) {
	server := fakeDetectorServer(t, fakeVerdictBody, http.StatusOK)
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	msg := &queue.JobMessage{AnalysisID: 424242, FilePath: "/tmp/ghost.mp4"}

	err := env.processor.Process(context.Background(), msg)
	require.Error(t, err)
}

func TestProcessor_Process_TranscodeSoftFailure(t *testing.T) {
	server := fakeDetectorServer(t, fakeVerdictBody, http.StatusOK)
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	// 启用转码但 ffmpeg 不存在：降级使用原始文件，流水线照常完成
	env.cfg.FFmpeg.Enabled = true

	msg := newJob(t, env)

	err := env.processor.Process(context.Background(), msg)
	require.NoError(t, err)

	var analysis model.VideoAnalysis
	require.NoError(t, env.db.First(&analysis, msg.AnalysisID).Error)
	assert.Equal(t, model.StatusCompleted, analysis.Status)

	// 转码失败时不写 web 路径
	var file model.VideoFile
	require.NoError(t, env.db.Where("analysis_id = ?", msg.AnalysisID).First(&file).Error)
	assert.Empty(t, file.WebFilePath)
}

func TestProcessor_Process_RealVerdict(t *testing.T) {
	body := `{
		"verdict": "real",
		"confidence": 0.96,
		"model_version": "v2.1.0",
		"model_outputs": {
			"xception": {"real_prob": 0.95, "fake_prob": 0.05}
		}
	}`
	server := fakeDetectorServer(t, body, http.StatusOK)
	defer server.Close()

	env, cleanup := setupProcessor(t, server.URL)
	defer cleanup()

	msg := newJob(t, env)

	err := env.processor.Process(context.Background(), msg)
	require.NoError(t, err)

	result, err := env.resultRepo.GetByAnalysisID(msg.AnalysisID)
	require.NoError(t, err)
	assert.False(t, result.IsDeepfake)
	assert.Equal(t, model.RiskLow, result.RiskLevel)
	assert.Equal(t, 1.0, result.ModelAgreement)
}
