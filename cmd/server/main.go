package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/api"
	"github.com/fakehunters/detect_go_server/internal/api/handler"
	"github.com/fakehunters/detect_go_server/internal/database"
	"github.com/fakehunters/detect_go_server/internal/pkg/cron"
	"github.com/fakehunters/detect_go_server/internal/pkg/oss"
	"github.com/fakehunters/detect_go_server/internal/pkg/progress"
	"github.com/fakehunters/detect_go_server/internal/pkg/pubsub"
	"github.com/fakehunters/detect_go_server/internal/pkg/queue"
	"github.com/fakehunters/detect_go_server/internal/pkg/ws"
	"github.com/fakehunters/detect_go_server/internal/repository"
	"github.com/fakehunters/detect_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue、进度缓存和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	progressCache := progress.NewCache(rdb, cfg.Progress.TTL())
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 WebSocket Hub，并把 Redis 进度事件转发给订阅连接
	wsHub := ws.NewHub()
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.SendToAnalysis(msg.AnalysisID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		})
		if err != nil && err != context.Canceled {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	analysisRepo := repository.NewAnalysisRepository(db)
	fileRepo := repository.NewFileRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// 初始化 Service
	videoService := service.NewVideoService(analysisRepo, fileRepo, resultRepo, progressCache, jobQueue, ossClient, cfg)

	// 初始化 Handler
	videoHandler := handler.NewVideoHandler(videoService)
	websocketHandler := handler.NewWebSocketHandler(wsHub)

	// 启动媒体文件定时清理
	cronService := cron.NewService(cfg.Upload.Dir, cfg.Upload.ExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(videoHandler, websocketHandler, cfg)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
