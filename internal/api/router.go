package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/api/handler"
	"github.com/fakehunters/detect_go_server/internal/api/middleware"
)

type Router struct {
	videoHandler     *handler.VideoHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	videoHandler *handler.VideoHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		videoHandler:     videoHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		video := api.Group("/video")
		{
			video.POST("/analyze", r.videoHandler.Analyze)
			video.GET("/analysis/:id", r.videoHandler.Get)
			video.GET("/progress/:id", r.videoHandler.Progress)
			video.GET("/files/:id", r.videoHandler.GetFile)

			// WebSocket 进度推送
			video.GET("/ws/:id", r.websocketHandler.Handle)
		}
	}

	return engine
}
