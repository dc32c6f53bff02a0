package server

import (
	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/aegyptus-stt/internal/config"
	"github.com/xpanvictor/aegyptus-stt/internal/domains/transcription"
	"github.com/xpanvictor/aegyptus-stt/internal/handlers"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

type Dependencies struct {
	TranscriptionService transcription.TranscriptionService
	Profiles             []string
	Logger               *Logger.Logger
	Configs              *config.Settings
}

func NewServerDependencies(
	service transcription.TranscriptionService,
	profiles []string,
	logger *Logger.Logger,
	config *config.Settings,
) Dependencies {
	return Dependencies{
		TranscriptionService: service,
		Profiles:             profiles,
		Logger:               logger,
		Configs:              config,
	}
}

// NewRouter builds the engine with the shared middleware stack.
func NewRouter(cfg *config.Settings, logger *Logger.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.Server.MaxMultipartMB << 20
	r.Use(
		handlers.RequestLoggerMiddleware(logger),
		handlers.ErrorHandlerMiddleware(logger),
		handlers.CORSMiddleware(),
		handlers.BodyLimitMiddleware(cfg.Server.MaxMultipartMB<<20),
	)
	return r
}

func InitializeRoutes(cfg *config.Settings, r *gin.Engine, dep Dependencies) {
	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	speech := handlers.NewSpeechHandler(dep.TranscriptionService, dep.Profiles, dep.Logger)

	// short paths for direct callers, /api/speech for the portal frontend
	r.POST("/transcribe", speech.Transcribe)
	r.POST("/transcribe/enhanced", speech.TranscribeEnhanced)

	api := r.Group("/api/speech")
	{
		api.POST("/transcribe", speech.Transcribe)
		api.POST("/transcribe/enhanced", speech.TranscribeEnhanced)
		api.POST("/synthesize", speech.Synthesize)
		api.GET("/status", speech.Status)
	}
}
