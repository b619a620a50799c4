// Package main runs the clipscribe HTTP API with the transcription worker and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipscribe/backend/config"
	"github.com/clipscribe/backend/internal/auth"
	"github.com/clipscribe/backend/internal/media"
	"github.com/clipscribe/backend/internal/middleware"
	"github.com/clipscribe/backend/internal/pipeline"
	"github.com/clipscribe/backend/internal/transcriber"
	"github.com/clipscribe/backend/internal/transcriptions"
	"github.com/clipscribe/backend/internal/worker"
	"github.com/clipscribe/backend/pkg/database"
	"github.com/clipscribe/backend/pkg/queue"
	"github.com/clipscribe/backend/pkg/redis"
	"github.com/clipscribe/backend/pkg/response"
	"github.com/clipscribe/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var audioArchive *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.AudioBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AudioBucket:          cfg.AWS.AudioBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		audioArchive, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("audio archive disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Transcriptions
	transcriptionRepo := transcriptions.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	transcriptionHandler := transcriptions.NewHandler(transcriptionRepo, jobQueue, audioArchive, logger)

	// Pipeline: media fetch, Whisper transcription, result persistence
	locator := media.NewLocator(cfg.Pipeline.YtDlpPath, cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath, logger)
	fetcher := media.NewFetcher(locator, media.Config{
		MaxVideoDuration: time.Duration(cfg.Pipeline.MaxVideoDurationSec) * time.Second,
		WorkDir:          cfg.Pipeline.WorkDir,
		DownloadTimeout:  time.Duration(cfg.Pipeline.DownloadTimeoutSec) * time.Second,
		ProbeTimeout:     time.Duration(cfg.Pipeline.ProbeTimeoutSec) * time.Second,
		ExtractTimeout:   time.Duration(cfg.Pipeline.ExtractTimeoutSec) * time.Second,
	}, logger)
	whisper := transcriber.New(transcriber.Config{
		APIKey:   cfg.OpenAI.APIKey,
		Language: cfg.OpenAI.Language,
	}, logger)

	var archiver pipeline.AudioArchiver
	if audioArchive != nil {
		archiver = audioArchive
	}
	pipe := pipeline.New(fetcher, whisper, transcriptionRepo, archiver, logger)
	pipelineHandler := pipeline.NewHandler(pipe, logger)
	processor := worker.NewTranscriptionProcessor(pipe, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		api.POST("/transcriptions", transcriptionHandler.Create)
		api.GET("/transcriptions", transcriptionHandler.List)
		api.GET("/transcriptions/:id", transcriptionHandler.GetByID)
		api.PATCH("/transcriptions/:id", transcriptionHandler.UpdateTitle)
		api.PUT("/transcriptions/:id/tags", transcriptionHandler.UpdateTags)
		api.GET("/transcriptions/:id/audio-url", transcriptionHandler.AudioURL)
		api.DELETE("/transcriptions/:id", transcriptionHandler.Delete)
		api.GET("/tags", transcriptionHandler.ListTags)

		// Synchronous processing trigger, used by operators and integration tests.
		api.POST("/internal/process-video", pipelineHandler.ProcessVideo)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (queued transcription jobs)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	logger.Info("transcription worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
