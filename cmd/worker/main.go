// Package main runs a standalone transcription worker. It consumes the same
// Redis queue as the in-server worker, so extra copies scale processing out.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipscribe/backend/config"
	"github.com/clipscribe/backend/internal/media"
	"github.com/clipscribe/backend/internal/pipeline"
	"github.com/clipscribe/backend/internal/transcriber"
	"github.com/clipscribe/backend/internal/transcriptions"
	"github.com/clipscribe/backend/internal/worker"
	"github.com/clipscribe/backend/pkg/database"
	"github.com/clipscribe/backend/pkg/queue"
	"github.com/clipscribe/backend/pkg/redis"
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

	transcriptionRepo := transcriptions.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

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
	processor := worker.NewTranscriptionProcessor(pipe, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	logger.Info("transcription worker listening")
	processor.Run(workerCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
