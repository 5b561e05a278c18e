// Package main runs the background job worker (confirmation mail, marketing
// sync, queued badge prints).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/badges"
	"github.com/lumen-events/backend/internal/checkin"
	"github.com/lumen-events/backend/internal/events"
	"github.com/lumen-events/backend/internal/mailer"
	"github.com/lumen-events/backend/internal/registrations"
	"github.com/lumen-events/backend/internal/worker"
	"github.com/lumen-events/backend/pkg/database"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	registrationRepo := registrations.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	checkinRepo := checkin.NewRepository(pool)
	badgeRepo := badges.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	mailSender := mailer.NewSender(cfg.Email, logger)
	marketingClient := mailer.NewMarketingClient(cfg.Marketing, logger)
	buildMail := func(recipientName, eventName, locale string) (string, string) {
		return mailer.ConfirmationSubject(eventName, locale), mailer.ConfirmationBody(recipientName, eventName, locale)
	}

	var printerBridge worker.BadgePrinter
	if cfg.Printing.Enabled() {
		printerBridge = badges.NewBridge(cfg.Printing.BridgeURL, time.Duration(cfg.Printing.TimeoutSec)*time.Second, logger)
	}

	processor := worker.NewProcessor(jobQueue, registrationRepo, eventRepo, checkinRepo, badgeRepo, printerBridge, mailSender, marketingClient, buildMail, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
