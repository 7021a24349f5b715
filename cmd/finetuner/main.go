package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finetuner/internal/config"
	"finetuner/internal/core"
	"finetuner/internal/finetune"
	logpkg "finetuner/internal/log"
	"finetuner/internal/metrics"
	"finetuner/internal/openai"
	"finetuner/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	defer func() {
		if appLog, ok := logger.(*logpkg.AppLogger); ok {
			_ = appLog.Close()
		}
	}()

	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Fatal("Fine-tuning run failed: %v", err)
	}
}

func run(ctx context.Context, logger core.Logger) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}

	storageInstance := storage.InitStorage(cfg.RedisURL, cfg.StatsFile, logger)
	defer func() { _ = storageInstance.Close() }()

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: time.Minute,
		HistorySize:  core.HistoryBufferSize,
		Storage:      storageInstance,
		Logger:       logger,
	})
	if err := metricsService.LoadStats(); err != nil {
		logger.Warn("Failed to load previous stats: %v", err)
	}
	defer func() {
		if err := metricsService.Close(); err != nil {
			logger.Warn("Failed to save stats: %v", err)
		}
	}()

	client := openai.NewClientFromConfig(cfg, metricsService, logger)
	runner := finetune.NewRunner(client, cfg, os.Stdout, logger, metricsService)

	result, err := runner.Run(ctx)
	logSummary(logger, metricsService, result)
	return err
}

func logSummary(logger core.Logger, ms *metrics.MetricsService, result *core.RunResult) {
	if result == nil || result.JobID == "" {
		return
	}
	logger.Info("Job %s ended %s after %d polls in %s", result.JobID, result.Status, result.Polls, result.Elapsed.Round(time.Second))

	stats := metrics.GetOperationStats(ms.GetRunStats().CallHistory, result.StartedAt)
	for _, op := range metrics.SortedOperations(stats) {
		s := stats[op]
		logger.Debug("%s: %d calls, %d failed, avg %dms", op, s.Calls, s.Failures, s.AvgLatency)
	}
}
