package core

import (
	"context"
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// FineTuningClient is the remote API surface a run needs.
type FineTuningClient interface {
	CreateFineTuningJob(ctx context.Context, req *FineTuningJobRequest) (*FineTuningJob, error)
	RetrieveFineTuningJob(ctx context.Context, jobID string) (*FineTuningJob, error)
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	UploadFile(ctx context.Context, path, purpose string) (*File, error)
}

// StorageInterface storage interface
type StorageInterface interface {
	SaveStats(stats *RunStats) error
	LoadStats() (*RunStats, error)
	Close() error
}

// MetricsCollector interface
type MetricsCollector interface {
	RecordAPICall(operation string, success bool, duration time.Duration, requestID string)
	RecordRun(record RunRecord)
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordAPICall(operation string, success bool, duration time.Duration, requestID string) {
}
func (*NopMetrics) RecordRun(record RunRecord) {}
