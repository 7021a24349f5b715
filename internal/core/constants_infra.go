package core

import "time"

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 10
	HTTPMaxIdleConnsPerHost   = 4
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPResponseHeaderTimeout = 2 * time.Minute
	HTTPRequestTimeout        = 5 * time.Minute
)

// Stats and monitoring constants
const (
	StatsFilePath        = "finetune_stats.json"
	StatsRedisKey        = "finetuner:stats"
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
	MaxRunHistory        = 100
)

// Response body size limits
const (
	MaxResponseBodySize = 10 * 1024 * 1024
	MaxErrorBodyLogSize = 512
)

// Validation limits
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)
