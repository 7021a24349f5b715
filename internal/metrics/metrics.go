package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"finetuner/internal/core"
)

var _ core.MetricsCollector = (*MetricsService)(nil)

// AtomicCallStats thread-safe API call statistics
type AtomicCallStats struct {
	TotalCalls      atomic.Int64
	SuccessfulCalls atomic.Int64
	FailedCalls     atomic.Int64
	TotalLatency    atomic.Int64
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
}

// MetricsService collects API call metrics and run summaries
type MetricsService struct {
	atomicStats      AtomicCallStats
	callHistory      []core.CallRecord
	runs             []core.RunRecord
	historyMu        sync.RWMutex
	lastCallTime     time.Time
	maxHistorySize   int
	storage          core.StorageInterface
	logger           core.Logger
	lastSaveTime     time.Time
	minSaveInterval  time.Duration
	done             chan struct{}
	closeOnce        sync.Once
	closeErr         error
	historyBuffer    []core.CallRecord
	bufferMu         sync.Mutex
	bufferFlushTimer *time.Ticker
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	ms := &MetricsService{
		maxHistorySize:  config.HistorySize,
		storage:         config.Storage,
		logger:          config.Logger,
		minSaveInterval: config.SaveInterval,
		done:            make(chan struct{}),
		historyBuffer:   make([]core.CallRecord, 0, core.HistoryBatchSize),
	}

	ms.bufferFlushTimer = time.NewTicker(core.HistoryFlushInterval)
	go ms.flushLoop()

	return ms
}

func (ms *MetricsService) flushLoop() {
	for {
		select {
		case <-ms.bufferFlushTimer.C:
			ms.flushBuffer()
		case <-ms.done:
			return
		}
	}
}

func (ms *MetricsService) flushBuffer() {
	ms.bufferMu.Lock()
	if len(ms.historyBuffer) == 0 {
		ms.bufferMu.Unlock()
		return
	}
	batch := ms.historyBuffer
	ms.historyBuffer = make([]core.CallRecord, 0, core.HistoryBatchSize)
	ms.bufferMu.Unlock()

	ms.historyMu.Lock()
	ms.callHistory = append(ms.callHistory, batch...)
	if len(ms.callHistory) > ms.maxHistorySize {
		ms.callHistory = ms.callHistory[len(ms.callHistory)-ms.maxHistorySize:]
	}
	ms.historyMu.Unlock()
}

// RecordAPICall records the outcome of one API call
func (ms *MetricsService) RecordAPICall(operation string, success bool, duration time.Duration, requestID string) {
	now := time.Now()
	latency := duration.Milliseconds()

	ms.historyMu.Lock()
	ms.lastCallTime = now
	ms.historyMu.Unlock()
	ms.atomicStats.TotalCalls.Add(1)
	ms.atomicStats.TotalLatency.Add(latency)

	if success {
		ms.atomicStats.SuccessfulCalls.Add(1)
	} else {
		ms.atomicStats.FailedCalls.Add(1)
	}

	record := core.CallRecord{
		Timestamp: now,
		Operation: operation,
		Success:   success,
		Latency:   latency,
		RequestID: requestID,
	}

	ms.bufferMu.Lock()
	ms.historyBuffer = append(ms.historyBuffer, record)
	shouldFlush := len(ms.historyBuffer) >= core.HistoryBatchSize
	ms.bufferMu.Unlock()

	if shouldFlush {
		ms.flushBuffer()
	}

	ms.SaveStatsDebounced()
}

// RecordRun stores the summary of a finished run, keeping the newest MaxRunHistory.
func (ms *MetricsService) RecordRun(record core.RunRecord) {
	ms.historyMu.Lock()
	ms.runs = append(ms.runs, record)
	if len(ms.runs) > core.MaxRunHistory {
		ms.runs = ms.runs[len(ms.runs)-core.MaxRunHistory:]
	}
	ms.historyMu.Unlock()
}

// GetRunStats returns current stats snapshot
func (ms *MetricsService) GetRunStats() core.RunStats {
	ms.flushBuffer()
	ms.historyMu.RLock()
	defer ms.historyMu.RUnlock()

	historyCopy := make([]core.CallRecord, len(ms.callHistory))
	copy(historyCopy, ms.callHistory)
	runsCopy := make([]core.RunRecord, len(ms.runs))
	copy(runsCopy, ms.runs)

	return core.RunStats{
		TotalCalls:      ms.atomicStats.TotalCalls.Load(),
		SuccessfulCalls: ms.atomicStats.SuccessfulCalls.Load(),
		FailedCalls:     ms.atomicStats.FailedCalls.Load(),
		TotalLatency:    ms.atomicStats.TotalLatency.Load(),
		LastCallTime:    ms.lastCallTime,
		CallHistory:     historyCopy,
		Runs:            runsCopy,
	}
}

// GetOperationStats groups call history by operation in a single pass.
// Only records at or after since are counted; a zero since counts everything.
func GetOperationStats(history []core.CallRecord, since time.Time) map[string]core.OperationStats {
	calls := make(map[string]int64)
	failures := make(map[string]int64)
	latency := make(map[string]int64)

	for _, record := range history {
		if record.Timestamp.Before(since) {
			continue
		}
		calls[record.Operation]++
		latency[record.Operation] += record.Latency
		if !record.Success {
			failures[record.Operation]++
		}
	}

	result := make(map[string]core.OperationStats, len(calls))
	for op, n := range calls {
		result[op] = core.OperationStats{
			Calls:      n,
			Failures:   failures[op],
			AvgLatency: latency[op] / n,
			ErrorRate:  math.Round(float64(failures[op])/float64(n)*10000) / 100,
		}
	}
	return result
}

// SortedOperations returns the keys of stats in a stable order for reporting.
func SortedOperations(stats map[string]core.OperationStats) []string {
	ops := make([]string, 0, len(stats))
	for op := range stats {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// LoadStats loads stats from storage
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.atomicStats.TotalCalls.Store(stats.TotalCalls)
	ms.atomicStats.SuccessfulCalls.Store(stats.SuccessfulCalls)
	ms.atomicStats.FailedCalls.Store(stats.FailedCalls)
	ms.atomicStats.TotalLatency.Store(stats.TotalLatency)

	ms.historyMu.Lock()
	ms.lastCallTime = stats.LastCallTime
	ms.callHistory = stats.CallHistory
	ms.runs = stats.Runs
	ms.historyMu.Unlock()

	return nil
}

// SaveStatsDebounced saves stats with debounce
func (ms *MetricsService) SaveStatsDebounced() {
	now := time.Now()
	ms.historyMu.Lock()
	if now.Sub(ms.lastSaveTime) < ms.minSaveInterval {
		ms.historyMu.Unlock()
		return
	}
	ms.lastSaveTime = now
	ms.historyMu.Unlock()

	if ms.storage == nil {
		return
	}

	stats := ms.GetRunStats()
	if err := ms.storage.SaveStats(&stats); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

// Close saves final stats and stops the flusher. Calls after the first are no-ops.
func (ms *MetricsService) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.bufferFlushTimer.Stop()
		ms.flushBuffer()

		if ms.storage != nil {
			stats := ms.GetRunStats()
			ms.closeErr = ms.storage.SaveStats(&stats)
		}
	})
	return ms.closeErr
}
