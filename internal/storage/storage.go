// Package storage persists run statistics. The data is a report of past calls
// and runs; nothing reads it back to resume a job.
package storage

import (
	"context"
	"errors"
	"os"

	"finetuner/internal/core"
	"finetuner/internal/util"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// FileStorage implements persistence using JSON files
type FileStorage struct {
	filePath string
}

func NewFileStorage(filePath string) *FileStorage {
	if filePath == "" {
		filePath = core.StatsFilePath
	}
	return &FileStorage{filePath: filePath}
}

func (fs *FileStorage) SaveStats(stats *core.RunStats) error {
	data, err := sonic.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.filePath, data, core.FilePermissionReadWrite)
}

func (fs *FileStorage) LoadStats() (*core.RunStats, error) {
	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyStats(), nil
		}
		return nil, err
	}

	var stats core.RunStats
	if err := sonic.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	normalize(&stats)
	return &stats, nil
}

func (fs *FileStorage) Close() error {
	return nil
}

// RedisStorage implements persistence using Redis
type RedisStorage struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// RedisStorageConfig Redis storage config
type RedisStorageConfig struct {
	URL string
	Key string
}

func NewRedisStorage(config RedisStorageConfig) (*RedisStorage, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx := context.Background()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, err
	}

	key := config.Key
	if key == "" {
		key = core.StatsRedisKey
	}

	return &RedisStorage{client: client, ctx: ctx, key: key}, nil
}

func (rs *RedisStorage) SaveStats(stats *core.RunStats) error {
	data, err := util.MarshalJSON(stats)
	if err != nil {
		return err
	}
	return rs.client.Set(rs.ctx, rs.key, data, 0).Err()
}

func (rs *RedisStorage) LoadStats() (*core.RunStats, error) {
	val, err := rs.client.Get(rs.ctx, rs.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return emptyStats(), nil
		}
		return nil, err
	}

	var stats core.RunStats
	if err := sonic.Unmarshal([]byte(val), &stats); err != nil {
		return nil, err
	}
	normalize(&stats)
	return &stats, nil
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

func emptyStats() *core.RunStats {
	return &core.RunStats{CallHistory: []core.CallRecord{}, Runs: []core.RunRecord{}}
}

func normalize(stats *core.RunStats) {
	if stats.CallHistory == nil {
		stats.CallHistory = []core.CallRecord{}
	}
	if stats.Runs == nil {
		stats.Runs = []core.RunRecord{}
	}
	if len(stats.Runs) > core.MaxRunHistory {
		stats.Runs = stats.Runs[len(stats.Runs)-core.MaxRunHistory:]
	}
}

// InitStorage picks Redis when redisURL is set and reachable, file storage otherwise.
func InitStorage(redisURL, statsFile string, logger core.Logger) core.StorageInterface {
	if logger == nil {
		logger = &core.NopLogger{}
	}

	if redisURL != "" {
		redisStorage, err := NewRedisStorage(RedisStorageConfig{
			URL: redisURL,
			Key: core.StatsRedisKey,
		})
		if err != nil {
			logger.Warn("Failed to initialize Redis storage: %v, falling back to file storage", err)
			return NewFileStorage(statsFile)
		}
		logger.Info("Using Redis storage")
		return redisStorage
	}

	logger.Debug("Using file storage")
	return NewFileStorage(statsFile)
}
