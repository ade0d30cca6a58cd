package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// RedisConfig holds configuration for Redis report storage
type RedisConfig struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	Password      string        `json:"password" mapstructure:"password"`
	DB            int           `json:"db" mapstructure:"db"`
	DialTimeout   time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	PoolSize      int           `json:"pool_size" mapstructure:"pool_size"`
	MaxRetries    int           `json:"max_retries" mapstructure:"max_retries"`
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix     string        `json:"key_prefix" mapstructure:"key_prefix"`
	UseClustering bool          `json:"use_clustering" mapstructure:"use_clustering"`
	ClusterAddrs  []string      `json:"cluster_addrs" mapstructure:"cluster_addrs"`
}

// RedisStorage stores search reports as JSON strings with a TTL and keeps a
// sorted index of report IDs scored by save time. Index entries older than
// the TTL point at expired reports and are trimmed on every save and list.
type RedisStorage struct {
	config *RedisConfig
	client redis.UniversalClient
	logger *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(config *RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis config cannot be nil")
	}

	if config.Addr == "" && len(config.ClusterAddrs) == 0 {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis address or cluster addresses are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &RedisStorage{
		config: config,
		logger: logger,
	}, nil
}

// Type returns the backend name
func (r *RedisStorage) Type() string {
	return "redis"
}

// Connect establishes connection to Redis
func (r *RedisStorage) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil
	}

	var client redis.UniversalClient
	if r.config.UseClustering && len(r.config.ClusterAddrs) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        r.config.ClusterAddrs,
			Password:     r.config.Password,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			PoolSize:     r.config.PoolSize,
			MaxRetries:   r.config.MaxRetries,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         r.config.Addr,
			Password:     r.config.Password,
			DB:           r.config.DB,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			PoolSize:     r.config.PoolSize,
			MaxRetries:   r.config.MaxRetries,
		})
	}

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return errors.WrapStorageError(err, errors.CodeConnectionFailed, "Failed to connect to Redis")
	}

	r.client = client
	r.closed = false

	r.logger.WithFields(logrus.Fields{
		"addr":       r.config.Addr,
		"db":         r.config.DB,
		"clustering": r.config.UseClustering,
	}).Info("Connected to Redis")

	return nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	r.closed = true
	if err != nil {
		return errors.WrapStorageError(err, "CLOSE_FAILED", "Failed to close Redis connection")
	}

	r.logger.Info("Redis connection closed")
	return nil
}

// Ping tests the Redis connection
func (r *RedisStorage) Ping(ctx context.Context) error {
	client, err := r.connected()
	if err != nil {
		return err
	}

	if _, err := client.Ping(ctx).Result(); err != nil {
		return errors.WrapStorageError(err, errors.CodeConnectionFailed, "Redis ping failed")
	}
	return nil
}

// Save stores the report and indexes it by save time
func (r *RedisStorage) Save(ctx context.Context, report *models.SearchReport) error {
	client, err := r.connected()
	if err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return errors.WrapStorageError(err, errors.CodeWriteFailed, "Failed to serialize report")
	}

	now := time.Now()
	pipe := client.TxPipeline()
	pipe.Set(ctx, r.generateReportKey(report.ID), data, r.config.TTL)
	pipe.ZAdd(ctx, r.generateIndexKey(), &redis.Z{
		Score:  float64(now.Unix()),
		Member: report.ID,
	})
	r.trimIndex(ctx, pipe, now)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.WrapStorageError(err, errors.CodeWriteFailed, "Failed to store report in Redis")
	}

	r.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"bytes":     len(data),
	}).Debug("Stored report in Redis")

	return nil
}

// Load fetches a report by ID
func (r *RedisStorage) Load(ctx context.Context, id string) (*models.SearchReport, error) {
	client, err := r.connected()
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, r.generateReportKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewStorageError(errors.CodeReportNotFound, fmt.Sprintf("report %s not found", id))
	}
	if err != nil {
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to read report from Redis")
	}

	var report models.SearchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to decode report")
	}
	return &report, nil
}

// List returns up to limit live report IDs, newest first
func (r *RedisStorage) List(ctx context.Context, limit int64) ([]string, error) {
	client, err := r.connected()
	if err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}

	pipe := client.TxPipeline()
	r.trimIndex(ctx, pipe, time.Now())
	ids := pipe.ZRevRange(ctx, r.generateIndexKey(), 0, stop)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to list reports")
	}
	return ids.Val(), nil
}

// trimIndex drops index entries whose reports have expired and lets the
// index itself expire one TTL after the last write. No-op without a TTL.
func (r *RedisStorage) trimIndex(ctx context.Context, pipe redis.Pipeliner, now time.Time) {
	cutoff, ok := r.indexCutoff(now)
	if !ok {
		return
	}
	pipe.ZRemRangeByScore(ctx, r.generateIndexKey(), "-inf", cutoff)
	pipe.Expire(ctx, r.generateIndexKey(), r.config.TTL)
}

// indexCutoff is the exclusive upper score bound of expired index entries.
func (r *RedisStorage) indexCutoff(now time.Time) (string, bool) {
	if r.config.TTL <= 0 {
		return "", false
	}
	return fmt.Sprintf("(%d", now.Add(-r.config.TTL).Unix()), true
}

func (r *RedisStorage) connected() (redis.UniversalClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.client == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "Redis not connected")
	}
	return r.client, nil
}

func (r *RedisStorage) generateReportKey(id string) string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:report:%s", r.config.KeyPrefix, id)
	}
	return fmt.Sprintf("report:%s", id)
}

func (r *RedisStorage) generateIndexKey() string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:reports", r.config.KeyPrefix)
	}
	return "reports"
}
