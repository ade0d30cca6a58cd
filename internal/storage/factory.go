package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/storage/implementations/redis"
	"github.com/inferloop/anonsearch/internal/storage/implementations/s3"
	"github.com/inferloop/anonsearch/internal/storage/interfaces"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Config selects and configures the report store backend
type Config struct {
	Type  string             `json:"type" mapstructure:"type"`
	Redis *redis.RedisConfig `json:"redis,omitempty" mapstructure:"redis"`
	S3    *s3.S3Config       `json:"s3,omitempty" mapstructure:"s3"`
}

// Enabled reports whether a backend other than "none" is selected
func (c *Config) Enabled() bool {
	return c != nil && c.Type != "" && c.Type != constants.StorageTypeNone
}

// DefaultConfig returns a disabled store config with backend defaults filled in
func DefaultConfig() *Config {
	return &Config{
		Type: constants.DefaultStorageType,
		Redis: &redis.RedisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  constants.DefaultStorageTimeout,
			ReadTimeout:  constants.DefaultStorageTimeout,
			WriteTimeout: constants.DefaultStorageTimeout,
			PoolSize:     10,
			MaxRetries:   3,
			TTL:          constants.DefaultReportTTL,
			KeyPrefix:    constants.DefaultKeyPrefix,
		},
		S3: &s3.S3Config{
			Region:         "us-east-1",
			Prefix:         constants.DefaultKeyPrefix,
			Timeout:        constants.DefaultStorageTimeout,
			MaxRetries:     3,
			PartSize:       5 * 1024 * 1024,
			UseCompression: true,
			StorageClass:   "STANDARD",
		},
	}
}

// CreateFunc builds a report store from config
type CreateFunc func(config *Config) (interfaces.ReportStore, error)

// Factory creates report stores by backend type
type Factory struct {
	creators map[string]CreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFactory creates a new storage factory with the redis and s3 backends registered
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]CreateFunc),
		logger:   logger,
	}

	factory.registerDefaults()

	return factory
}

// CreateStore creates a report store for config.Type
func (f *Factory) CreateStore(config *Config) (interfaces.ReportStore, error) {
	if !config.Enabled() {
		return nil, errors.NewStorageError(errors.CodeStorageNotConfigured, "Report storage is not configured")
	}

	f.mu.RLock()
	createFunc, exists := f.creators[config.Type]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.NewStorageError("UNSUPPORTED_TYPE", fmt.Sprintf("Storage type '%s' is not supported", config.Type))
	}

	store, err := createFunc(config)
	if err != nil {
		return nil, errors.WrapStorageError(err, "CREATION_FAILED", fmt.Sprintf("Failed to create %s storage", config.Type))
	}

	f.logger.WithFields(logrus.Fields{
		"storage_type": config.Type,
	}).Info("Created report store")

	return store, nil
}

// GetSupportedTypes returns all supported storage types
func (f *Factory) GetSupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for storageType := range f.creators {
		types = append(types, storageType)
	}
	sort.Strings(types)

	return types
}

// RegisterStore registers a new storage type
func (f *Factory) RegisterStore(storageType string, createFunc CreateFunc) error {
	if storageType == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "Storage type cannot be empty")
	}

	if createFunc == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "Storage create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.creators[storageType] = createFunc

	f.logger.WithFields(logrus.Fields{
		"storage_type": storageType,
	}).Debug("Registered storage type")

	return nil
}

// IsSupported checks if a storage type is supported
func (f *Factory) IsSupported(storageType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.creators[storageType]
	return exists
}

func (f *Factory) registerDefaults() {
	f.RegisterStore(constants.StorageTypeRedis, func(config *Config) (interfaces.ReportStore, error) {
		return redis.NewRedisStorage(config.Redis, f.logger)
	})

	f.RegisterStore(constants.StorageTypeS3, func(config *Config) (interfaces.ReportStore, error) {
		return s3.NewS3Storage(config.S3, f.logger)
	})
}

// NewReportStore builds the store selected by config with a fresh factory
func NewReportStore(config *Config, logger *logrus.Logger) (interfaces.ReportStore, error) {
	return NewFactory(logger).CreateStore(config)
}
