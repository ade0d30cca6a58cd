package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "anonsearch"
	AppDescription = "k-anonymity / l-diversity parameter search"
	AppVersion     = "0.1.0"

	// API constants
	APIPrefix = "/api/v1"

	// Default configuration values
	DefaultPort            = 8080
	DefaultMetricsPort     = 9090
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Search defaults
	DefaultMaxK        = 10
	DefaultAllowedDrop = 5
	DefaultWorkers     = 4
	LBoundMaxK         = "max_k"
	LBoundCategories   = "categories"

	// Generalization
	GeneralizedCategory = "Generalized Category"
	RangeSeparator      = "-"

	// Synthetic data defaults
	DefaultNumRecords = 50
	DefaultSeed       = 1

	// Storage defaults
	DefaultStorageType    = "none"
	DefaultStorageTimeout = 30 * time.Second
	DefaultReportTTL      = 7 * 24 * time.Hour
	DefaultKeyPrefix      = "anonsearch"

	StorageTypeNone  = "none"
	StorageTypeRedis = "redis"
	StorageTypeS3    = "s3"

	// Request limits
	MaxRequestRecords = 100000
	MaxRequestBytes   = 32 << 20
	MaxRequestMaxK    = 1000

	// Report listing
	DefaultReportListLimit = 100
	MaxReportListLimit     = 1000

	// Upper bound on (k, l) pairs evaluated by one search
	MaxGridCandidates = 1 << 20
)

// Environment variables
const (
	EnvPrefix     = "ANONSEARCH"
	EnvConfigFile = "ANONSEARCH_CONFIG"
)

// Metric namespace
const (
	MetricsNamespace = "anonsearch"
	MetricsSubsystem = "search"
)
