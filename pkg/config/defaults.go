package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotline"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDefaultHoldTTL       = 5 * time.Minute
	DefaultMaxHoldTTL           = 30 * time.Minute
	DefaultHoldSweepInterval    = 30 * time.Second
	DefaultIdempotencyRetention = 24 * time.Hour
	DefaultSlotStep             = 15 * time.Minute
	DefaultMaxSlotRangeDays     = 62

	DefaultPaginationLimit = 100
)
