package config

import "time"

// Application constants
const (
	AppName    = "keygen-offline-validator"
	AppVersion = "1.0.0"

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "KEYGEN"
	// ConfigFileEnv names an optional YAML file with the same settings.
	ConfigFileEnv = "KEYGEN_CONFIG_FILE"

	DefaultHost        = "api.keygen.sh"
	DefaultScheme      = "ed25519"
	DefaultCacheDir    = "cache"
	DefaultRedisPrefix = "license:offline:"

	DefaultAuthorityTimeout = 10 * time.Second
	DefaultAuthorityRPS     = 5
	DefaultAuthorityBurst   = 5

	// DefaultCacheRetentionDays keeps yesterday's record around when pruning.
	DefaultCacheRetentionDays = 2
)

// Cache backends
const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)
