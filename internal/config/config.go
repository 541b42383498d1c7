// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends accepted by CACHE_BACKEND
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and backups (defaults to "./data", always absolute)
	Port     int
	LogLevel string
	LogFile  string // Optional rotating log file
	DevMode  bool

	Assessment AssessmentConfig
	MarketData MarketDataConfig
	Cache      CacheConfig
	Backup     BackupConfig

	// EvaluationConfigFile optionally overrides the default scoring thresholds (YAML)
	EvaluationConfigFile string
}

// AssessmentConfig configures the AI assessment provider client
type AssessmentConfig struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

// MarketDataConfig configures the market-data provider client
type MarketDataConfig struct {
	URL    string
	APIKey string
}

// CacheConfig configures the evaluation result cache
type CacheConfig struct {
	Backend         string
	TTL             time.Duration
	RedisAddr       string
	CleanupSchedule string // cron spec with seconds field
}

// BackupConfig configures scheduled database backups to S3-compatible storage
type BackupConfig struct {
	Enabled         bool
	Schedule        string
	RetentionDays   int
	R2AccountID     string
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DEALEVAL_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Assessment: AssessmentConfig{
			URL:           getEnv("ASSESSMENT_PROVIDER_URL", ""),
			APIKey:        getEnv("ASSESSMENT_PROVIDER_API_KEY", ""),
			Timeout:       time.Duration(getEnvAsInt("ASSESSMENT_TIMEOUT_SECONDS", 20)) * time.Second,
			RatePerSecond: getEnvAsFloat("ASSESSMENT_RATE_PER_SECOND", 2),
		},
		MarketData: MarketDataConfig{
			URL:    getEnv("MARKET_DATA_URL", ""),
			APIKey: getEnv("MARKET_DATA_API_KEY", ""),
		},
		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", CacheBackendSQLite),
			TTL:             time.Duration(getEnvAsInt("EVALUATION_CACHE_TTL_MINUTES", 60)) * time.Minute,
			RedisAddr:       getEnv("REDIS_ADDR", ""),
			CleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 */15 * * * *"),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
			R2AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("S3_REGION", "auto"),
		},
		EvaluationConfigFile: getEnv("EVALUATION_CONFIG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the location of the main sqlite database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "dealeval.db")
}

// CacheDatabasePath returns the location of the sqlite cache database
func (c *Config) CacheDatabasePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// BackupDir returns the staging directory for backup archives
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.Cache.Backend {
	case CacheBackendSQLite:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("evaluation cache TTL must be positive")
	}

	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when backups are enabled")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("S3 credentials are required when backups are enabled")
		}
		if c.Backup.R2AccountID == "" && c.Backup.Endpoint == "" {
			return fmt.Errorf("either R2_ACCOUNT_ID or S3_ENDPOINT is required when backups are enabled")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
