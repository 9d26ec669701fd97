package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Polling    PollingConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	S3         S3Config
	Dynamo     DynamoConfig
	CloudWatch CloudWatchConfig
	Security   SecurityConfig
	RateLimit  RateLimitConfig
	Digest     DigestConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig описывает QuickSet backend, который управляет устройством.
type BackendConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

type PollingConfig struct {
	Interval time.Duration
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled               bool
	TableSnapshotMetadata string
	Region                string
	Endpoint              string
	AccessKeyID           string
	SecretAccessKey       string
	StrongReads           bool
	MetadataTTLDays       int
}

type CloudWatchConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	MetricsEnabled           bool
	MetricsNamespace         string
	MetricsDimensions        map[string]string
	MetricsBufferSize        int
	MetricsFlushInterval     time.Duration
	MetricsStorageResolution int32

	LogsEnabled       bool
	LogGroupName      string
	LogStreamName     string
	LogsBufferSize    int
	LogsFlushInterval time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// DigestConfig задаёт периодическую сводку по истории вердиктов.
type DigestConfig struct {
	Enabled  bool
	Interval time.Duration
	Window   int
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	pollInterval, err := parseDuration(getEnv("POLL_INTERVAL", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: must be positive")
	}

	backendTimeout, err := parseDuration(getEnv("QUICKSET_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUICKSET_REQUEST_TIMEOUT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisTTL, err := parseDuration(getEnv("REDIS_CACHE_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}

	presignedTTL, err := parseDuration(getEnv("S3_PRESIGNED_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGNED_TTL: %w", err)
	}

	metadataTTLDays, err := strconv.Atoi(getEnv("DYNAMODB_METADATA_TTL_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid DYNAMODB_METADATA_TTL_DAYS: %w", err)
	}

	metricsFlush, err := parseDuration(getEnv("CLOUDWATCH_METRICS_FLUSH_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_METRICS_FLUSH_INTERVAL: %w", err)
	}

	logsFlush, err := parseDuration(getEnv("CLOUDWATCH_LOGS_FLUSH_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_LOGS_FLUSH_INTERVAL: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	digestInterval, err := parseDuration(getEnv("DIGEST_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIGEST_INTERVAL: %w", err)
	}
	if digestInterval < 5*time.Second {
		return nil, fmt.Errorf("invalid DIGEST_INTERVAL: must be >= 5s")
	}

	digestWindow, err := strconv.Atoi(getEnv("DIGEST_WINDOW", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIGEST_WINDOW: %w", err)
	}
	if digestWindow <= 0 {
		return nil, fmt.Errorf("invalid DIGEST_WINDOW: must be positive")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("QUICKSET_BASE_URL", "http://localhost:8000/api"),
			APIKey:         getEnv("QUICKSET_API_KEY", ""),
			RequestTimeout: backendTimeout,
		},
		Polling: PollingConfig{
			Interval: pollInterval,
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", true),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "quickset"),
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			TTL:          redisTTL,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_VERDICT_SUBJECT", "quickset.verdict.finalized"),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "quickset/snapshots"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    presignedTTL,
		},
		Dynamo: DynamoConfig{
			Enabled:               getEnvBool("DYNAMODB_ENABLED", false),
			TableSnapshotMetadata: getEnv("DYNAMODB_TABLE_SNAPSHOT_METADATA", "quickset_snapshot_metadata"),
			Region:                getEnv("DYNAMODB_REGION", "us-east-1"),
			Endpoint:              getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:           getEnv("DYNAMODB_ACCESS_KEY_ID", ""),
			SecretAccessKey:       getEnv("DYNAMODB_SECRET_ACCESS_KEY", ""),
			StrongReads:           getEnvBool("DYNAMODB_STRONG_READS", false),
			MetadataTTLDays:       metadataTTLDays,
		},
		CloudWatch: CloudWatchConfig{
			Region:                   getEnv("CLOUDWATCH_REGION", "us-east-1"),
			Endpoint:                 getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:              getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
			SecretAccessKey:          getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
			MetricsEnabled:           getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			MetricsNamespace:         getEnv("CLOUDWATCH_METRICS_NAMESPACE", "QuickSet/Verdicts"),
			MetricsDimensions:        parseDimensions(getEnv("CLOUDWATCH_METRICS_DIMENSIONS", "")),
			MetricsBufferSize:        100,
			MetricsFlushInterval:     metricsFlush,
			MetricsStorageResolution: 60,
			LogsEnabled:              getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:             getEnv("CLOUDWATCH_LOG_GROUP", "/quickset/dashboard"),
			LogStreamName:            getEnv("CLOUDWATCH_LOG_STREAM", "api"),
			LogsBufferSize:           50,
			LogsFlushInterval:        logsFlush,
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Digest: DigestConfig{
			Enabled:  getEnvBool("DIGEST_ENABLED", true),
			Interval: digestInterval,
			Window:   digestWindow,
		},
	}

	if cfg.Security.AuthEnabled && cfg.Security.AuthToken == "" {
		return nil, fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return nil, fmt.Errorf("QUICKSET_BASE_URL is required")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// parseDimensions разбирает строку вида "env=prod,team=qa".
func parseDimensions(raw string) map[string]string {
	dimensions := make(map[string]string)
	for _, pair := range splitCSV(raw) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		dimensions[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dimensions
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
