package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"

	StorageDriverS3    = "s3"
	StorageDriverMinio = "minio"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Row store
	StoreDriver       string
	MongoURI          string
	MongoDbName       string
	MongoTransactions bool
	PostgresDSN       string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ViewCacheTTL  time.Duration

	// NATS (optional, empty disables the invalidation broadcast)
	NatsURL             string
	NatsInvalidateTopic string

	// JWT / session
	JwtSecret           string
	JwtTTL              time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	// Server
	ApiPort            string
	ServiceApiPort     string
	CorsAllowedOrigins []string

	// Object storage
	StorageDriver      string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	S3Bucket           string
	S3Endpoint         string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool
	PublicAssetBaseURL string

	// Uploads
	ListingImageMaxSizeMB int
	ProfileImageMaxSizeMB int
	ThumbnailsEnabled     bool
	ThumbnailMaxDimension int

	// Logging
	LogLevel  string
	LogFormat string

	// Rate limiting, tokens per second and bucket size per client IP
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getBool := func(key string, defaultValue bool) (bool, error) {
		raw := getEnv(key, strconv.FormatBool(defaultValue))
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo))
	switch cfg.StoreDriver {
	case StoreDriverMongo:
		cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
		if err != nil {
			return nil, err
		}
	case StoreDriverPostgres:
		cfg.PostgresDSN, err = getRequiredEnv("POSTGRES_DSN")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "realestate")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.NatsURL = getEnv("NATS_URL", "")
	cfg.NatsInvalidateTopic = getEnv("NATS_INVALIDATE_TOPIC", "views.invalidate")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.SessionCookieName = getEnv("SESSION_COOKIE_NAME", "session")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CorsAllowedOrigins = append(cfg.CorsAllowedOrigins, origin)
		}
	}

	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3))
	if cfg.StorageDriver != StorageDriverS3 && cfg.StorageDriver != StorageDriverMinio {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %q", cfg.StorageDriver)
	}
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "ap-northeast-2")
	cfg.S3Bucket = getEnv("S3_BUCKET", "properties")
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", "")
	cfg.MinioEndpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.MinioSecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.PublicAssetBaseURL = strings.TrimRight(getEnv("PUBLIC_ASSET_BASE_URL", ""), "/")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.MongoTransactions, err = getBool("MONGO_TRANSACTIONS", false); err != nil {
		return nil, err
	}
	if cfg.SessionCookieSecure, err = getBool("SESSION_COOKIE_SECURE", true); err != nil {
		return nil, err
	}
	if cfg.MinioUseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.ThumbnailsEnabled, err = getBool("THUMBNAILS_ENABLED", false); err != nil {
		return nil, err
	}

	viewCacheTTLSeconds, err := strconv.ParseInt(getEnv("VIEW_CACHE_TTL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VIEW_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.ViewCacheTTL = time.Duration(viewCacheTTLSeconds) * time.Second

	cfg.JwtTTL, err = time.ParseDuration(getEnv("JWT_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg.ListingImageMaxSizeMB, err = strconv.Atoi(getEnv("LISTING_IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LISTING_IMAGE_MAX_SIZE_MB: %w", err)
	}
	cfg.ProfileImageMaxSizeMB, err = strconv.Atoi(getEnv("PROFILE_IMAGE_MAX_SIZE_MB", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROFILE_IMAGE_MAX_SIZE_MB: %w", err)
	}
	cfg.ThumbnailMaxDimension, err = strconv.Atoi(getEnv("THUMBNAIL_MAX_DIMENSION", "400"))
	if err != nil {
		return nil, fmt.Errorf("invalid THUMBNAIL_MAX_DIMENSION: %w", err)
	}

	cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	return cfg, nil
}

// MaxBytes converts a megabyte limit into bytes.
func MaxBytes(mb int) int64 {
	return int64(mb) << 20
}
