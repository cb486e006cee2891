package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverS3    = "s3"
	DriverMinio = "minio"

	DefaultJobSizeBytes int64 = 100 * 1024 * 1024
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	MetadataDSN  string
	ReportingDSN string

	ObjectStoreDriver string
	Bucket            string
	Region            string
	Endpoint          string
	AccessKey         string
	SecretKey         string
	UseSSL            bool

	JobSizeBytes    int64
	FileConcurrency int

	RedisAddr    string
	RedisLockKey string
	RedisLockTTL time.Duration

	HTTPAddr       string
	LogDevelopment bool
}

// Load reads ./.env.local when it exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load("./.env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env.local: %w", err)
	}

	metadataDSN := os.Getenv("METADATA_DATABASE_DSN")
	cfg := &Config{
		MetadataDSN:  metadataDSN,
		ReportingDSN: envOr("REPORTING_DATABASE_DSN", metadataDSN),

		ObjectStoreDriver: strings.ToLower(envOr("OBJECT_STORE_DRIVER", DriverS3)),
		Bucket:            os.Getenv("S3_BUCKET"),
		Region:            envOr("S3_REGION", "us-east-1"),
		Endpoint:          os.Getenv("S3_ENDPOINT"),
		AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		SecretKey:         os.Getenv("S3_SECRET_KEY"),
		UseSSL:            envBoolOr("S3_USE_SSL", true),

		JobSizeBytes:    envInt64Or("JOB_SIZE_IN_BYTES", DefaultJobSizeBytes),
		FileConcurrency: envIntOr("LOADER_FILE_CONCURRENCY", 1),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisLockKey: envOr("REDIS_LOCK_KEY", "pipeline:scanner:lock"),
		RedisLockTTL: envDurationOr("REDIS_LOCK_TTL", 15*time.Minute),

		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		LogDevelopment: envBoolOr("LOG_DEVELOPMENT", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MetadataDSN == "" {
		return fmt.Errorf("%w: METADATA_DATABASE_DSN is required", ErrInvalidConfig)
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: S3_BUCKET is required", ErrInvalidConfig)
	}
	if c.JobSizeBytes <= 0 {
		return fmt.Errorf("%w: JOB_SIZE_IN_BYTES must be positive, got %d", ErrInvalidConfig, c.JobSizeBytes)
	}
	switch c.ObjectStoreDriver {
	case DriverS3:
	case DriverMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: S3_ENDPOINT is required for the minio driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown OBJECT_STORE_DRIVER %q", ErrInvalidConfig, c.ObjectStoreDriver)
	}
	if c.FileConcurrency <= 0 {
		c.FileConcurrency = 1
	}
	return nil
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password: user:pass@ -> user:****@
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envInt64Or(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
