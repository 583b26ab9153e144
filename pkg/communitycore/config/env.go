package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors ServerConfig as flat environment variables, read with
// cleanenv.
type envConfig struct {
	Port        string `env:"PORT" env-default:""`
	Environment string `env:"ENVIRONMENT" env-default:""`

	DatabaseURL   string `env:"DATABASE_URL" env-default:""`
	MongoDatabase string `env:"MONGO_DATABASE" env-default:""`

	StorageURL string `env:"STORAGE_URL" env-default:""`
	FSBaseDir  string `env:"FS_BASE_DIR" env-default:""`

	S3Region          string `env:"AWS_S3_REGION" env-default:""`
	S3Bucket          string `env:"AWS_S3_BUCKET" env-default:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`

	ScanPeriod time.Duration `env:"SCAN_PERIOD" env-default:"0s"`
}

// WithEnv applies environment variable overrides.
//
// Environment variables:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	DATABASE_URL - "memory" or a mongodb:// connection string
//	MONGO_DATABASE - Mongo database name (default: "community")
//	STORAGE_URL - "memory://", "file:///path/to/data" or "s3://bucket"
//	SCAN_PERIOD - Notification scan period (default: 60s)
//
// S3 credentials come from the usual AWS_* variables.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return err
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}

		switch {
		case env.DatabaseURL == "" || env.DatabaseURL == "memory":
			// keep default
		case strings.HasPrefix(env.DatabaseURL, "mongodb://"),
			strings.HasPrefix(env.DatabaseURL, "mongodb+srv://"):
			c.DatabaseType = "mongo"
			c.DatabaseURL = env.DatabaseURL
		default:
			return errUnsupportedDatabaseURL(env.DatabaseURL)
		}
		if env.MongoDatabase != "" {
			c.MongoDatabase = env.MongoDatabase
		}

		if err := applyStorageEnv(&env, c); err != nil {
			return err
		}

		if env.ScanPeriod > 0 {
			c.ScanPeriod = env.ScanPeriod
		}

		return nil
	}
}

func applyStorageEnv(env *envConfig, c *ServerConfig) error {
	switch {
	case env.StorageURL == "" || env.StorageURL == "memory://":
		// keep default
	case strings.HasPrefix(env.StorageURL, "file://"):
		c.StorageType = "fs"
		c.FSBaseDir = strings.TrimPrefix(env.StorageURL, "file://")
	case strings.HasPrefix(env.StorageURL, "s3://"):
		c.StorageType = "s3"
		bucket := strings.TrimPrefix(env.StorageURL, "s3://")
		if i := strings.IndexByte(bucket, '?'); i >= 0 {
			bucket = bucket[:i]
		}
		c.S3.Bucket = bucket
	default:
		return errUnsupportedStorageURL(env.StorageURL)
	}

	if env.FSBaseDir != "" {
		c.FSBaseDir = env.FSBaseDir
		if c.StorageType == "memory" {
			c.StorageType = "fs"
		}
	}

	if env.S3Region != "" {
		c.S3.Region = env.S3Region
	}
	if env.S3Bucket != "" {
		c.S3.Bucket = env.S3Bucket
	}
	if env.S3AccessKeyID != "" {
		c.S3.AccessKeyID = env.S3AccessKeyID
	}
	if env.S3SecretAccessKey != "" {
		c.S3.SecretAccessKey = env.S3SecretAccessKey
	}
	if env.S3Endpoint != "" {
		c.S3.Endpoint = env.S3Endpoint
	}
	c.S3.UsePathStyle = env.S3UsePathStyle

	return nil
}

type errUnsupportedDatabaseURL string

func (e errUnsupportedDatabaseURL) Error() string {
	return "unsupported DATABASE_URL format: " + string(e) + " (use 'memory' or 'mongodb://...')"
}

type errUnsupportedStorageURL string

func (e errUnsupportedStorageURL) Error() string {
	return "unsupported STORAGE_URL format: " + string(e) + " (use 'memory://', 'file://...' or 's3://bucket')"
}
