package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quedadas/community-core/pkg/communitycore/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, 60*time.Second, cfg.ScanPeriod)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "communities_prod")
	t.Setenv("STORAGE_URL", "file:///var/data/blobs")
	t.Setenv("SCAN_PERIOD", "30s")

	cfg, err := config.Load(config.WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "mongo", cfg.DatabaseType)
	assert.Equal(t, "mongodb://localhost:27017", cfg.DatabaseURL)
	assert.Equal(t, "communities_prod", cfg.MongoDatabase)
	assert.Equal(t, "fs", cfg.StorageType)
	assert.Equal(t, "/var/data/blobs", cfg.FSBaseDir)
	assert.Equal(t, 30*time.Second, cfg.ScanPeriod)
}

func TestLoadWithEnvS3Storage(t *testing.T) {
	t.Setenv("STORAGE_URL", "s3://media-bucket")
	t.Setenv("AWS_S3_REGION", "eu-west-1")

	cfg, err := config.Load(config.WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.StorageType)
	assert.Equal(t, "media-bucket", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}

func TestLoadRejectsUnknownURLs(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	_, err := config.Load(config.WithEnv())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*config.ServerConfig)
		expectError bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *config.ServerConfig) {},
		},
		{
			name:        "missing port",
			mutate:      func(c *config.ServerConfig) { c.Port = "" },
			expectError: true,
		},
		{
			name: "mongo without url",
			mutate: func(c *config.ServerConfig) {
				c.DatabaseType = "mongo"
			},
			expectError: true,
		},
		{
			name: "fs without base dir",
			mutate: func(c *config.ServerConfig) {
				c.StorageType = "fs"
			},
			expectError: true,
		},
		{
			name: "s3 without bucket",
			mutate: func(c *config.ServerConfig) {
				c.StorageType = "s3"
			},
			expectError: true,
		},
		{
			name: "non-positive scan period",
			mutate: func(c *config.ServerConfig) {
				c.ScanPeriod = 0
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildServerMemory(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	server, err := cfg.BuildServer(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.NotNil(t, server.Repository)
	assert.NotNil(t, server.BlobStore)
	assert.NotNil(t, server.Service)
	assert.NotNil(t, server.Scheduler)
}
