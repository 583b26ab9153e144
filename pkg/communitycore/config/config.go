package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quedadas/community-core/pkg/communitycore"
	mongorepo "github.com/quedadas/community-core/pkg/communitycore/repo/mongo"
	memoryrepo "github.com/quedadas/community-core/pkg/communitycore/repo/memory"
	"github.com/quedadas/community-core/pkg/communitycore/scheduler"
	fsstorage "github.com/quedadas/community-core/pkg/communitycore/storage/fs"
	memorystorage "github.com/quedadas/community-core/pkg/communitycore/storage/memory"
	s3storage "github.com/quedadas/community-core/pkg/communitycore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		DatabaseType:  "memory",
		MongoDatabase: "community",
		StorageType:   "memory",
		ScanPeriod:    60 * time.Second,
	}
}

// ServerConfig represents server configuration for the community-core service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseType  string // "memory", "mongo"
	DatabaseURL   string // mongodb:// connection string when DatabaseType is "mongo"
	MongoDatabase string

	// Storage configuration
	StorageType string // "memory", "fs", "s3"
	FSBaseDir   string
	S3          S3Config

	// Scheduler configuration
	ScanPeriod time.Duration
}

// S3Config represents configuration for the S3 storage backend
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	CreateBucket    bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "mongo":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using mongo")
		}
		if c.MongoDatabase == "" {
			return errors.New("mongo database name is required")
		}
	default:
		return errors.New("database_type must be 'memory' or 'mongo'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs base dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_type must be 'memory', 'fs' or 's3'")
	}

	if c.ScanPeriod <= 0 {
		return errors.New("scan period must be positive")
	}

	return nil
}

// Server bundles the wired components built from a ServerConfig.
type Server struct {
	Config     *ServerConfig
	Repository communitycore.Repository
	BlobStore  communitycore.BlobStore
	Service    communitycore.Service
	Scheduler  *scheduler.Scheduler
}

// BuildServer wires repository, blob store, service and scheduler from the
// configuration. The provided sink receives scheduler deliveries; a nil sink
// falls back to logging deliveries.
func (c *ServerConfig) BuildServer(ctx context.Context, sink communitycore.NotificationSink, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = communitycore.NewLogNotificationSink(log)
	}

	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, err
	}

	store, err := c.buildBlobStore()
	if err != nil {
		return nil, err
	}

	svc, err := communitycore.New(
		communitycore.WithRepository(repo),
		communitycore.WithBlobStore(store),
		communitycore.WithNotificationSink(sink),
		communitycore.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(repo, sink,
		scheduler.WithPeriod(c.ScanPeriod),
		scheduler.WithLogger(log),
	)

	return &Server{
		Config:     c,
		Repository: repo,
		BlobStore:  store,
		Service:    svc,
		Scheduler:  sched,
	}, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context) (communitycore.Repository, error) {
	switch c.DatabaseType {
	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().
			ApplyURI(c.DatabaseURL).
			SetRegistry(mongorepo.Registry()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		repo := mongorepo.New(client.Database(c.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return memoryrepo.New(), nil
	}
}

func (c *ServerConfig) buildBlobStore() (communitycore.BlobStore, error) {
	switch c.StorageType {
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return memorystorage.New(), nil
	}
}
