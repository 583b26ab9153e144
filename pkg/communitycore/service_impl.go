package communitycore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	sink       NotificationSink
	media      *mediaManager
	log        *slog.Logger
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the media blob store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithNotificationSink sets the real-time notification sink
func WithNotificationSink(sink NotificationSink) Option {
	return func(s *service) {
		s.sink = sink
	}
}

// WithLogger sets the logger used for soft media failures and cascade progress
func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		s.log = log
	}
}

// WithClock overrides the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		log: slog.Default(),
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.sink == nil {
		s.sink = NewNoopNotificationSink()
	}

	s.media = &mediaManager{store: s.blobStore, log: s.log}

	return s, nil
}

// DownloadMedia streams a blob and its metadata by id.
func (s *service) DownloadMedia(ctx context.Context, id string) (io.ReadCloser, *BlobMeta, error) {
	meta, err := s.blobStore.Meta(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobStore.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rc, meta, nil
}

// Notification operations

func (s *service) ListNotifications(ctx context.Context, recipient string) ([]*Notification, error) {
	if _, err := s.repository.GetUserByUsername(ctx, recipient); err != nil {
		return nil, err
	}
	return s.repository.FindNotificationsByRecipient(ctx, recipient)
}

func (s *service) MarkNotificationRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := s.repository.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	if err := s.repository.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
