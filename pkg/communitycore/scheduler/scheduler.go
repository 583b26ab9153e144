// Package scheduler runs the periodic activity notification scan.
//
// Every period it loads activities starting inside a bounded lookahead
// window and, for each threshold whose trigger instant falls inside the
// tolerance band around now, notifies every current participant exactly once.
// Dispatch state is explicit: a persisted record per (activity, recipient,
// threshold) triple, never inferred from the wall clock alone.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quedadas/community-core/pkg/communitycore"
)

// Clock abstracts the wall clock for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Scheduler scans upcoming activities and dispatches threshold notifications.
type Scheduler struct {
	repo       communitycore.Repository
	sink       communitycore.NotificationSink
	thresholds []communitycore.Threshold
	period     time.Duration
	band       time.Duration
	clock      Clock
	log        *slog.Logger

	running atomic.Bool
}

// Option represents a functional option for configuring the scheduler
type Option func(*Scheduler)

// WithPeriod sets the scan period (default: 60s)
func WithPeriod(period time.Duration) Option {
	return func(s *Scheduler) {
		s.period = period
	}
}

// WithThresholds overrides the scanned thresholds
func WithThresholds(thresholds []communitycore.Threshold) Option {
	return func(s *Scheduler) {
		s.thresholds = thresholds
	}
}

// WithBand sets the trigger tolerance band (default: twice the period).
// Bands narrower than the period are widened to the period.
func WithBand(band time.Duration) Option {
	return func(s *Scheduler) {
		s.band = band
	}
}

// WithClock overrides the wall clock, for tests
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// New creates a scheduler over the given repository and sink.
func New(repo communitycore.Repository, sink communitycore.NotificationSink, options ...Option) *Scheduler {
	s := &Scheduler{
		repo:       repo,
		sink:       sink,
		thresholds: communitycore.DefaultThresholds,
		period:     60 * time.Second,
		clock:      systemClock{},
		log:        slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	// Each tick covers trigger instants within band/2 of now, and ticks land
	// one period apart. Covering a gap of two periods (one skipped or badly
	// delayed tick) therefore needs a band of at least twice the period;
	// that is the default. Bands narrower than the period would leave gaps
	// between ordinary consecutive ticks and are widened.
	if s.band == 0 {
		s.band = 2 * s.period
	}
	if s.band < s.period {
		s.band = s.period
	}
	return s
}

// Run ticks until ctx is cancelled. If a tick is still running when the next
// timer fires, that tick is skipped rather than queued; the tolerance band
// absorbs a single skipped tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.log.Info("notification scheduler started", "period", s.period, "band", s.band)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("notification scheduler stopped")
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				ticksSkipped.Inc()
				s.log.Warn("scan still running, skipping tick")
				continue
			}
			go func() {
				defer s.running.Store(false)
				s.Tick(ctx)
			}()
		}
	}
}

// Tick executes one scan at the clock's current instant. Exported so tests
// and operator tooling can drive scans directly.
func (s *Scheduler) Tick(ctx context.Context) {
	ticksTotal.Inc()
	now := s.clock.Now()

	var maxOffset time.Duration
	for _, t := range s.thresholds {
		if t.Offset() > maxOffset {
			maxOffset = t.Offset()
		}
	}

	// Lookahead covers the largest threshold plus the band on both sides, so
	// jitter in either direction cannot push a triggering activity outside
	// the loaded window.
	from := now.Add(-s.band)
	to := now.Add(maxOffset + s.band)

	activities, err := s.repo.FindActivitiesStartingBetween(ctx, from, to)
	if err != nil {
		s.log.Error("activity window scan failed", "error", err)
		return
	}

	for _, activity := range activities {
		for _, threshold := range s.thresholds {
			trigger := activity.StartsAt.Add(-threshold.Offset())
			if trigger.Before(now.Add(-s.band/2)) || trigger.After(now.Add(s.band/2)) {
				continue
			}
			s.dispatchThreshold(ctx, activity, threshold, now)
		}
	}
}

// dispatchThreshold notifies every participant of the activity for the given
// threshold, skipping anyone with an existing dispatch record. Ordering per
// recipient: notification document, dispatch record, then delivery. A
// delivery failure after the record is written is logged and never retried
// (no-duplicate wins over guaranteed delivery).
func (s *Scheduler) dispatchThreshold(ctx context.Context, activity *communitycore.Activity, threshold communitycore.Threshold, now time.Time) {
	participants, err := s.repo.FindActivityMembershipsByActivity(ctx, activity.ID)
	if err != nil {
		s.log.Error("participant scan failed", "activity_id", activity.ID, "error", err)
		return
	}

	for _, p := range participants {
		_, err := s.repo.GetDispatchRecord(ctx, activity.ID, p.Username, threshold)
		if err == nil {
			continue
		}
		if !communitycore.IsNotFound(err) {
			s.log.Error("dispatch record lookup failed",
				"activity_id", activity.ID, "recipient", p.Username, "threshold", threshold, "error", err)
			continue
		}

		notification := &communitycore.Notification{
			ID:          uuid.New(),
			Type:        threshold.NotificationType(),
			Recipient:   p.Username,
			RelatedID:   activity.ID.String(),
			RelatedName: activity.Name,
			CreatedAt:   now,
		}
		if err := s.repo.CreateNotification(ctx, notification); err != nil {
			s.log.Error("notification create failed",
				"activity_id", activity.ID, "recipient", p.Username, "threshold", threshold, "error", err)
			continue
		}

		record := &communitycore.DispatchRecord{
			ActivityID:   activity.ID,
			Recipient:    p.Username,
			Threshold:    threshold,
			DispatchedAt: now,
		}
		if err := s.repo.CreateDispatchRecord(ctx, record); err != nil {
			// Without the record the next tick re-dispatches; a duplicate is
			// the accepted cost of not losing the notification.
			s.log.Error("dispatch record write failed",
				"activity_id", activity.ID, "recipient", p.Username, "threshold", threshold, "error", err)
		}

		if err := s.sink.Deliver(ctx, notification); err != nil {
			deliveryFailures.Inc()
			s.log.Warn("notification delivery failed",
				"notification_id", notification.ID, "recipient", p.Username, "error", err)
			continue
		}
		dispatched.WithLabelValues(string(threshold)).Inc()
	}
}
