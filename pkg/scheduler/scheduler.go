// Package scheduler fires due notifications at most once, close to
// their due instant, by polling durable store state on a fixed tick.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rahulyyadav/Evara/pkg/store"
)

// Notifier delivers a due notification to the user. Implementations
// may be slow (network calls); any non-nil error means the delivery
// did not happen and will be retried on a later tick.
type Notifier interface {
	Deliver(ctx context.Context, userID, task string) error
}

// AuditLog records completed deliveries. Best effort: failures are
// logged and never block delivery bookkeeping.
type AuditLog interface {
	RecordDelivery(ctx context.Context, n store.Notification, deliveredAt time.Time) error
}

// Clock is injectable for tests.
type Clock func() time.Time

// Config controls tick cadence and the tolerance window.
type Config struct {
	Tick      time.Duration  // poll interval, default 15s
	Tolerance time.Duration  // first-attempt window after due, default 20s
	Location  *time.Location // fixed scheduling timezone
}

// Scheduler scans all pending notifications every tick and delivers
// the due ones through the injected notifier.
type Scheduler struct {
	store    *store.Store
	notifier Notifier
	audit    AuditLog
	cfg      Config
	now      Clock
	log      zerolog.Logger
}

func New(st *store.Store, notifier Notifier, audit AuditLog, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 15 * time.Second
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 20 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		store:    st,
		notifier: notifier,
		audit:    audit,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().In(cfg.Location) },
		log:      log,
	}
}

// SetClock replaces the time source. Test hook.
func (s *Scheduler) SetClock(clock Clock) { s.now = clock }

// Run blocks until ctx is canceled, executing one Tick per interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Dur("tick", s.cfg.Tick).Dur("tolerance", s.cfg.Tolerance).Msg("scheduler started")
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduler tick failed")
			}
		}
	}
}

// Tick reloads the store from disk, then delivers every pending
// notification whose due instant has been crossed. The reload makes
// the scheduler a poller over durable truth: notifications written by
// other process instances (or earlier ticks) are observed here, which
// is what rules out the stale in-memory copy bug.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := s.store.Load(); err != nil {
		return err
	}

	pending := s.store.PendingNotifications()
	if len(pending) == 0 {
		return nil
	}

	now := s.now()
	for _, n := range pending {
		sinceDue := now.Sub(n.DueAt.In(s.cfg.Location))
		if sinceDue < 0 {
			continue // not yet due
		}
		// Inside the tolerance window this is the first-attempt path.
		// Past the window the notification is still attempted: overdue
		// events are delivered late rather than expired.
		if sinceDue >= s.cfg.Tolerance {
			s.log.Warn().
				Str("notification", n.ID).
				Dur("overdue", sinceDue).
				Msg("delivering past tolerance window")
		}

		s.deliver(ctx, n, now)
	}
	return nil
}

// deliver makes the notifier call with no store lock held, and only
// marks the notification delivered after the notifier succeeds. A
// notifier failure leaves the status pending for the next tick.
func (s *Scheduler) deliver(ctx context.Context, n store.Notification, now time.Time) {
	if err := s.notifier.Deliver(ctx, n.UserID, n.Task); err != nil {
		s.log.Error().Err(err).
			Str("notification", n.ID).
			Str("user", n.UserID).
			Msg("delivery failed, will retry next tick")
		return
	}

	if err := s.store.UpdateNotificationStatus(n.ID, store.StatusDelivered); err != nil {
		s.log.Error().Err(err).
			Str("notification", n.ID).
			Msg("failed to persist delivered status")
		return
	}

	s.log.Info().
		Str("notification", n.ID).
		Str("user", n.UserID).
		Time("due_at", n.DueAt).
		Msg("notification delivered")

	if s.audit != nil {
		if err := s.audit.RecordDelivery(ctx, n, now); err != nil {
			s.log.Warn().Err(err).Str("notification", n.ID).Msg("audit record failed")
		}
	}
}
