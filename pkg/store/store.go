package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the authoritative in-memory map of user id -> record. All
// reads and writes serialize through one mutex covering the whole map;
// record counts are small and correctness beats lock granularity here.
// Every mutation persists synchronously through the atomic writer
// before the call returns.
type Store struct {
	mu    sync.Mutex
	path  string
	users map[string]*UserRecord

	version   string
	createdAt time.Time

	rotator *Rotator
	log     zerolog.Logger
}

// Options configures a Store. Rotator may be nil, in which case
// corruption recovery falls straight back to an empty state.
type Options struct {
	Path    string
	Rotator *Rotator
	Log     zerolog.Logger
}

func New(opts Options) *Store {
	return &Store{
		path:      opts.Path,
		users:     make(map[string]*UserRecord),
		version:   SnapshotVersion,
		createdAt: time.Now().UTC(),
		rotator:   opts.Rotator,
		log:       opts.Log,
	}
}

// Load reads the canonical snapshot into memory. A missing file yields
// an empty store. A corrupt file triggers the backup restoration
// cascade; if that fails too the store starts empty. Load never fails
// the process over bad state, only over unexpected I/O errors.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug().Str("path", s.path).Msg("no snapshot file, starting fresh")
			s.adoptLocked(&Snapshot{Version: SnapshotVersion, CreatedAt: time.Now().UTC(), Users: map[string]*UserRecord{}})
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	snap, err := decodeSnapshot(s.path, data)
	if err == nil {
		s.adoptLocked(snap)
		return nil
	}

	var corrupt *CorruptSnapshotError
	if !errors.As(err, &corrupt) {
		return err
	}

	s.log.Error().Err(err).Msg("snapshot corrupt, attempting backup restore")
	if s.rotator != nil {
		if restored, source, ok := s.rotator.RestoreLatest(); ok {
			s.adoptLocked(restored)
			s.log.Info().Str("backup", source).Msg("restored store from backup")
			// Re-persist the adopted state canonically right away.
			if err := s.persistLocked(); err != nil {
				s.log.Warn().Err(err).Msg("failed to re-persist restored snapshot")
			}
			return nil
		}
	}

	s.log.Warn().Msg("no valid backup available, starting with empty store")
	s.adoptLocked(&Snapshot{Version: SnapshotVersion, CreatedAt: time.Now().UTC(), Users: map[string]*UserRecord{}})
	return nil
}

func (s *Store) adoptLocked(snap *Snapshot) {
	s.users = snap.Users
	s.version = snap.Version
	s.createdAt = snap.CreatedAt
}

// persistLocked writes the current state through the atomic writer.
// Callers must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := encodeSnapshot(&Snapshot{Version: s.version, CreatedAt: s.createdAt, Users: s.users})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	return nil
}

// getUserLocked returns the record for id, materializing an empty one
// on first sight. Callers must hold s.mu.
func (s *Store) getUserLocked(id string) *UserRecord {
	id = NormalizeUserID(id)
	rec, ok := s.users[id]
	if !ok {
		rec = newUserRecord(time.Now().UTC())
		s.users[id] = rec
	}
	return rec
}

// GetUser returns a deep copy of the user's record, materializing an
// empty record in memory on first interaction. Reading never persists.
func (s *Store) GetUser(id string) *UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUserLocked(id).clone()
}

// Mutate applies fn to the user's record under the store lock, bumps
// last_interaction and persists. A failed disk write is returned to the
// caller but the in-memory change is kept; the next successful mutation
// re-persists everything.
func (s *Store) Mutate(id string, fn func(*UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getUserLocked(id)
	if err := fn(rec); err != nil {
		return err
	}
	rec.LastInteraction = time.Now().UTC()

	if err := s.persistLocked(); err != nil {
		s.log.Error().Err(err).Str("user", NormalizeUserID(id)).Msg("disk write failed, in-memory state retained")
		return err
	}
	return nil
}

// AppendTurn appends one conversation turn, enforcing the history cap.
func (s *Store) AppendTurn(id string, turn ConversationTurn, limit int) error {
	if limit <= 0 {
		limit = 50
	}
	return s.Mutate(id, func(rec *UserRecord) error {
		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now().UTC()
		}
		rec.ConversationHistory = append(rec.ConversationHistory, turn)
		if n := len(rec.ConversationHistory); n > limit {
			rec.ConversationHistory = rec.ConversationHistory[n-limit:]
		}
		return nil
	})
}

// RecentTurns returns up to limit most recent turns for context
// assembly, oldest first.
func (s *Store) RecentTurns(id string, limit int) []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.getUserLocked(id).ConversationHistory
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return append([]ConversationTurn(nil), hist...)
}

// AddNotification stores a new scheduled notification for the user.
// The id must be unique across the whole store; a duplicate is
// rejected without mutating state. Without that check a single accepted
// call would persist a snapshot the loader rejects as corrupt.
func (s *Store) AddNotification(id string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		return fmt.Errorf("notification id is required")
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	if !n.Status.valid() {
		return fmt.Errorf("invalid notification status %q", n.Status)
	}
	for _, rec := range s.users {
		for i := range rec.Notifications {
			if rec.Notifications[i].ID == n.ID {
				return fmt.Errorf("notification %s: %w", n.ID, ErrDuplicateNotification)
			}
		}
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UserID = NormalizeUserID(id)

	rec := s.getUserLocked(id)
	rec.Notifications = append(rec.Notifications, n)
	rec.LastInteraction = time.Now().UTC()

	if err := s.persistLocked(); err != nil {
		s.log.Error().Err(err).Str("user", n.UserID).Msg("disk write failed, in-memory state retained")
		return err
	}
	return nil
}

// UpdateNotificationStatus transitions a notification by id, across
// all users. Only pending -> delivered and pending -> cancelled are
// legal; anything else is rejected without mutating state.
func (s *Store) UpdateNotificationStatus(notifID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != StatusDelivered && status != StatusCancelled {
		return fmt.Errorf("transition to %q: %w", status, ErrInvalidTransition)
	}

	for _, rec := range s.users {
		for i := range rec.Notifications {
			n := &rec.Notifications[i]
			if n.ID != notifID {
				continue
			}
			if n.Status != StatusPending {
				return fmt.Errorf("%s -> %s: %w", n.Status, status, ErrInvalidTransition)
			}
			n.Status = status
			if status == StatusDelivered {
				now := time.Now().UTC()
				n.DeliveredAt = &now
			}
			rec.LastInteraction = time.Now().UTC()

			if err := s.persistLocked(); err != nil {
				s.log.Error().Err(err).Str("notification", notifID).Msg("disk write failed, in-memory state retained")
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", notifID, ErrNotificationNotFound)
}

// CancelNotification marks a pending notification cancelled.
func (s *Store) CancelNotification(notifID string) error {
	return s.UpdateNotificationStatus(notifID, StatusCancelled)
}

// NotificationsFor returns the user's notifications, optionally
// filtered by status, sorted as stored (creation order).
func (s *Store) NotificationsFor(id string, status Status) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Notification
	for _, n := range s.getUserLocked(id).Notifications {
		if status != "" && n.Status != status {
			continue
		}
		out = append(out, n)
	}
	return out
}

// PendingNotifications returns copies of every pending notification
// across all users. The scheduler iterates this copy so the lock is
// never held across notifier calls.
func (s *Store) PendingNotifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Notification
	for id, rec := range s.users {
		for _, n := range rec.Notifications {
			if n.Status != StatusPending {
				continue
			}
			if n.UserID == "" {
				n.UserID = id
			}
			out = append(out, n)
		}
	}
	return out
}

// AddTrackedEntity stores a collaborator-defined record, assigning
// bookkeeping timestamps when absent.
func (s *Store) AddTrackedEntity(id string, e TrackedEntity) error {
	return s.Mutate(id, func(rec *UserRecord) error {
		if e.ID == "" {
			return fmt.Errorf("tracked entity id is required")
		}
		now := time.Now().UTC()
		if e.TrackedSince.IsZero() {
			e.TrackedSince = now
		}
		if e.LastChecked.IsZero() {
			e.LastChecked = now
		}
		if e.Fields == nil {
			e.Fields = map[string]any{}
		}
		rec.TrackedEntities = append(rec.TrackedEntities, e)
		return nil
	})
}

// UpdateTrackedEntity merges updates into the entity's fields and
// refreshes last_checked.
func (s *Store) UpdateTrackedEntity(id, entityID string, updates map[string]any) error {
	return s.Mutate(id, func(rec *UserRecord) error {
		for i := range rec.TrackedEntities {
			e := &rec.TrackedEntities[i]
			if e.ID != entityID {
				continue
			}
			for k, v := range updates {
				e.Fields[k] = v
			}
			e.LastChecked = time.Now().UTC()
			return nil
		}
		return fmt.Errorf("entity %s: %w", entityID, ErrEntityNotFound)
	})
}

// RemoveTrackedEntity deletes the entity by id.
func (s *Store) RemoveTrackedEntity(id, entityID string) error {
	return s.Mutate(id, func(rec *UserRecord) error {
		for i := range rec.TrackedEntities {
			if rec.TrackedEntities[i].ID != entityID {
				continue
			}
			rec.TrackedEntities = append(rec.TrackedEntities[:i], rec.TrackedEntities[i+1:]...)
			return nil
		}
		return fmt.Errorf("entity %s: %w", entityID, ErrEntityNotFound)
	})
}

// TrackedEntities returns copies of the user's tracked entities.
func (s *Store) TrackedEntities(id string) []TrackedEntity {
	return s.GetUser(id).TrackedEntities
}

// SetPreference stores one preference value. The store enforces no
// schema on preferences.
func (s *Store) SetPreference(id, key string, value any) error {
	return s.Mutate(id, func(rec *UserRecord) error {
		rec.Preferences[key] = value
		return nil
	})
}

// SetPreferences merges several preference values in one mutation.
func (s *Store) SetPreferences(id string, prefs map[string]any) error {
	return s.Mutate(id, func(rec *UserRecord) error {
		for k, v := range prefs {
			rec.Preferences[k] = v
		}
		return nil
	})
}

// GetPreference returns the preference value or def when unset.
func (s *Store) GetPreference(id, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.getUserLocked(id).Preferences[key]; ok {
		return v
	}
	return def
}

// SnapshotForRead returns an immutable deep copy of the whole store
// for callers that iterate without holding the lock.
func (s *Store) SnapshotForRead() map[string]*UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*UserRecord, len(s.users))
	for id, rec := range s.users {
		out[id] = rec.clone()
	}
	return out
}

// UserCount reports the number of known users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Path returns the canonical snapshot location.
func (s *Store) Path() string { return s.path }
