package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// encodeSnapshot serializes the full store state. Indented output keeps
// the snapshot file inspectable by hand.
func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses and structurally validates snapshot bytes.
// Any failure is reported as *CorruptSnapshotError so load paths can
// distinguish corruption from I/O errors.
func decodeSnapshot(path string, data []byte) (*Snapshot, error) {
	// The original flat format had user records at the top level. Try
	// the envelope first, then fall back to a legacy migration.
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &CorruptSnapshotError{Path: path, Reason: "not valid JSON", Err: err}
	}

	if snap.Users == nil {
		legacy, ok := migrateLegacySnapshot(data)
		if !ok {
			return nil, &CorruptSnapshotError{Path: path, Reason: "missing users envelope"}
		}
		snap = *legacy
	}

	mapLegacyStatuses(&snap)

	if err := validateSnapshot(&snap); err != nil {
		return nil, &CorruptSnapshotError{Path: path, Reason: "structural validation failed", Err: err}
	}

	normalizeSnapshot(&snap)
	return &snap, nil
}

// migrateLegacySnapshot handles the pre-envelope format where the file
// was a bare map of user id -> record.
func migrateLegacySnapshot(data []byte) (*Snapshot, bool) {
	var users map[string]*UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, false
	}
	if len(users) == 0 {
		return nil, false
	}
	return &Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Users:     users,
	}, true
}

// mapLegacyStatuses rewrites the old "sent" status to delivered so
// snapshots written by earlier versions pass validation.
func mapLegacyStatuses(snap *Snapshot) {
	for _, rec := range snap.Users {
		if rec == nil {
			continue
		}
		for i := range rec.Notifications {
			if rec.Notifications[i].Status == "sent" {
				rec.Notifications[i].Status = StatusDelivered
			}
		}
	}
}

func validateSnapshot(snap *Snapshot) error {
	// Notification ids are unique store-wide, not per user.
	seen := make(map[string]bool)
	for id, rec := range snap.Users {
		if id == "" {
			return fmt.Errorf("empty user id")
		}
		if rec == nil {
			return fmt.Errorf("user %s: nil record", id)
		}
		for i, n := range rec.Notifications {
			if n.ID == "" {
				return fmt.Errorf("user %s: notification %d has no id", id, i)
			}
			if seen[n.ID] {
				return fmt.Errorf("user %s: duplicate notification id %s", id, n.ID)
			}
			seen[n.ID] = true
			if !n.Status.valid() {
				return fmt.Errorf("user %s: notification %s has invalid status %q", id, n.ID, n.Status)
			}
			if n.DueAt.IsZero() {
				return fmt.Errorf("user %s: notification %s has no due instant", id, n.ID)
			}
		}
		for i, e := range rec.TrackedEntities {
			if e.ID == "" {
				return fmt.Errorf("user %s: tracked entity %d has no id", id, i)
			}
		}
	}
	return nil
}

// normalizeSnapshot fills fields older snapshots may lack so the rest
// of the store never sees nil collections.
func normalizeSnapshot(snap *Snapshot) {
	if snap.Version == "" {
		snap.Version = SnapshotVersion
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	for id, rec := range snap.Users {
		if rec.Preferences == nil {
			rec.Preferences = map[string]any{}
		}
		if rec.ConversationHistory == nil {
			rec.ConversationHistory = []ConversationTurn{}
		}
		if rec.TrackedEntities == nil {
			rec.TrackedEntities = []TrackedEntity{}
		}
		if rec.Notifications == nil {
			rec.Notifications = []Notification{}
		}
		for i := range rec.Notifications {
			if rec.Notifications[i].UserID == "" {
				rec.Notifications[i].UserID = id
			}
		}
	}
}
