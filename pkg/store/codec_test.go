package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSnapshot_Validation(t *testing.T) {
	due := time.Now().Add(time.Hour).Format(time.RFC3339)

	testcases := []struct {
		name        string
		data        string
		wantErr     bool
		errContains string
	}{
		{
			name: "valid-envelope",
			data: `{"version":"2.0","created_at":"2026-01-02T03:04:05Z","users":{
				"919876543210":{"first_seen":"2026-01-02T03:04:05Z","last_interaction":"2026-01-02T03:04:05Z",
				"preferences":{},"conversation_history":[],"tracked_entities":[],
				"notifications":[{"id":"n1","user_id":"919876543210","task":"call","due_at":"` + due + `","status":"pending","created_at":"2026-01-02T03:04:05Z"}]}}}`,
			wantErr: false,
		},
		{
			name:        "not-json",
			data:        `{"users": {broken`,
			wantErr:     true,
			errContains: "not valid JSON",
		},
		{
			name:        "missing-envelope",
			data:        `{"version":"2.0"}`,
			wantErr:     true,
			errContains: "missing users envelope",
		},
		{
			name: "invalid-status",
			data: `{"users":{"u1":{"notifications":[{"id":"n1","task":"t","due_at":"` + due + `","status":"snoozed"}]}}}`,
			wantErr:     true,
			errContains: "invalid status",
		},
		{
			name: "duplicate-notification-id",
			data: `{"users":{"u1":{"notifications":[
				{"id":"n1","task":"a","due_at":"` + due + `","status":"pending"},
				{"id":"n1","task":"b","due_at":"` + due + `","status":"pending"}]}}}`,
			wantErr:     true,
			errContains: "duplicate notification id",
		},
		{
			name: "duplicate-notification-id-across-users",
			data: `{"users":{
				"u1":{"notifications":[{"id":"n1","task":"a","due_at":"` + due + `","status":"pending"}]},
				"u2":{"notifications":[{"id":"n1","task":"b","due_at":"` + due + `","status":"pending"}]}}}`,
			wantErr:     true,
			errContains: "duplicate notification id",
		},
		{
			name:        "notification-without-due",
			data:        `{"users":{"u1":{"notifications":[{"id":"n1","task":"t","status":"pending"}]}}}`,
			wantErr:     true,
			errContains: "no due instant",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := decodeSnapshot("test.json", []byte(tc.data))
			if tc.wantErr {
				assert.Error(t, err)
				var corrupt *CorruptSnapshotError
				assert.True(t, errors.As(err, &corrupt), "expected CorruptSnapshotError, got %T", err)
				if tc.errContains != "" {
					assert.Contains(t, err.Error(), tc.errContains)
				}
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		})
	}
}

func TestDecodeSnapshot_LegacyFlatFormatMigrates(t *testing.T) {
	data := `{"919876543210":{"first_seen":"2026-01-02T03:04:05Z","last_interaction":"2026-01-02T03:04:05Z"}}`

	snap, err := decodeSnapshot("legacy.json", []byte(data))
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("expected migrated version %s, got %s", SnapshotVersion, snap.Version)
	}
	rec, ok := snap.Users["919876543210"]
	if !ok {
		t.Fatal("expected legacy user carried over")
	}
	if rec.Preferences == nil || rec.Notifications == nil {
		t.Fatal("expected collections normalized to non-nil")
	}
}

func TestDecodeSnapshot_LegacySentStatusMapsToDelivered(t *testing.T) {
	data := `{"users":{"u1":{"notifications":[{"id":"n1","task":"t","due_at":"2026-01-02T03:04:05Z","status":"sent"}]}}}`

	snap, err := decodeSnapshot("test.json", []byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap.Users["u1"].Notifications[0].Status; got != StatusDelivered {
		t.Fatalf("expected sent mapped to delivered, got %q", got)
	}
}

func TestDecodeSnapshot_FillsOwnerUserID(t *testing.T) {
	due := time.Now().Add(time.Hour).Format(time.RFC3339)
	data := `{"users":{"u9":{"notifications":[{"id":"n1","task":"t","due_at":"` + due + `","status":"pending"}]}}}`

	snap, err := decodeSnapshot("test.json", []byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap.Users["u9"].Notifications[0].UserID; got != "u9" {
		t.Fatalf("expected owner id filled in, got %q", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: now,
		Users: map[string]*UserRecord{
			"u1": {
				FirstSeen:           now,
				LastInteraction:     now,
				Preferences:         map[string]any{"lang": "en"},
				ConversationHistory: []ConversationTurn{{Timestamp: now, UserMessage: "hi", AgentResponse: "hello"}},
				TrackedEntities:     []TrackedEntity{{ID: "e1", Fields: map[string]any{"title": "x"}, TrackedSince: now, LastChecked: now}},
				Notifications:       []Notification{{ID: "n1", UserID: "u1", Task: "t", DueAt: now.Add(time.Hour), Status: StatusPending, CreatedAt: now}},
			},
		},
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeSnapshot("test.json", data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Users["u1"].Notifications[0].DueAt.UTC() != now.Add(time.Hour) {
		t.Fatalf("due instant drifted: %v", got.Users["u1"].Notifications[0].DueAt)
	}
	if got.Users["u1"].Preferences["lang"] != "en" {
		t.Fatalf("preferences drifted: %#v", got.Users["u1"].Preferences)
	}
}
