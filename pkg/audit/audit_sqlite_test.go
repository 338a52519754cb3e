package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahulyyadav/Evara/pkg/store"
)

func TestSQLiteLog_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deliveries.db")

	log, err := NewSQLiteLog(path)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		n := store.Notification{
			ID:     "n" + string(rune('a'+i)),
			UserID: "u1",
			Task:   "task",
			DueAt:  base,
		}
		if err := log.RecordDelivery(ctx, n, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Journal survives reopen.
	log2, err := NewSQLiteLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer log2.Close()

	recent, err := log2.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(recent))
	}
	if recent[0].NotificationID != "nc" {
		t.Fatalf("expected newest first, got %s", recent[0].NotificationID)
	}
	if recent[0].DeliveredAtMS <= recent[1].DeliveredAtMS {
		t.Fatalf("expected descending delivered_at, got %d then %d", recent[0].DeliveredAtMS, recent[1].DeliveredAtMS)
	}
}
