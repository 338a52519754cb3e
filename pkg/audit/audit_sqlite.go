// Package audit keeps an append-only journal of delivered
// notifications, separate from the snapshot so delivery history
// survives retention and store rewrites.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rahulyyadav/Evara/pkg/store"
)

// DeliveryRecord is one journal row.
type DeliveryRecord struct {
	ID             string
	NotificationID string
	UserID         string
	Task           string
	DueAtMS        int64
	DeliveredAtMS  int64
}

// SQLiteLog is the delivery journal backed by a local SQLite file.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog creates/opens the journal database at path.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// Single writer; one shared connection avoids SQLite writer lock
	// contention under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLog{db: db}
	if err := l.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			notification_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			task TEXT NOT NULL,
			due_at_ms INTEGER NOT NULL,
			delivered_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_user ON deliveries(user_id, delivered_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("init audit db: %w", err)
		}
	}
	return nil
}

func (l *SQLiteLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordDelivery appends one delivery row.
func (l *SQLiteLog) RecordDelivery(ctx context.Context, n store.Notification, deliveredAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, notification_id, user_id, task, due_at_ms, delivered_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), n.ID, n.UserID, n.Task, n.DueAt.UnixMilli(), deliveredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// Recent returns the newest limit deliveries, newest first.
func (l *SQLiteLog) Recent(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, notification_id, user_id, task, due_at_ms, delivered_at_ms
		 FROM deliveries ORDER BY delivered_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		if err := rows.Scan(&r.ID, &r.NotificationID, &r.UserID, &r.Task, &r.DueAtMS, &r.DeliveredAtMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
