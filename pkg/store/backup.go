package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
)

const backupPrefix = "user_memory_"

// Rotator maintains dated point-in-time copies of the canonical
// snapshot and restores from them when the canonical file is corrupt.
type Rotator struct {
	snapshotPath string
	backupDir    string
	keep         int
	cronExpr     string
	gron         *gronx.Gronx
	log          zerolog.Logger
}

func NewRotator(snapshotPath, backupDir string, keep int, cronExpr string, log zerolog.Logger) (*Rotator, error) {
	if keep <= 0 {
		keep = 7
	}
	if cronExpr == "" {
		cronExpr = "0 0 * * *"
	}
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid backup cron expression %q", cronExpr)
	}
	return &Rotator{
		snapshotPath: snapshotPath,
		backupDir:    backupDir,
		keep:         keep,
		cronExpr:     cronExpr,
		gron:         g,
		log:          log,
	}, nil
}

// Run checks the cron cadence once a minute until ctx is canceled.
// CheckAndBackup is also safe to call directly (the gateway does so at
// startup to cover processes that are never up at the cadence instant).
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := r.gron.IsDue(r.cronExpr, now)
			if err != nil {
				r.log.Error().Err(err).Str("cron", r.cronExpr).Msg("backup cadence check failed")
				continue
			}
			if !due {
				continue
			}
			if err := r.CheckAndBackup(now); err != nil {
				r.log.Warn().Err(err).Msg("scheduled backup failed")
			}
		}
	}
}

// CheckAndBackup copies the canonical snapshot into a dated archive if
// today's archive does not exist yet, then prunes old archives.
func (r *Rotator) CheckAndBackup(now time.Time) error {
	if _, err := os.Stat(r.snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to back up yet
		}
		return err
	}

	if err := os.MkdirAll(r.backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	target := filepath.Join(r.backupDir, backupName(now))
	if _, err := os.Stat(target); err == nil {
		return nil // already archived today
	}

	if err := copyFile(r.snapshotPath, target); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	r.log.Info().Str("backup", target).Msg("created daily backup")

	r.pruneOld()
	return nil
}

// RestoreLatest walks archives newest to oldest, validates each and
// returns the first structurally valid snapshot together with its
// source path. Returns false when no archive validates.
func (r *Rotator) RestoreLatest() (*Snapshot, string, bool) {
	for _, path := range r.archives() {
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn().Err(err).Str("backup", path).Msg("unreadable backup, skipping")
			continue
		}
		snap, err := decodeSnapshot(path, data)
		if err != nil {
			r.log.Warn().Err(err).Str("backup", path).Msg("invalid backup, skipping")
			continue
		}
		return snap, path, true
	}
	return nil, "", false
}

// archives returns dated backup paths sorted newest first.
func (r *Rotator) archives() []string {
	entries, err := os.ReadDir(r.backupDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	// ISO dates in the filename sort lexicographically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(r.backupDir, n)
	}
	return paths
}

func (r *Rotator) pruneOld() {
	paths := r.archives()
	for i, path := range paths {
		if i < r.keep {
			continue
		}
		if err := os.Remove(path); err != nil {
			r.log.Warn().Err(err).Str("backup", path).Msg("failed to remove old backup")
			continue
		}
		r.log.Debug().Str("backup", path).Msg("removed old backup")
	}
}

func backupName(now time.Time) string {
	return fmt.Sprintf("%s%s.json", backupPrefix, now.Format("2006-01-02"))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
