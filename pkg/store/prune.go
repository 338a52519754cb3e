package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PruneHistory removes conversation turns older than maxAge from every
// record in one pass and persists once at the end. Notifications,
// tracked entities and preferences are never touched by retention.
func (s *Store) PruneHistory(now time.Time, maxAge time.Duration) (removed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	for _, rec := range s.users {
		kept := rec.ConversationHistory[:0]
		for _, turn := range rec.ConversationHistory {
			if turn.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, turn)
		}
		rec.ConversationHistory = kept
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		s.log.Error().Err(err).Msg("disk write failed after pruning, in-memory state retained")
		return removed, err
	}
	return removed, nil
}

// Pruner runs the retention pass on a long fixed interval.
type Pruner struct {
	store    *Store
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger
}

func NewPruner(store *Store, interval, maxAge time.Duration, log zerolog.Logger) *Pruner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Pruner{store: store, interval: interval, maxAge: maxAge, log: log}
}

// Run blocks until ctx is canceled, pruning once per interval.
func (p *Pruner) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Dur("max_age", p.maxAge).Msg("retention pruner started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("retention pruner stopped")
			return
		case now := <-ticker.C:
			removed, err := p.store.PruneHistory(now.UTC(), p.maxAge)
			if err != nil {
				p.log.Warn().Err(err).Msg("retention prune failed to persist")
				continue
			}
			if removed > 0 {
				p.log.Info().Int("removed", removed).Msg("pruned old conversation history")
			}
		}
	}
}
