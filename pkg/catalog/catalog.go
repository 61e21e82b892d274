// Package catalog keeps the local search-target catalog in sync with the
// upstream bulk game dump.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/store"
)

// Fetcher is the part of the upstream client the refresher needs.
type Fetcher interface {
	AllTargets(ctx context.Context) ([]nexus.CatalogEntry, error)
}

// Refresher periodically re-syncs the target catalog into the store.
type Refresher struct {
	fetcher  Fetcher
	store    *store.Store
	interval time.Duration
	logger   *log.Logger
}

func NewRefresher(fetcher Fetcher, s *store.Store, interval time.Duration) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		store:    s,
		interval: interval,
		logger:   log.ForService("catalog"),
	}
}

// RefreshOnce fetches the bulk catalog and upserts every entry. A fetch
// failure or an empty dump leaves the stored catalog untouched; stale
// entries beat no entries.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	entries, err := r.fetcher.AllTargets(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching catalog: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	for _, entry := range entries {
		target := store.Target{ID: entry.ID, Path: entry.Path, Name: entry.Name}
		if err := r.store.UpsertTarget(ctx, target); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// Run refreshes immediately and then on every interval tick until ctx is
// cancelled. With a non-positive interval only the initial refresh runs.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	count, err := r.RefreshOnce(ctx)
	if err != nil {
		r.logger.Warnf("catalog refresh failed, keeping stored entries: %v", err)
		return
	}
	if count > 0 {
		r.logger.Infof("synced %d catalog targets", count)
	}
}
