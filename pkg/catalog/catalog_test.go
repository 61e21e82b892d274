package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/store"
)

type fakeFetcher struct {
	entries []nexus.CatalogEntry
	err     error
}

func (f *fakeFetcher) AllTargets(ctx context.Context) ([]nexus.CatalogEntry, error) {
	return f.entries, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return s
}

func TestRefreshOnce(t *testing.T) {
	s := newTestStore(t)
	fetcher := &fakeFetcher{entries: []nexus.CatalogEntry{
		{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim Special Edition"},
		{ID: 1303, Path: "fallout4", Name: "Fallout 4"},
	}}

	count, err := NewRefresher(fetcher, s, time.Hour).RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("refreshing: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 synced entries, got %d", count)
	}

	target, err := s.TargetByPath(context.Background(), "fallout4")
	if err != nil {
		t.Fatalf("looking up synced target: %v", err)
	}
	if target.ID != 1303 || target.Name != "Fallout 4" {
		t.Errorf("unexpected target %+v", target)
	}
}

func TestRefreshKeepsStaleCatalogOnFailure(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertTarget(context.Background(), store.Target{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim Special Edition"}); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	fetcher := &fakeFetcher{err: errors.New("bucket gone")}
	if _, err := NewRefresher(fetcher, s, time.Hour).RefreshOnce(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	if _, err := s.TargetByPath(context.Background(), "skyrimspecialedition"); err != nil {
		t.Errorf("expected stored catalog to survive a failed refresh: %v", err)
	}
}

func TestRefreshEmptyDumpIsNoUpdate(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertTarget(context.Background(), store.Target{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim Special Edition"}); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	fetcher := &fakeFetcher{}
	count, err := NewRefresher(fetcher, s, time.Hour).RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("refreshing: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no entries synced, got %d", count)
	}
	if _, err := s.TargetByPath(context.Background(), "skyrimspecialedition"); err != nil {
		t.Errorf("expected stored catalog untouched: %v", err)
	}
}

func TestRefreshUpdatesRenamedTargets(t *testing.T) {
	s := newTestStore(t)
	refresher := NewRefresher(&fakeFetcher{entries: []nexus.CatalogEntry{
		{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim SE"},
	}}, s, time.Hour)

	if _, err := refresher.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	refresher.fetcher = &fakeFetcher{entries: []nexus.CatalogEntry{
		{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim Special Edition"},
	}}
	if _, err := refresher.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	target, err := s.TargetByPath(context.Background(), "skyrimspecialedition")
	if err != nil {
		t.Fatalf("looking up target: %v", err)
	}
	if target.Name != "Skyrim Special Edition" {
		t.Errorf("expected refreshed name, got %q", target.Name)
	}
}
