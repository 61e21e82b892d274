package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return s
}

func seedTargets(t *testing.T, s *Store, n int) []Target {
	t.Helper()

	ctx := context.Background()
	targets := make([]Target, 0, n)
	names := []string{"Skyrim", "Oblivion", "Morrowind", "Fallout 4", "Fallout 3", "Starfield", "Witcher 3"}
	paths := []string{"skyrim", "oblivion", "morrowind", "fallout4", "fallout3", "starfield", "witcher3"}
	for i := 0; i < n; i++ {
		target := Target{ID: int64(100 + i), Path: paths[i], Name: names[i]}
		if err := s.UpsertTarget(ctx, target); err != nil {
			t.Fatalf("seeding target %s: %v", target.Path, err)
		}
		targets = append(targets, target)
	}
	return targets
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate run: %v", err)
	}
}

func TestCommunityDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Community(ctx, 42)
	if err != nil {
		t.Fatalf("fetching unknown community: %v", err)
	}
	if c.Prefix != "." {
		t.Errorf("expected default prefix \".\", got %q", c.Prefix)
	}
	if c.AdultPolicy != AdultNever {
		t.Errorf("expected default adult policy never, got %v", c.AdultPolicy)
	}
}

func TestSetDefaultPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetDefaultPrefix("!"); err != nil {
		t.Fatalf("setting default prefix: %v", err)
	}

	// Applies both to communities not yet seen and to rows created after the
	// change.
	c, err := s.Community(ctx, 42)
	if err != nil {
		t.Fatalf("fetching unknown community: %v", err)
	}
	if c.Prefix != "!" {
		t.Errorf("expected configured default %q, got %q", "!", c.Prefix)
	}

	if err := s.EnsureCommunity(ctx, 43); err != nil {
		t.Fatalf("ensuring community: %v", err)
	}
	c, err = s.Community(ctx, 43)
	if err != nil {
		t.Fatalf("fetching community: %v", err)
	}
	if c.Prefix != "!" {
		t.Errorf("expected stored default %q, got %q", "!", c.Prefix)
	}

	if err := s.SetDefaultPrefix("toolong"); !errors.Is(err, ErrPrefixTooLong) {
		t.Errorf("expected ErrPrefixTooLong for %q, got %v", "toolong", err)
	}
}

func TestSetPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetPrefix(ctx, 42, "!?"); err != nil {
		t.Fatalf("setting prefix: %v", err)
	}
	c, err := s.Community(ctx, 42)
	if err != nil {
		t.Fatalf("fetching community: %v", err)
	}
	if c.Prefix != "!?" {
		t.Errorf("expected prefix \"!?\", got %q", c.Prefix)
	}

	if err := s.SetPrefix(ctx, 42, "!!!!"); !errors.Is(err, ErrPrefixTooLong) {
		t.Errorf("expected ErrPrefixTooLong for 4-char prefix, got %v", err)
	}
	if err := s.SetPrefix(ctx, 42, ""); !errors.Is(err, ErrPrefixTooLong) {
		t.Errorf("expected ErrPrefixTooLong for empty prefix, got %v", err)
	}
}

func TestSetAdultPolicy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetAdultPolicy(ctx, 42, AdultChannelDependent); err != nil {
		t.Fatalf("setting adult policy: %v", err)
	}
	c, err := s.Community(ctx, 42)
	if err != nil {
		t.Fatalf("fetching community: %v", err)
	}
	if c.AdultPolicy != AdultChannelDependent {
		t.Errorf("expected channel policy, got %v", c.AdultPolicy)
	}
}

func TestParseAdultPolicy(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want AdultPolicy
		ok   bool
	}{
		{"never", AdultNever, true},
		{"always", AdultAlways, true},
		{"channel", AdultChannelDependent, true},
		{"sometimes", AdultNever, false},
		{"", AdultNever, false},
	} {
		got, err := ParseAdultPolicy(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseAdultPolicy(%q): unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseAdultPolicy(%q): expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseAdultPolicy(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTargetByPathCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTargets(t, s, 1)

	got, err := s.TargetByPath(ctx, "SkyRim")
	if err != nil {
		t.Fatalf("case-insensitive lookup: %v", err)
	}
	if got.ID != 100 {
		t.Errorf("expected target id 100, got %d", got.ID)
	}

	if _, err := s.TargetByPath(ctx, "nosuchgame"); !errors.Is(err, ErrTargetUnknown) {
		t.Errorf("expected ErrTargetUnknown, got %v", err)
	}
}

func TestUpsertTargetRefreshesName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertTarget(ctx, Target{ID: 1, Path: "skyrim", Name: "Skyrim"}); err != nil {
		t.Fatalf("inserting target: %v", err)
	}
	if err := s.UpsertTarget(ctx, Target{ID: 1, Path: "skyrim", Name: "Skyrim Special Edition"}); err != nil {
		t.Fatalf("upserting target: %v", err)
	}
	got, err := s.TargetByID(ctx, 1)
	if err != nil {
		t.Fatalf("fetching target: %v", err)
	}
	if got.Name != "Skyrim Special Edition" {
		t.Errorf("expected refreshed name, got %q", got.Name)
	}
}

func TestAddTaskLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := seedTargets(t, s, 6)

	for _, target := range targets[:5] {
		if err := s.AddTask(ctx, 1, 0, target.ID); err != nil {
			t.Fatalf("adding task for %s: %v", target.Path, err)
		}
	}

	err := s.AddTask(ctx, 1, 0, targets[5].ID)
	if !errors.Is(err, ErrTooManyTasks) {
		t.Fatalf("expected ErrTooManyTasks on sixth task, got %v", err)
	}

	// The failed add must not have written anything.
	got, err := s.TasksForScope(ctx, 1, 0)
	if err != nil {
		t.Fatalf("fetching scope tasks: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 tasks after rejected add, got %d", len(got))
	}
	for _, target := range got {
		if target.ID == targets[5].ID {
			t.Errorf("rejected target %d leaked into scope", target.ID)
		}
	}
}

func TestAddTaskIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := seedTargets(t, s, 1)

	for i := 0; i < 3; i++ {
		if err := s.AddTask(ctx, 1, 0, targets[0].ID); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	got, err := s.TasksForScope(ctx, 1, 0)
	if err != nil {
		t.Fatalf("fetching scope tasks: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 task after repeated adds, got %d", len(got))
	}
}

func TestSubchannelOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := seedTargets(t, s, 3)

	// Community-wide defaults.
	if err := s.AddTask(ctx, 1, 0, targets[0].ID); err != nil {
		t.Fatalf("adding community task: %v", err)
	}
	if err := s.AddTask(ctx, 1, 0, targets[1].ID); err != nil {
		t.Fatalf("adding community task: %v", err)
	}

	// Without an override the subchannel inherits the defaults.
	got, err := s.TasksForScope(ctx, 1, 77)
	if err != nil {
		t.Fatalf("fetching inherited tasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 inherited tasks, got %d", len(got))
	}

	// A single subchannel task replaces the defaults entirely.
	if err := s.AddTask(ctx, 1, 77, targets[2].ID); err != nil {
		t.Fatalf("adding subchannel task: %v", err)
	}
	got, err = s.TasksForScope(ctx, 1, 77)
	if err != nil {
		t.Fatalf("fetching override tasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != targets[2].ID {
		t.Fatalf("expected only the override target, got %+v", got)
	}

	// Another subchannel still sees the defaults.
	got, err = s.TasksForScope(ctx, 1, 88)
	if err != nil {
		t.Fatalf("fetching sibling tasks: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 tasks for sibling subchannel, got %d", len(got))
	}
}

func TestRemoveTaskDropsEmptySubchannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := seedTargets(t, s, 2)

	if err := s.AddTask(ctx, 1, 0, targets[0].ID); err != nil {
		t.Fatalf("adding community task: %v", err)
	}
	if err := s.AddTask(ctx, 1, 77, targets[1].ID); err != nil {
		t.Fatalf("adding subchannel task: %v", err)
	}
	if err := s.RemoveTask(ctx, 1, 77, targets[1].ID); err != nil {
		t.Fatalf("removing subchannel task: %v", err)
	}

	var count int
	err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM subchannel WHERE id = 77").Scan(&count)
	if err != nil {
		t.Fatalf("counting subchannel rows: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty subchannel row to be removed")
	}

	// The scope falls back to the community defaults again.
	got, err := s.TasksForScope(ctx, 1, 77)
	if err != nil {
		t.Fatalf("fetching scope tasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != targets[0].ID {
		t.Errorf("expected fallback to community defaults, got %+v", got)
	}
}

func TestDeleteCommunityCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := seedTargets(t, s, 2)

	if err := s.AddTask(ctx, 1, 0, targets[0].ID); err != nil {
		t.Fatalf("adding community task: %v", err)
	}
	if err := s.AddTask(ctx, 1, 77, targets[1].ID); err != nil {
		t.Fatalf("adding subchannel task: %v", err)
	}
	if err := s.DeleteCommunity(ctx, 1); err != nil {
		t.Fatalf("deleting community: %v", err)
	}

	for _, table := range []string{"search_task", "subchannel"} {
		var count int
		if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Fatalf("counting %s rows: %v", table, err)
		}
		if count != 0 {
			t.Errorf("expected cascade to empty %s, found %d rows", table, count)
		}
	}
}

func TestPruneCommunities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3, 4} {
		if err := s.EnsureCommunity(ctx, id); err != nil {
			t.Fatalf("ensuring community %d: %v", id, err)
		}
	}
	if err := s.PruneCommunities(ctx, []int64{2, 4}); err != nil {
		t.Fatalf("pruning communities: %v", err)
	}

	rows, err := s.DB().QueryContext(ctx, "SELECT id FROM community ORDER BY id")
	if err != nil {
		t.Fatalf("listing communities: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scanning community id: %v", err)
		}
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 4 {
		t.Errorf("expected communities [2 4] to survive, got %v", ids)
	}
}

func TestBlockedIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertBlocked(ctx, 99); err != nil {
		t.Fatalf("blocking id: %v", err)
	}
	if err := s.InsertBlocked(ctx, 99); err != nil {
		t.Fatalf("re-blocking id: %v", err)
	}
	ids, err := s.BlockedIDs(ctx)
	if err != nil {
		t.Fatalf("listing blocked ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 99 {
		t.Errorf("expected [99], got %v", ids)
	}

	if err := s.DeleteBlocked(ctx, 99); err != nil {
		t.Fatalf("unblocking id: %v", err)
	}
	ids, err = s.BlockedIDs(ctx)
	if err != nil {
		t.Fatalf("listing blocked ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty block list, got %v", ids)
	}
}
