// Package store is the persistent configuration store: communities and their
// prefixes and adult-content policies, subchannels, the search-target catalog,
// per-scope search tasks and the block list. The store is the sole writer of
// all persisted entities; pipeline components only read from it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MaxTasksPerScope caps the number of search targets configured for one
// (community, subchannel) scope.
const MaxTasksPerScope = 5

// MaxPrefixLength caps a community command prefix.
const MaxPrefixLength = 3

var (
	// ErrTooManyTasks is returned when a scope already holds MaxTasksPerScope
	// search tasks.
	ErrTooManyTasks = errors.New("search task limit reached for this scope")

	// ErrTargetUnknown is returned when a target path or id is not in the
	// catalog.
	ErrTargetUnknown = errors.New("unknown search target")

	// ErrPrefixTooLong is returned for prefixes over MaxPrefixLength characters.
	ErrPrefixTooLong = errors.New("prefix too long")
)

// AdultPolicy controls whether searches issued for a community include
// adult-only content.
type AdultPolicy int

const (
	// AdultNever excludes adult content everywhere.
	AdultNever AdultPolicy = iota
	// AdultAlways includes adult content everywhere; thumbnails are still
	// hidden outside adult-flagged subchannels.
	AdultAlways
	// AdultChannelDependent includes adult content only in subchannels the
	// platform flags as adult.
	AdultChannelDependent
)

func (p AdultPolicy) String() string {
	switch p {
	case AdultNever:
		return "never"
	case AdultAlways:
		return "always"
	case AdultChannelDependent:
		return "channel"
	}
	return fmt.Sprintf("AdultPolicy(%d)", int(p))
}

// ParseAdultPolicy parses the user-facing policy names.
func ParseAdultPolicy(s string) (AdultPolicy, error) {
	switch s {
	case "never":
		return AdultNever, nil
	case "always":
		return AdultAlways, nil
	case "channel":
		return AdultChannelDependent, nil
	}
	return AdultNever, fmt.Errorf("invalid adult policy %q (want never, always or channel)", s)
}

// Target is one searchable external catalog, keyed by its numeric id and
// slug-like path.
type Target struct {
	ID   int64
	Path string
	Name string
}

// Community holds the per-community settings.
type Community struct {
	ID          int64
	Prefix      string
	AdultPolicy AdultPolicy
}

// Store wraps the SQLite configuration database.
type Store struct {
	db            *sql.DB
	defaultPrefix string
}

// Open opens (creating if necessary) the store at path and applies the
// standard pragmas. Migrations are not run automatically; call Migrate.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: db, defaultPrefix: "."}, nil
}

// SetDefaultPrefix changes the prefix given to communities that have not
// configured one.
func (s *Store) SetDefaultPrefix(prefix string) error {
	if len(prefix) == 0 || len(prefix) > MaxPrefixLength {
		return fmt.Errorf("%w: %q", ErrPrefixTooLong, prefix)
	}
	s.defaultPrefix = prefix
	return nil
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	return NewMigrationManager(s.db).ApplyPendingMigrations()
}

// DB exposes the underlying connection for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureCommunity inserts the community with default settings if it is not
// known yet.
func (s *Store) EnsureCommunity(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO community (id, prefix) VALUES (?, ?)", id, s.defaultPrefix)
	if err != nil {
		return fmt.Errorf("ensuring community %d: %w", id, err)
	}
	return nil
}

// Community returns the stored settings for a community, or defaults for an
// unknown one.
func (s *Store) Community(ctx context.Context, id int64) (Community, error) {
	c := Community{ID: id, Prefix: s.defaultPrefix}
	err := s.db.QueryRowContext(ctx,
		"SELECT prefix, adult_policy FROM community WHERE id = ?", id).
		Scan(&c.Prefix, &c.AdultPolicy)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("fetching community %d: %w", id, err)
	}
	return c, nil
}

// SetPrefix updates a community's command prefix.
func (s *Store) SetPrefix(ctx context.Context, id int64, prefix string) error {
	if len(prefix) == 0 || len(prefix) > MaxPrefixLength {
		return fmt.Errorf("%w: %q", ErrPrefixTooLong, prefix)
	}
	if err := s.EnsureCommunity(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE community SET prefix = ? WHERE id = ?", prefix, id)
	if err != nil {
		return fmt.Errorf("setting prefix for community %d: %w", id, err)
	}
	return nil
}

// SetAdultPolicy updates a community's adult-content policy.
func (s *Store) SetAdultPolicy(ctx context.Context, id int64, policy AdultPolicy) error {
	if err := s.EnsureCommunity(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE community SET adult_policy = ? WHERE id = ?", policy, id)
	if err != nil {
		return fmt.Errorf("setting adult policy for community %d: %w", id, err)
	}
	return nil
}

// DeleteCommunity removes a community and, via cascade, its subchannels and
// search tasks.
func (s *Store) DeleteCommunity(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM community WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting community %d: %w", id, err)
	}
	return nil
}

// PruneCommunities deletes every community not in keep. Used after reconnect
// to drop communities that removed the bot while it was offline.
func (s *Store) PruneCommunities(ctx context.Context, keep []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// A temp table sidesteps the bound-parameter limit for large keep sets.
	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE keep_community (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("creating keep table: %w", err)
	}
	for _, id := range keep {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO keep_community (id) VALUES (?)", id); err != nil {
			return fmt.Errorf("staging community %d: %w", id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM community WHERE id NOT IN (SELECT id FROM keep_community)"); err != nil {
		return fmt.Errorf("pruning communities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE keep_community"); err != nil {
		return fmt.Errorf("dropping keep table: %w", err)
	}
	return tx.Commit()
}

// DeleteSubchannel removes a subchannel row and its search tasks. Used when
// the underlying platform channel disappears.
func (s *Store) DeleteSubchannel(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM search_task WHERE subchannel_id = ?", id); err != nil {
		return fmt.Errorf("deleting subchannel %d tasks: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM subchannel WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting subchannel %d: %w", id, err)
	}
	return tx.Commit()
}
