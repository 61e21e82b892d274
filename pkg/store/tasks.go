package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertTarget inserts a catalog target or refreshes its name on re-sync.
// Paths are immutable once created.
func (s *Store) UpsertTarget(ctx context.Context, t Target) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO target (id, path, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, t.ID, t.Path, t.Name)
	if err != nil {
		return fmt.Errorf("upserting target %s: %w", t.Path, err)
	}
	return nil
}

// TargetByPath looks up a target by its catalog path, case-insensitively.
func (s *Store) TargetByPath(ctx context.Context, path string) (Target, error) {
	var t Target
	err := s.db.QueryRowContext(ctx,
		"SELECT id, path, name FROM target WHERE path = ? COLLATE NOCASE", path).
		Scan(&t.ID, &t.Path, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", ErrTargetUnknown, path)
	}
	if err != nil {
		return t, fmt.Errorf("fetching target %s: %w", path, err)
	}
	return t, nil
}

// TargetByID looks up a target by its numeric id.
func (s *Store) TargetByID(ctx context.Context, id int64) (Target, error) {
	var t Target
	err := s.db.QueryRowContext(ctx,
		"SELECT id, path, name FROM target WHERE id = ?", id).
		Scan(&t.ID, &t.Path, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: id %d", ErrTargetUnknown, id)
	}
	if err != nil {
		return t, fmt.Errorf("fetching target %d: %w", id, err)
	}
	return t, nil
}

// Targets returns the full catalog ordered by name.
func (s *Store) Targets(ctx context.Context) ([]Target, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, name FROM target ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.ID, &t.Path, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// AddTask configures a search target for a scope. Adding an already
// configured target is a no-op; exceeding MaxTasksPerScope fails with
// ErrTooManyTasks before anything is written. The subchannel row (for
// non-zero subchannel ids) is created in the same transaction as the task.
func (s *Store) AddTask(ctx context.Context, communityID, subchannelID, targetID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM search_task
		WHERE community_id = ? AND subchannel_id = ? AND target_id = ?
	`, communityID, subchannelID, targetID).Scan(&exists)
	if err == nil {
		return nil // already configured
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking existing task: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM search_task WHERE community_id = ? AND subchannel_id = ?",
		communityID, subchannelID).Scan(&count)
	if err != nil {
		return fmt.Errorf("counting scope tasks: %w", err)
	}
	if count >= MaxTasksPerScope {
		return ErrTooManyTasks
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO community (id) VALUES (?)", communityID); err != nil {
		return fmt.Errorf("ensuring community %d: %w", communityID, err)
	}
	if subchannelID != 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO subchannel (id, community_id) VALUES (?, ?)",
			subchannelID, communityID); err != nil {
			return fmt.Errorf("ensuring subchannel %d: %w", subchannelID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO search_task (community_id, subchannel_id, target_id)
		VALUES (?, ?, ?)
	`, communityID, subchannelID, targetID); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	return tx.Commit()
}

// RemoveTask drops a search target from a scope. Removing the last task of a
// non-zero subchannel also removes the subchannel row.
func (s *Store) RemoveTask(ctx context.Context, communityID, subchannelID, targetID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM search_task
		WHERE community_id = ? AND subchannel_id = ? AND target_id = ?
	`, communityID, subchannelID, targetID); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	if subchannelID != 0 {
		var remaining int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM search_task WHERE subchannel_id = ? LIMIT 1", subchannelID).
			Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := tx.ExecContext(ctx, "DELETE FROM subchannel WHERE id = ?", subchannelID); err != nil {
				return fmt.Errorf("deleting empty subchannel %d: %w", subchannelID, err)
			}
		} else if err != nil {
			return fmt.Errorf("checking remaining subchannel tasks: %w", err)
		}
	}

	return tx.Commit()
}

// TasksForScope returns the search targets configured for a subchannel. A
// subchannel with at least one task overrides the community-wide defaults
// entirely; otherwise the community defaults (subchannel id 0) apply.
func (s *Store) TasksForScope(ctx context.Context, communityID, subchannelID int64) ([]Target, error) {
	if subchannelID != 0 {
		targets, err := s.scopeTargets(ctx, communityID, subchannelID)
		if err != nil {
			return nil, err
		}
		if len(targets) > 0 {
			return targets, nil
		}
	}
	return s.scopeTargets(ctx, communityID, 0)
}

func (s *Store) scopeTargets(ctx context.Context, communityID, subchannelID int64) ([]Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.path, t.name
		FROM search_task s JOIN target t ON s.target_id = t.id
		WHERE s.community_id = ? AND s.subchannel_id = ?
		ORDER BY t.name
	`, communityID, subchannelID)
	if err != nil {
		return nil, fmt.Errorf("fetching scope targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.ID, &t.Path, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning scope target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
