package store

import (
	"context"
	"fmt"
)

// InsertBlocked adds a community or user id to the block list.
func (s *Store) InsertBlocked(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO blocked (id) VALUES (?)", id)
	if err != nil {
		return fmt.Errorf("blocking id %d: %w", id, err)
	}
	return nil
}

// DeleteBlocked removes an id from the block list.
func (s *Store) DeleteBlocked(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blocked WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("unblocking id %d: %w", id, err)
	}
	return nil
}

// BlockedIDs returns every blocked community and user id.
func (s *Store) BlockedIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM blocked")
	if err != nil {
		return nil, fmt.Errorf("listing blocked ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning blocked id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
