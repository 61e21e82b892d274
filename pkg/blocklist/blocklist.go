// Package blocklist keeps the set of blocked community and user ids in
// memory, backed by the store. Message handling consults it on every event,
// so lookups never touch the database.
package blocklist

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/modseek/modseek/pkg/store"
)

// ErrProtectedID is returned when trying to block the owner.
var ErrProtectedID = errors.New("the owner cannot be blocked")

// Blocklist is a write-through cache over the store's blocked table.
type Blocklist struct {
	store   *store.Store
	ownerID int64

	mu  sync.RWMutex
	ids map[int64]struct{}
}

func New(s *store.Store, ownerID int64) *Blocklist {
	return &Blocklist{
		store:   s,
		ownerID: ownerID,
		ids:     make(map[int64]struct{}),
	}
}

// Load replaces the in-memory set with the persisted one.
func (b *Blocklist) Load(ctx context.Context) error {
	ids, err := b.store.BlockedIDs(ctx)
	if err != nil {
		return err
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	b.mu.Lock()
	b.ids = set
	b.mu.Unlock()
	return nil
}

// Block persists and records an id. Blocking the owner is refused.
func (b *Blocklist) Block(ctx context.Context, id int64) error {
	if id == b.ownerID {
		return ErrProtectedID
	}
	if err := b.store.InsertBlocked(ctx, id); err != nil {
		return err
	}

	b.mu.Lock()
	b.ids[id] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unblock removes an id. Unknown ids are a no-op.
func (b *Blocklist) Unblock(ctx context.Context, id int64) error {
	if err := b.store.DeleteBlocked(ctx, id); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.ids, id)
	b.mu.Unlock()
	return nil
}

// Contains reports whether an id is blocked.
func (b *Blocklist) Contains(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}

// IDs returns the blocked ids in ascending order.
func (b *Blocklist) IDs() []int64 {
	b.mu.RLock()
	ids := make([]int64, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
