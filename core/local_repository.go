package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/types"
)

// Well-known storage keys of the local collections.
const (
	RoomsKey     = "rooms"
	EquipmentKey = "equipment"
	MembersKey   = "users"
	BookingsKey  = "bookings"
	SettingsKey  = "config"
)

// ErrStorageCorrupt marks a persisted document that is not valid JSON. Readers
// treat it as an empty collection.
var ErrStorageCorrupt = errors.New("stored data is corrupt")

// LocalRepository persists a collection as one JSON array under a storage
// key. Ids are client-generated from the current time in milliseconds.
type LocalRepository[T types.Entity[T]] struct {
	mu     sync.Mutex
	db     *Database
	key    string
	log    *zap.Logger
	now    func() time.Time
	lastID int64
}

var _ types.Repository[types.Room] = (*LocalRepository[types.Room])(nil)

func NewLocalRepository[T types.Entity[T]](db *Database, key string, log *zap.Logger) *LocalRepository[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalRepository[T]{
		db:  db,
		key: key,
		log: log.With(zap.String("collection", key)),
		now: time.Now,
	}
}

func (r *LocalRepository[T]) List(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *LocalRepository[T]) Get(ctx context.Context, id int64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	items, err := r.load(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if item.EntityID() == id {
			return item, nil
		}
	}
	return zero, fmt.Errorf("%s %d: %w", r.key, id, types.ErrNotFound)
}

// Create assigns a fresh id, ignoring any id already set on item.
func (r *LocalRepository[T]) Create(ctx context.Context, item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	items, err := r.load(ctx)
	if err != nil {
		return zero, err
	}
	created := item.WithID(r.nextID(items))
	items = append(items, created)
	if err := r.save(ctx, items); err != nil {
		return zero, err
	}
	return created, nil
}

// Update replaces the record with the given id, keeping that id.
func (r *LocalRepository[T]) Update(ctx context.Context, id int64, item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	items, err := r.load(ctx)
	if err != nil {
		return zero, err
	}
	for i := range items {
		if items[i].EntityID() == id {
			items[i] = item.WithID(id)
			if err := r.save(ctx, items); err != nil {
				return zero, err
			}
			return items[i], nil
		}
	}
	return zero, fmt.Errorf("%s %d: %w", r.key, id, types.ErrNotFound)
}

func (r *LocalRepository[T]) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	found := false
	for _, item := range items {
		if item.EntityID() == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return fmt.Errorf("%s %d: %w", r.key, id, types.ErrNotFound)
	}
	return r.save(ctx, kept)
}

// Count returns how many records match keep; a nil keep counts everything.
func (r *LocalRepository[T]) Count(ctx context.Context, keep func(T) bool) (int, error) {
	items, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		if keep == nil || keep(item) {
			n++
		}
	}
	return n, nil
}

func (r *LocalRepository[T]) load(ctx context.Context) ([]T, error) {
	raw, ok, err := r.db.Get(ctx, r.key)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if !ok || raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		r.log.Warn("ignoring unreadable local collection",
			zap.Error(fmt.Errorf("%w: %v", ErrStorageCorrupt, err)))
		return []T{}, nil
	}
	return items, nil
}

func (r *LocalRepository[T]) save(ctx context.Context, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", r.key, err)
	}
	return r.db.Set(ctx, r.key, string(data))
}

// nextID returns the current time in milliseconds, bumped past every id in
// use so ids stay unique and increasing within the same millisecond.
func (r *LocalRepository[T]) nextID(items []T) int64 {
	id := r.now().UnixMilli()
	highest := r.lastID
	for _, item := range items {
		if item.EntityID() > highest {
			highest = item.EntityID()
		}
	}
	if id <= highest {
		id = highest + 1
	}
	r.lastID = id
	return id
}
