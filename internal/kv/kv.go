// Package kv implements the generic repository layer: typed collections
// persisted as one JSON payload per table through a Substrate. Every write
// re-serializes the whole collection; a per-table mutex serializes the
// read-modify-write cycle so two in-process writers can never clobber each
// other's writes.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"facturia/internal/cache"
	"facturia/internal/store"
	"facturia/internal/xid"
)

type Store struct {
	substrate store.Substrate
	cache     cache.TableCache
	cacheTTL  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Store)

// WithCache places a table-payload cache in front of the substrate. The
// cache is refreshed on write and invalidated on table deletion.
func WithCache(c cache.TableCache, ttl time.Duration) Option {
	return func(s *Store) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func New(substrate store.Substrate, opts ...Option) *Store {
	s := &Store{
		substrate: substrate,
		cache:     cache.NoopTableCache{},
		cacheTTL:  30 * time.Second,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockTable acquires the write lock for one table and returns its release
// function. Distinct tables proceed independently.
func (s *Store) lockTable(table string) func() {
	s.mu.Lock()
	lock, ok := s.locks[table]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[table] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Store) readTable(ctx context.Context, table string) ([]byte, bool, error) {
	if payload, ok, err := s.cache.Get(ctx, table); err == nil && ok {
		return payload, true, nil
	}
	payload, ok, err := s.substrate.Get(ctx, table)
	if err != nil {
		return nil, false, fmt.Errorf("read table %s: %w", table, err)
	}
	if ok {
		_ = s.cache.Set(ctx, table, payload, s.cacheTTL)
	}
	return payload, ok, nil
}

func (s *Store) writeTable(ctx context.Context, table string, payload []byte) error {
	// Invalidate before the write so a failed Set never leaves a stale
	// payload being served from the cache.
	_ = s.cache.Invalidate(ctx, table)
	if err := s.substrate.Set(ctx, table, payload); err != nil {
		return fmt.Errorf("write table %s: %w", table, err)
	}
	_ = s.cache.Set(ctx, table, payload, s.cacheTTL)
	return nil
}

// DeleteTable drops a table entirely. Used by import when a bundle carries an
// empty collection for a table.
func (s *Store) DeleteTable(ctx context.Context, table string) error {
	unlock := s.lockTable(table)
	defer unlock()

	_ = s.cache.Invalidate(ctx, table)
	if err := s.substrate.Delete(ctx, table); err != nil {
		return fmt.Errorf("delete table %s: %w", table, err)
	}
	return nil
}

// Record is implemented by every persisted entity via domain.Meta.
type Record interface {
	RecordID() string
	SetRecordID(string)
	Stamp(now time.Time, isNew bool)
	Created() time.Time
	SetCreated(time.Time)
}

// Collection is a typed view over one table.
type Collection[T any, PT interface {
	*T
	Record
}] struct {
	store    *Store
	table    string
	idPrefix string
}

func NewCollection[T any, PT interface {
	*T
	Record
}](s *Store, table string, idPrefix string) *Collection[T, PT] {
	return &Collection[T, PT]{store: s, table: table, idPrefix: idPrefix}
}

func (c *Collection[T, PT]) Table() string { return c.table }

func (c *Collection[T, PT]) load(ctx context.Context) ([]T, error) {
	payload, ok, err := c.store.readTable(ctx, c.table)
	if err != nil {
		return nil, err
	}
	if !ok || len(payload) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", c.table, err)
	}
	return items, nil
}

func (c *Collection[T, PT]) persist(ctx context.Context, items []T) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", c.table, err)
	}
	return c.store.writeTable(ctx, c.table, payload)
}

// All returns every record in the table; an absent table is an empty slice.
func (c *Collection[T, PT]) All(ctx context.Context) ([]T, error) {
	return c.load(ctx)
}

func (c *Collection[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if PT(&items[i]).RecordID() == id {
			found := items[i]
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// Create appends a record, assigning an id when the caller supplied none and
// stamping CreatedAt/UpdatedAt. A caller-supplied id that already exists is
// rejected with ErrDuplicateKey without touching the collection.
func (c *Collection[T, PT]) Create(ctx context.Context, item T) (*T, error) {
	return c.CreateUnique(ctx, item, nil)
}

// CreateUnique behaves like Create and additionally rejects the record when
// keyFn yields a value already present in the collection. The duplicate check
// and the insert run under the same table lock.
func (c *Collection[T, PT]) CreateUnique(ctx context.Context, item T, keyFn func(T) string) (*T, error) {
	unlock := c.store.lockTable(c.table)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	rec := PT(&item)
	if id := rec.RecordID(); id != "" {
		for i := range items {
			if PT(&items[i]).RecordID() == id {
				return nil, fmt.Errorf("%w: id %s", store.ErrDuplicateKey, id)
			}
		}
	}
	if keyFn != nil {
		key := keyFn(item)
		for _, existing := range items {
			if keyFn(existing) == key {
				return nil, fmt.Errorf("%w: %s", store.ErrDuplicateKey, key)
			}
		}
	}

	if rec.RecordID() == "" {
		rec.SetRecordID(xid.New(c.idPrefix))
	}
	rec.Stamp(time.Now().UTC(), true)

	items = append(items, item)
	if err := c.persist(ctx, items); err != nil {
		return nil, err
	}
	created := item
	return &created, nil
}

// Update applies a mutation to the record with the given id and rewrites the
// collection. Missing ids fail with ErrNotFound.
func (c *Collection[T, PT]) Update(ctx context.Context, id string, apply func(*T)) (*T, error) {
	unlock := c.store.lockTable(c.table)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if PT(&items[i]).RecordID() != id {
			continue
		}
		apply(&items[i])
		PT(&items[i]).SetRecordID(id)
		PT(&items[i]).Stamp(time.Now().UTC(), false)
		if err := c.persist(ctx, items); err != nil {
			return nil, err
		}
		updated := items[i]
		return &updated, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", store.ErrNotFound, id, c.table)
}

// Upsert replaces the record with the same id or appends it when absent.
// Used by replayable flows that must be idempotent.
func (c *Collection[T, PT]) Upsert(ctx context.Context, item T) (*T, error) {
	unlock := c.store.lockTable(c.table)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	rec := PT(&item)
	if rec.RecordID() == "" {
		rec.SetRecordID(xid.New(c.idPrefix))
	}

	replaced := false
	for i := range items {
		if PT(&items[i]).RecordID() == rec.RecordID() {
			// A replace keeps the stored record's creation time; only
			// UpdatedAt moves.
			if created := PT(&items[i]).Created(); !created.IsZero() {
				rec.SetCreated(created)
			}
			rec.Stamp(time.Now().UTC(), false)
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		rec.Stamp(time.Now().UTC(), true)
		items = append(items, item)
	}

	if err := c.persist(ctx, items); err != nil {
		return nil, err
	}
	saved := item
	return &saved, nil
}

// Delete filters the record out of the collection and rewrites it.
func (c *Collection[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	unlock := c.store.lockTable(c.table)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]T, 0, len(items))
	var removed *T
	for i := range items {
		if PT(&items[i]).RecordID() == id {
			found := items[i]
			removed = &found
			continue
		}
		kept = append(kept, items[i])
	}
	if removed == nil {
		return nil, fmt.Errorf("%w: %s in %s", store.ErrNotFound, id, c.table)
	}
	if err := c.persist(ctx, kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// ReplaceAll overwrites the whole table. Used by import and by entity-wide
// recalculation such as stock rewrites.
func (c *Collection[T, PT]) ReplaceAll(ctx context.Context, items []T) error {
	unlock := c.store.lockTable(c.table)
	defer unlock()

	if items == nil {
		items = []T{}
	}
	return c.persist(ctx, items)
}
