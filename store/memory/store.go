// Package memory is an in-process implementation of store.Store. It keeps the
// same per-item atomicity and condition semantics as the networked backends
// and can simulate the asynchronous table lifecycle of DynamoDB.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dndbot/schema"
	"dndbot/store"
)

type table struct {
	def     schema.Table
	items   map[store.Key]store.Item
	status  store.TableStatus
	readyAt time.Time
	goneAt  time.Time
}

// Option configures a Store
type Option func(*Store)

// WithCreationDelay keeps new tables in CREATING for d
func WithCreationDelay(d time.Duration) Option {
	return func(s *Store) { s.creationDelay = d }
}

// WithDeletionDelay keeps deleted tables visible in DELETING for d
func WithDeletionDelay(d time.Duration) Option {
	return func(s *Store) { s.deletionDelay = d }
}

// Store is a mutex-guarded map of tables
type Store struct {
	mu            sync.RWMutex
	tables        map[string]*table
	closed        bool
	creationDelay time.Duration
	deletionDelay time.Duration
	now           func() time.Time
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*table),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// refresh advances the simulated lifecycle of a table. Caller holds the write lock.
func (s *Store) refresh(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	now := s.now()
	if t.status == store.TableStatusDeleting && !now.Before(t.goneAt) {
		delete(s.tables, name)
		return nil
	}
	if t.status == store.TableStatusCreating && !now.Before(t.readyAt) {
		t.status = store.TableStatusActive
	}
	return t
}

// usable returns the table for item operations. Caller holds the write lock.
func (s *Store) usable(name string) (*table, error) {
	if s.closed {
		return nil, store.ErrClosed
	}
	t := s.refresh(name)
	if t == nil || t.status == store.TableStatusDeleting {
		return nil, fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
	}
	return t, nil
}

// CreateTable registers a new table
func (s *Store) CreateTable(_ context.Context, def schema.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if t := s.refresh(def.Name); t != nil {
		return fmt.Errorf("table %s: %w", def.Name, store.ErrTableExists)
	}

	status := store.TableStatusActive
	if s.creationDelay > 0 {
		status = store.TableStatusCreating
	}
	s.tables[def.Name] = &table{
		def:     def,
		items:   make(map[store.Key]store.Item),
		status:  status,
		readyAt: s.now().Add(s.creationDelay),
	}
	return nil
}

// DeleteTable drops a table and all of its items
func (s *Store) DeleteTable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	t := s.refresh(name)
	if t == nil || t.status == store.TableStatusDeleting {
		return fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
	}

	if s.deletionDelay <= 0 {
		delete(s.tables, name)
		return nil
	}
	t.status = store.TableStatusDeleting
	t.goneAt = s.now().Add(s.deletionDelay)
	t.items = make(map[store.Key]store.Item)
	return nil
}

// DescribeTable probes a table
func (s *Store) DescribeTable(_ context.Context, name string) (*store.TableDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	t := s.refresh(name)
	if t == nil {
		return nil, fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
	}

	desc := &store.TableDescription{Name: name, Status: t.status}
	for _, idx := range t.def.Indexes {
		desc.Indexes = append(desc.Indexes, idx.Name)
	}
	return desc, nil
}

// Put writes an item if the condition holds
func (s *Store) Put(_ context.Context, def schema.Table, item store.Item, cond store.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.usable(def.Name)
	if err != nil {
		return err
	}

	key := store.KeyOf(t.def, item)
	if !store.Matches(cond, t.items[key]) {
		return store.ErrConditionFailed
	}
	t.items[key] = store.NormalizeItem(item.Clone())
	return nil
}

// Get reads one item by primary key
func (s *Store) Get(_ context.Context, def schema.Table, key store.Key) (store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.usable(def.Name)
	if err != nil {
		return nil, err
	}

	item, ok := t.items[key]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return item.Clone(), nil
}

// Query returns the items of one partition ordered by sort key
func (s *Store) Query(_ context.Context, def schema.Table, in store.QueryInput) ([]store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.usable(def.Name)
	if err != nil {
		return nil, err
	}

	var keys []store.Key
	for key := range t.items {
		if key.Partition != in.Partition {
			continue
		}
		if in.From != "" && key.Sort < in.From {
			continue
		}
		if in.To != "" && key.Sort > in.To {
			continue
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(a, b int) bool {
		if in.Descending {
			return keys[a].Sort > keys[b].Sort
		}
		return keys[a].Sort < keys[b].Sort
	})
	if in.Limit > 0 && len(keys) > in.Limit {
		keys = keys[:in.Limit]
	}

	items := make([]store.Item, 0, len(keys))
	for _, key := range keys {
		items = append(items, t.items[key].Clone())
	}
	return items, nil
}

// GetByIndex looks an item up through a secondary index
func (s *Store) GetByIndex(_ context.Context, def schema.Table, index string, value any) (store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.usable(def.Name)
	if err != nil {
		return nil, err
	}

	var attr string
	for _, idx := range t.def.Indexes {
		if idx.Name == index {
			attr = idx.PartitionKey.Name
		}
	}
	if attr == "" {
		return nil, fmt.Errorf("table %s has no index %s", def.Name, index)
	}

	want := store.IndexValue(value)
	for _, item := range t.items {
		v, ok := item[attr]
		if ok && store.IndexValue(v) == want {
			return item.Clone(), nil
		}
	}
	return nil, store.ErrItemNotFound
}

// Delete removes an item; deleting an absent item is not an error
func (s *Store) Delete(_ context.Context, def schema.Table, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.usable(def.Name)
	if err != nil {
		return err
	}
	delete(t.items, key)
	return nil
}

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
