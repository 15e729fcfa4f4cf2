package testhelpers

import (
	"context"
	"sync"

	"dndbot/schema"
	"dndbot/store"
)

// FaultyStore wraps a store and fails selected calls. Hooks run before the
// wrapped call; a non-nil error is returned instead of calling through.
type FaultyStore struct {
	store.Store

	mu           sync.Mutex
	OnCreate     func(table schema.Table) error
	OnDelete     func(name string) error
	OnPut        func(table schema.Table, item store.Item) error
	OnGetByIndex func(table schema.Table, value any) error
	calls        []string
}

// NewFaultyStore wraps s
func NewFaultyStore(s store.Store) *FaultyStore {
	return &FaultyStore{Store: s}
}

func (f *FaultyStore) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns the recorded table operations in order
func (f *FaultyStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FaultyStore) CreateTable(ctx context.Context, table schema.Table) error {
	f.record("create " + table.Name)
	if f.OnCreate != nil {
		if err := f.OnCreate(table); err != nil {
			return err
		}
	}
	return f.Store.CreateTable(ctx, table)
}

func (f *FaultyStore) DeleteTable(ctx context.Context, name string) error {
	f.record("delete " + name)
	if f.OnDelete != nil {
		if err := f.OnDelete(name); err != nil {
			return err
		}
	}
	return f.Store.DeleteTable(ctx, name)
}

func (f *FaultyStore) Put(ctx context.Context, table schema.Table, item store.Item, cond store.Condition) error {
	if f.OnPut != nil {
		if err := f.OnPut(table, item); err != nil {
			return err
		}
	}
	return f.Store.Put(ctx, table, item, cond)
}

func (f *FaultyStore) GetByIndex(ctx context.Context, table schema.Table, index string, value any) (store.Item, error) {
	if f.OnGetByIndex != nil {
		if err := f.OnGetByIndex(table, value); err != nil {
			return nil, err
		}
	}
	return f.Store.GetByIndex(ctx, table, index, value)
}
