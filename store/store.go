// Package store defines the partitioned key-value contract the economy is
// built on. Backends guarantee atomicity for a single item only: every
// invariant spanning a read and a later write is enforced with a conditional
// Put.
package store

import (
	"context"
	"errors"

	"dndbot/schema"
)

var (
	// ErrTableExists is returned by CreateTable when the table is already there
	ErrTableExists = errors.New("store: table already exists")
	// ErrTableNotFound is returned for operations against a missing table
	ErrTableNotFound = errors.New("store: table not found")
	// ErrConditionFailed is returned when a conditional write is rejected
	ErrConditionFailed = errors.New("store: condition failed")
	// ErrItemNotFound is returned by Get and GetByIndex when nothing matches
	ErrItemNotFound = errors.New("store: item not found")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("store: closed")
)

// TableStatus mirrors the lifecycle a table goes through in the store
type TableStatus string

const (
	TableStatusCreating TableStatus = "CREATING"
	TableStatusActive   TableStatus = "ACTIVE"
	TableStatusDeleting TableStatus = "DELETING"
)

// TableDescription is the result of an existence probe
type TableDescription struct {
	Name    string
	Status  TableStatus
	Indexes []string
}

// Key locates an item. Sort is empty for tables without a sort key.
type Key struct {
	Partition string
	Sort      string
}

// ConditionKind selects the check a conditional write performs
type ConditionKind int

const (
	// CondNone writes unconditionally
	CondNone ConditionKind = iota
	// CondNotExists rejects the write if an item with the key exists
	CondNotExists
	// CondExists rejects the write if no item with the key exists
	CondExists
	// CondEquals rejects the write unless the stored attribute equals Value
	CondEquals
)

// Condition guards a write
type Condition struct {
	Kind      ConditionKind
	Attribute string
	Value     any
}

// Always is the empty condition
var Always = Condition{}

// IfNotExists guards a create
func IfNotExists() Condition {
	return Condition{Kind: CondNotExists}
}

// IfExists guards an overwrite of an existing item
func IfExists() Condition {
	return Condition{Kind: CondExists}
}

// IfEquals guards an optimistic update on a version-like attribute
func IfEquals(attribute string, value any) Condition {
	return Condition{Kind: CondEquals, Attribute: attribute, Value: Normalize(value)}
}

// QueryInput selects items from one partition. From and To bound the sort key
// inclusively; empty means unbounded.
type QueryInput struct {
	Partition  string
	From       string
	To         string
	Limit      int
	Descending bool
}

// Store is the partitioned key-value API consumed by provisioning and by the
// repositories.
type Store interface {
	CreateTable(ctx context.Context, table schema.Table) error
	DeleteTable(ctx context.Context, name string) error
	DescribeTable(ctx context.Context, name string) (*TableDescription, error)

	Put(ctx context.Context, table schema.Table, item Item, cond Condition) error
	Get(ctx context.Context, table schema.Table, key Key) (Item, error)
	Query(ctx context.Context, table schema.Table, in QueryInput) ([]Item, error)
	GetByIndex(ctx context.Context, table schema.Table, index string, value any) (Item, error)
	Delete(ctx context.Context, table schema.Table, key Key) error

	Close() error
}

// KeyOf extracts the primary key of an item according to the table layout
func KeyOf(table schema.Table, item Item) Key {
	key := Key{Partition: item.String(table.PartitionKey.Name)}
	if table.SortKey != nil {
		key.Sort = item.String(table.SortKey.Name)
	}
	return key
}

// Matches evaluates a condition against the currently stored item, which is
// nil when absent. Backends without native conditions use it directly.
func Matches(cond Condition, current Item) bool {
	switch cond.Kind {
	case CondNotExists:
		return current == nil
	case CondExists:
		return current != nil
	case CondEquals:
		if current == nil {
			return false
		}
		v, ok := current[cond.Attribute]
		return ok && Equal(v, cond.Value)
	default:
		return true
	}
}
