// Package postgres implements store.Store on PostgreSQL. Every logical table
// is a row of kv_tables and its items live in kv_items as JSONB documents.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dndbot/database"
	"dndbot/schema"
	"dndbot/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Store persists tables and items through a pgx pool
type Store struct {
	db *database.DB
}

// New wraps an open database connection. Migrations must have been applied.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// CreateTable registers a table in the catalog
func (s *Store) CreateTable(ctx context.Context, def schema.Table) error {
	indexes := make([]string, 0, len(def.Indexes))
	for _, idx := range def.Indexes {
		indexes = append(indexes, idx.Name)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO kv_tables (name, status, indexes) VALUES ($1, $2, $3)`,
		def.Name, string(store.TableStatusActive), indexes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("table %s: %w", def.Name, store.ErrTableExists)
		}
		return fmt.Errorf("failed to create table %s: %w", def.Name, err)
	}
	return nil
}

// DeleteTable drops a table and its items in one transaction
func (s *Store) DeleteTable(ctx context.Context, name string) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_items WHERE table_name = $1`, name); err != nil {
			return fmt.Errorf("failed to delete items of %s: %w", name, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM kv_tables WHERE name = $1`, name)
		if err != nil {
			return fmt.Errorf("failed to delete table %s: %w", name, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
		}
		return nil
	})
}

// DescribeTable probes a table
func (s *Store) DescribeTable(ctx context.Context, name string) (*store.TableDescription, error) {
	desc := &store.TableDescription{Name: name}
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT status, indexes FROM kv_tables WHERE name = $1`, name).
		Scan(&status, &desc.Indexes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
	}
	desc.Status = store.TableStatus(status)
	return desc, nil
}

func (s *Store) ensureTable(ctx context.Context, name string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kv_tables WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("table %s: %w", name, store.ErrTableNotFound)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(store.Normalize(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode item: %w", err)
	}
	return data, nil
}

func decode(data []byte) (store.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return store.NormalizeItem(store.Item(raw)), nil
}

// Put writes an item if the condition holds. Conditions are evaluated by the
// statement itself so concurrent writers cannot interleave.
func (s *Store) Put(ctx context.Context, def schema.Table, item store.Item, cond store.Condition) error {
	if err := s.ensureTable(ctx, def.Name); err != nil {
		return err
	}
	data, err := encode(item)
	if err != nil {
		return err
	}
	key := store.KeyOf(def, item)

	var tag pgconn.CommandTag
	switch cond.Kind {
	case store.CondNotExists:
		tag, err = s.db.Exec(ctx, `
			INSERT INTO kv_items (table_name, pk, sk, item) VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_name, pk, sk) DO NOTHING`,
			def.Name, key.Partition, key.Sort, data)
	case store.CondExists:
		tag, err = s.db.Exec(ctx, `
			UPDATE kv_items SET item = $4, updated_at = NOW()
			WHERE table_name = $1 AND pk = $2 AND sk = $3`,
			def.Name, key.Partition, key.Sort, data)
	case store.CondEquals:
		var want []byte
		want, err = encode(cond.Value)
		if err != nil {
			return err
		}
		tag, err = s.db.Exec(ctx, `
			UPDATE kv_items SET item = $4, updated_at = NOW()
			WHERE table_name = $1 AND pk = $2 AND sk = $3 AND item -> $5 = $6::jsonb`,
			def.Name, key.Partition, key.Sort, data, cond.Attribute, want)
	default:
		_, err = s.db.Exec(ctx, `
			INSERT INTO kv_items (table_name, pk, sk, item) VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_name, pk, sk) DO UPDATE SET item = EXCLUDED.item, updated_at = NOW()`,
			def.Name, key.Partition, key.Sort, data)
		if err != nil {
			return fmt.Errorf("failed to put item in %s: %w", def.Name, err)
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to put item in %s: %w", def.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConditionFailed
	}
	return nil
}

// Get reads one item by primary key
func (s *Store) Get(ctx context.Context, def schema.Table, key store.Key) (store.Item, error) {
	if err := s.ensureTable(ctx, def.Name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT item FROM kv_items WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		def.Name, key.Partition, key.Sort).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item from %s: %w", def.Name, err)
	}
	return decode(data)
}

// Query returns the items of one partition ordered by sort key
func (s *Store) Query(ctx context.Context, def schema.Table, in store.QueryInput) ([]store.Item, error) {
	if err := s.ensureTable(ctx, def.Name); err != nil {
		return nil, err
	}

	order := "ASC"
	if in.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT item FROM kv_items
		WHERE table_name = $1 AND pk = $2
		  AND ($3 = '' OR sk >= $3)
		  AND ($4 = '' OR sk <= $4)
		ORDER BY sk %s
		LIMIT NULLIF($5, 0)`, order)

	rows, err := s.db.Query(ctx, query, def.Name, in.Partition, in.From, in.To, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", def.Name, err)
	}
	defer rows.Close()

	var items []store.Item
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item, err := decode(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// GetByIndex looks an item up through the id expression index
func (s *Store) GetByIndex(ctx context.Context, def schema.Table, index string, value any) (store.Item, error) {
	var attr string
	for _, idx := range def.Indexes {
		if idx.Name == index {
			attr = idx.PartitionKey.Name
		}
	}
	if attr == "" {
		return nil, fmt.Errorf("table %s has no index %s", def.Name, index)
	}
	if err := s.ensureTable(ctx, def.Name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT item FROM kv_items WHERE table_name = $1 AND item ->> $2 = $3 LIMIT 1`,
		def.Name, attr, store.IndexValue(value)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s of %s: %w", index, def.Name, err)
	}
	return decode(data)
}

// Delete removes an item
func (s *Store) Delete(ctx context.Context, def schema.Table, key store.Key) error {
	if err := s.ensureTable(ctx, def.Name); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`DELETE FROM kv_items WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		def.Name, key.Partition, key.Sort)
	if err != nil {
		return fmt.Errorf("failed to delete item from %s: %w", def.Name, err)
	}
	return nil
}

// Close closes the pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
