package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dndbot/domain"
	"dndbot/schema"
	"dndbot/store"

	"github.com/cenkalti/backoff/v4"
)

const (
	sequenceValueAttr   = "value"
	sequenceMaxAttempts = 25
)

// sequence hands out monotonic ids for one numbered table. Every counter lives
// in the protected characters table under the reserved sequence partition,
// keyed by the numbered table's name, so counters outlive reprovisioning of
// the tables they number. Allocation is a read followed by a put conditioned
// on the value read, retried on contention.
type sequence struct {
	store    store.Store
	counters schema.Table
	name     string
}

func newSequence(s store.Store, catalog *schema.Catalog, numbered schema.TableID) *sequence {
	return &sequence{store: s, counters: catalog.Table(schema.Characters), name: catalog.Name(numbered)}
}

func (q *sequence) key() store.Key {
	return store.Key{Partition: schema.SequencePartition, Sort: q.name}
}

func sequenceBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, sequenceMaxAttempts), ctx)
}

// Next allocates the next id. Ids start at 1 and are never reused.
func (q *sequence) Next(ctx context.Context) (int64, error) {
	key := q.key()

	op := func() (int64, error) {
		current := int64(0)
		cond := store.IfNotExists()

		item, err := q.store.Get(ctx, q.counters, key)
		switch {
		case err == nil:
			current = item.Int(sequenceValueAttr)
			cond = store.IfEquals(sequenceValueAttr, current)
		case errors.Is(err, store.ErrItemNotFound):
		default:
			return 0, backoff.Permanent(err)
		}

		next := current + 1
		counter := store.Item{
			q.counters.PartitionKey.Name: key.Partition,
			q.counters.SortKey.Name:      key.Sort,
			sequenceValueAttr:            next,
		}
		err = q.store.Put(ctx, q.counters, counter, cond)
		if errors.Is(err, store.ErrConditionFailed) {
			return 0, err
		}
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		return next, nil
	}

	id, err := backoff.RetryWithData(op, sequenceBackOff(ctx))
	if errors.Is(err, store.ErrConditionFailed) {
		return 0, fmt.Errorf("failed to allocate id for %s after %d attempts: %w", q.name, sequenceMaxAttempts, domain.ErrConflictExceeded)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", q.name, err)
	}
	return id, nil
}
