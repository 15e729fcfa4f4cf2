package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dndbot/domain"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds a retried operation
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used for optimistic writes
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 25 * time.Millisecond, MaxInterval: time.Second}
}

// DefaultIndexPolicy is used while waiting for a new record to show up in its id index
func DefaultIndexPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

var errNotVisible = errors.New("record not visible in index yet")

// awaitIndexed polls lookup until the record with id is visible through the
// id index. Exhausting the policy returns domain.ErrConflictExceeded.
func awaitIndexed(ctx context.Context, policy RetryPolicy, entity string, id int64, lookup func(context.Context, int64) (bool, error)) error {
	err := backoff.Retry(func() error {
		found, err := lookup(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !found {
			return errNotVisible
		}
		return nil
	}, policy.backOff(ctx))

	if errors.Is(err, errNotVisible) {
		return fmt.Errorf("%s %d not visible by id: %w", entity, id, domain.ErrConflictExceeded)
	}
	return err
}

// options shared by the services
type options struct {
	retry       RetryPolicy
	index       RetryPolicy
	indexWindow time.Duration
	now         func() time.Time
}

// Option configures a service
type Option func(*options)

// WithRetryPolicy sets the policy for optimistic writes
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithIndexPolicy sets the policy for index visibility polling
func WithIndexPolicy(p RetryPolicy) Option {
	return func(o *options) { o.index = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		retry:       DefaultRetryPolicy(),
		index:       DefaultIndexPolicy(),
		indexWindow: 30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// recent reports whether t lies within the window in which a new record may
// not be visible through its index yet
func (o options) recent(t time.Time) bool {
	return o.now().Sub(t) < o.indexWindow
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
