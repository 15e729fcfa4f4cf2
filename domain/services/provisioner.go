package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dndbot/domain"
	"dndbot/domain/interfaces"
	"dndbot/schema"
	"dndbot/store"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

var errNotSettled = errors.New("table not settled")

// provisioner implements the Provisioner interface
type provisioner struct {
	store         store.Store
	catalog       *schema.Catalog
	settleTimeout time.Duration
	pollInterval  time.Duration
	onRecreate    []func(schema.Table)
}

// ProvisionerOption configures the provisioner
type ProvisionerOption func(*provisioner)

// WithSettleTimeout bounds each wait for a table to finish deleting or creating
func WithSettleTimeout(d time.Duration) ProvisionerOption {
	return func(p *provisioner) { p.settleTimeout = d }
}

// WithPollInterval sets the first delay between table status probes
func WithPollInterval(d time.Duration) ProvisionerOption {
	return func(p *provisioner) { p.pollInterval = d }
}

// WithRecreateHook registers fn to run after an unprotected table is recreated
func WithRecreateHook(fn func(schema.Table)) ProvisionerOption {
	return func(p *provisioner) { p.onRecreate = append(p.onRecreate, fn) }
}

// NewProvisioner creates a new schema provisioner
func NewProvisioner(s store.Store, catalog *schema.Catalog, opts ...ProvisionerOption) interfaces.Provisioner {
	p := &provisioner{
		store:         s,
		catalog:       catalog,
		settleTimeout: 2 * time.Minute,
		pollInterval:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision walks the tables in their fixed order. Unprotected tables are
// dropped and recreated empty; the protected table is only ever created.
// Tables are handled one at a time so a create never races a delete.
func (p *provisioner) Provision(ctx context.Context) error {
	for _, table := range p.catalog.Tables() {
		var err error
		if table.Protected {
			err = p.ensure(ctx, table)
		} else {
			err = p.recreate(ctx, table)
		}
		if err != nil {
			return err
		}
	}

	log.WithField("tables", len(schema.All())).Info("Schema provisioned")
	return nil
}

// ensure creates a protected table, keeping it and its data if present
func (p *provisioner) ensure(ctx context.Context, table schema.Table) error {
	logger := log.WithField("table", table.Name)

	err := p.store.CreateTable(ctx, table)
	if errors.Is(err, store.ErrTableExists) {
		logger.Info("Protected table already exists, keeping its data")
		return p.waitActive(ctx, table)
	}
	if err != nil {
		return &domain.ProvisioningError{Table: table.Name, Op: "create", Err: err}
	}

	logger.Info("Created protected table")
	return p.waitActive(ctx, table)
}

// recreate drops a table if present and creates it again empty
func (p *provisioner) recreate(ctx context.Context, table schema.Table) error {
	logger := log.WithField("table", table.Name)

	_, err := p.store.DescribeTable(ctx, table.Name)
	switch {
	case err == nil:
		err = p.store.DeleteTable(ctx, table.Name)
		if err != nil && !errors.Is(err, store.ErrTableNotFound) {
			return &domain.ProvisioningError{Table: table.Name, Op: "delete", Err: err}
		}
		logger.Info("Deleted table")
		if err := p.waitGone(ctx, table); err != nil {
			return err
		}
	case errors.Is(err, store.ErrTableNotFound):
	default:
		return &domain.ProvisioningError{Table: table.Name, Op: "describe", Err: err}
	}

	err = p.store.CreateTable(ctx, table)
	switch {
	case err == nil:
		logger.Info("Created table")
	case errors.Is(err, store.ErrTableExists):
		logger.Warn("Table was created concurrently, continuing")
	default:
		return &domain.ProvisioningError{Table: table.Name, Op: "create", Err: err}
	}

	if err := p.waitActive(ctx, table); err != nil {
		return err
	}
	for _, fn := range p.onRecreate {
		fn(table)
	}
	return nil
}

// settle polls DescribeTable until done reports true, bounded by the settle
// timeout and cancelled with ctx
func (p *provisioner) settle(ctx context.Context, table schema.Table, op string, done func(*store.TableDescription, error) (bool, error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.pollInterval
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = p.settleTimeout

	err := backoff.Retry(func() error {
		ok, err := done(p.store.DescribeTable(ctx, table.Name))
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotSettled
		}
		return nil
	}, backoff.WithContext(b, ctx))

	if err == nil {
		return nil
	}
	if errors.Is(err, errNotSettled) {
		err = fmt.Errorf("not settled after %s: %w", p.settleTimeout, err)
	}
	return &domain.ProvisioningError{Table: table.Name, Op: op, Err: err}
}

func (p *provisioner) waitGone(ctx context.Context, table schema.Table) error {
	return p.settle(ctx, table, "await deletion", func(_ *store.TableDescription, err error) (bool, error) {
		if errors.Is(err, store.ErrTableNotFound) {
			return true, nil
		}
		return false, err
	})
}

func (p *provisioner) waitActive(ctx context.Context, table schema.Table) error {
	return p.settle(ctx, table, "await creation", func(desc *store.TableDescription, err error) (bool, error) {
		if errors.Is(err, store.ErrTableNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return desc.Status == store.TableStatusActive, nil
	})
}

// Verify reports tables that are missing, not active or lacking a declared index
func (p *provisioner) Verify(ctx context.Context) ([]string, error) {
	var problems []string
	for _, table := range p.catalog.Tables() {
		desc, err := p.store.DescribeTable(ctx, table.Name)
		if errors.Is(err, store.ErrTableNotFound) {
			problems = append(problems, table.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", table.Name, err)
		}
		if desc.Status != store.TableStatusActive || !hasIndexes(desc, table) {
			problems = append(problems, table.Name)
		}
	}
	return problems, nil
}

func hasIndexes(desc *store.TableDescription, table schema.Table) bool {
	for _, idx := range table.Indexes {
		found := false
		for _, name := range desc.Indexes {
			if name == idx.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
