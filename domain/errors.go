// Package domain holds the error taxonomy shared by services, repositories and
// the command layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is matched by every DuplicateNameError
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInsufficientFunds is returned when a change would drive a balance negative
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflictExceeded is returned when optimistic retries are exhausted
	ErrConflictExceeded = errors.New("too many concurrent updates")
	// ErrVersionConflict is returned by repositories when a conditional write lost a race
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidInput is returned for arguments that fail validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrLedgerPending is returned when a balance change was applied but its
	// ledger entry could not be written yet
	ErrLedgerPending = errors.New("ledger entry pending")
	// ErrLedgerKeyTaken is returned when a ledger entry's key already holds an
	// entry written by a different operation. Retrying cannot resolve it.
	ErrLedgerKeyTaken = errors.New("ledger entry key taken by another operation")
)

// ConfigurationError lists every required setting that is absent
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// ProvisioningError is a create or delete failure other than the tolerated
// already-exists and not-found outcomes
type ProvisioningError struct {
	Table string
	Op    string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning table %s: %s failed: %v", e.Table, e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// DuplicateNameError reports a currency name collision within a guild
type DuplicateNameError struct {
	GuildID string
	Name    string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("currency %q already exists in guild %s", e.Name, e.GuildID)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// InsufficientFundsError carries the balance a rejected change was applied to
type InsufficientFundsError struct {
	Balance int64
	Delta   int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d cannot absorb %d", e.Balance, e.Delta)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// NotFoundError reports a lookup against an absent record
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound builds a NotFoundError with a formatted key
func NewNotFound(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}
