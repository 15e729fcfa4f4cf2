package entities

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is RFC 3339 with a fixed nine-digit fraction so that
// lexicographic order equals chronological order
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Transaction is an immutable ledger entry. Entries of a guild are ordered by
// (Timestamp, ID).
type Transaction struct {
	ID           int64
	GuildID      string
	UserID       string
	Timestamp    time.Time
	Amount       int64
	BalanceAfter int64
	Actor        string
	Reason       string
	OperationID  string
}

// FormatTimestamp renders t in the fixed-width sortable layout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// TransactionSortKey builds the sort key for an entry
func TransactionSortKey(ts time.Time, id int64) string {
	return fmt.Sprintf("%s#%020d", FormatTimestamp(ts), id)
}

// ParseTransactionSortKey splits a sort key back into timestamp and id
func ParseTransactionSortKey(key string) (time.Time, int64, error) {
	tsPart, idPart, ok := strings.Cut(key, "#")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("malformed transaction key %q", key)
	}
	ts, err := time.Parse(timestampLayout, tsPart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed transaction timestamp %q: %w", tsPart, err)
	}
	var id int64
	if _, err := fmt.Sscanf(idPart, "%d", &id); err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed transaction id %q: %w", idPart, err)
	}
	return ts, id, nil
}

// SortKey returns the entry's sort key
func (t *Transaction) SortKey() string {
	return TransactionSortKey(t.Timestamp, t.ID)
}

// Before reports whether t orders before other
func (t *Transaction) Before(other *Transaction) bool {
	if !t.Timestamp.Equal(other.Timestamp) {
		return t.Timestamp.Before(other.Timestamp)
	}
	return t.ID < other.ID
}
