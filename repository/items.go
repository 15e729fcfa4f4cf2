package repository

import (
	"errors"
	"time"

	"dndbot/domain"
	"dndbot/store"
)

// Common attribute names
const (
	attrCreatedAt = "createdAt"
	attrUpdatedAt = "updatedAt"
	attrVersion   = "version"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// versionCondition guards a versioned write: absent for a new record,
// otherwise the stored version must be the one read
func versionCondition(expectedVersion int64) store.Condition {
	if expectedVersion == 0 {
		return store.IfNotExists()
	}
	return store.IfEquals(attrVersion, expectedVersion)
}

// conflictErr maps a rejected conditional write to domain.ErrVersionConflict
func conflictErr(err error) error {
	if errors.Is(err, store.ErrConditionFailed) {
		return domain.ErrVersionConflict
	}
	return err
}

func stringMapItem(m map[string]string) store.Item {
	out := make(store.Item, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
