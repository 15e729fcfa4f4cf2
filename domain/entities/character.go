package entities

import "time"

// Character survives schema reprovisioning. ID is unique across all
// characters ever created.
type Character struct {
	ID          int64
	GuildID     string
	CharacterID string
	OwnerID     string
	Name        string
	Fields      map[string]string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
