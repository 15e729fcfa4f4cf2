package entities

import "time"

// GuildSettings is the single configuration record of a guild
type GuildSettings struct {
	GuildID   string
	Settings  map[string]string
	UpdatedAt time.Time
}

// Value returns a setting and whether it is present
func (gs *GuildSettings) Value(key string) (string, bool) {
	v, ok := gs.Settings[key]
	return v, ok
}

// With returns a copy with key set to value
func (gs *GuildSettings) With(key, value string) *GuildSettings {
	settings := make(map[string]string, len(gs.Settings)+1)
	for k, v := range gs.Settings {
		settings[k] = v
	}
	settings[key] = value
	return &GuildSettings{GuildID: gs.GuildID, Settings: settings, UpdatedAt: gs.UpdatedAt}
}
