package events

import "time"

// EventType identifies a domain event
type EventType string

const (
	EventTypeTransactionRecorded EventType = "transaction_recorded"
	EventTypeCurrencyCreated     EventType = "currency_created"
	EventTypeCharacterSaved      EventType = "character_saved"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TransactionRecordedEvent is published once a ledger entry has been appended
type TransactionRecordedEvent struct {
	TransactionID int64     `json:"transaction_id"`
	GuildID       string    `json:"guild_id"`
	UserID        string    `json:"user_id,omitempty"`
	Amount        int64     `json:"amount"`
	BalanceAfter  int64     `json:"balance_after"`
	Actor         string    `json:"actor"`
	Reason        string    `json:"reason,omitempty"`
	OperationID   string    `json:"operation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e TransactionRecordedEvent) Type() EventType {
	return EventTypeTransactionRecorded
}

// CurrencyCreatedEvent is published when a currency becomes visible by id
type CurrencyCreatedEvent struct {
	CurrencyID int64  `json:"currency_id"`
	GuildID    string `json:"guild_id"`
	Name       string `json:"name"`
	CreatedBy  string `json:"created_by"`
}

func (e CurrencyCreatedEvent) Type() EventType {
	return EventTypeCurrencyCreated
}

// CharacterSavedEvent is published after a character create or update
type CharacterSavedEvent struct {
	CharacterID int64  `json:"character_id"`
	GuildID     string `json:"guild_id"`
	Key         string `json:"key"`
	OwnerID     string `json:"owner_id"`
	Created     bool   `json:"created"`
}

func (e CharacterSavedEvent) Type() EventType {
	return EventTypeCharacterSaved
}
