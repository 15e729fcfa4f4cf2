package infrastructure

import (
	"fmt"

	"dndbot/domain/events"
)

// EventStream is the JetStream stream that carries every domain event
const EventStream = "economy_events"

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeTransactionRecorded:
		return "economy.ledger.recorded"
	case events.EventTypeCurrencyCreated:
		return "economy.currency.created"
	case events.EventTypeCharacterSaved:
		return "characters.saved"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"economy.ledger.recorded",
		"economy.currency.created",
		"characters.saved",
	}
}
