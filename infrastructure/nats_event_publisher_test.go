package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dndbot/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestEventSubjectMapper(t *testing.T) {
	t.Parallel()
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event events.Event
		want  string
	}{
		{events.TransactionRecordedEvent{}, "economy.ledger.recorded"},
		{events.CurrencyCreatedEvent{}, "economy.currency.created"},
		{events.CharacterSavedEvent{}, "characters.saved"},
	}
	for _, tt := range tests {
		got := mapper.MapEventToSubject(tt.event)
		assert.Equal(t, tt.want, got)
		assert.Contains(t, mapper.GetAllSubjects(), got)
	}
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	t.Parallel()
	bus := new(mockMessagePublisher)
	publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper())

	event := events.TransactionRecordedEvent{
		TransactionID: 12,
		GuildID:       "G1",
		UserID:        "U1",
		Amount:        -5,
		BalanceAfter:  95,
		Actor:         "admin",
		OperationID:   "op",
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var sent []byte
	bus.On("Publish", mock.Anything, "economy.ledger.recorded", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil)

	require.NoError(t, publisher.Publish(event))
	bus.AssertExpectations(t)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(sent, &envelope))
	assert.Equal(t, "transaction_recorded", envelope.EventType)
	assert.Equal(t, "dndbot", envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	var payload events.TransactionRecordedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	t.Parallel()
	bus := new(mockMessagePublisher)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders"))

	err := NewNATSEventPublisher(bus, NewEventSubjectMapper()).Publish(events.CurrencyCreatedEvent{CurrencyID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event to NATS")
}

func TestNoopEventPublisher(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewNoopEventPublisher().Publish(events.CharacterSavedEvent{}))
}
