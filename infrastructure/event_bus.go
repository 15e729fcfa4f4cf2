package infrastructure

import (
	"context"
	"sync"

	"dndbot/domain/events"
	"dndbot/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Handler reacts to a published event inside the process
type Handler func(ctx context.Context, event events.Event)

// EventBus dispatches events to in-process handlers and forwards them to a
// downstream publisher. Handlers run asynchronously and never block the
// publishing service.
type EventBus struct {
	mu         sync.RWMutex
	handlers   map[events.EventType][]Handler
	downstream interfaces.EventPublisher
	wg         sync.WaitGroup
}

// NewEventBus creates a bus forwarding to downstream
func NewEventBus(downstream interfaces.EventPublisher) *EventBus {
	return &EventBus{
		handlers:   make(map[events.EventType][]Handler),
		downstream: downstream,
	}
}

// Subscribe adds a handler for a specific event type
func (b *EventBus) Subscribe(eventType events.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"event_type":    eventType,
		"handler_count": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event bus")
}

// Publish runs the local handlers and forwards the event. Only the
// downstream error is returned.
func (b *EventBus) Publish(event events.Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler, index int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"event_type":    event.Type(),
						"handler_index": index,
						"panic":         r,
					}).Error("Event handler panicked")
				}
			}()
			h(context.Background(), event)
		}(handler, i)
	}

	return b.downstream.Publish(event)
}

// Wait blocks until every dispatched handler has returned
func (b *EventBus) Wait() {
	b.wg.Wait()
}

// AuditLogHandler writes every ledger entry to the structured log
func AuditLogHandler(_ context.Context, event events.Event) {
	e, ok := event.(events.TransactionRecordedEvent)
	if !ok {
		return
	}
	log.WithFields(log.Fields{
		"transaction_id": e.TransactionID,
		"guild_id":       e.GuildID,
		"user_id":        e.UserID,
		"amount":         e.Amount,
		"balance_after":  e.BalanceAfter,
		"actor":          e.Actor,
		"reason":         e.Reason,
	}).Info("Ledger entry recorded")
}
