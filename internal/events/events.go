// Package events carries domain events out of the services: to websocket
// clients of the same tenant and, when configured, to a RabbitMQ topic
// exchange for other systems.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type Event struct {
	Type       string      `json:"type"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func New(eventType string, tenantID uuid.UUID, payload interface{}) Event {
	return Event{
		Type:       eventType,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers an event. Implementations must not block on slow
// consumers for longer than ctx allows.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and combines their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, ev))
	}
	return err
}
