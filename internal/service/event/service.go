package event

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medhq/hospital-api/pkg/messaging"
)

// Event types emitted by the scheduling and billing cores.
const (
	TypeAppointmentCreated     = "appointment.created"
	TypeAppointmentStatus      = "appointment.status-changed"
	TypeAppointmentRescheduled = "appointment.rescheduled"
	TypeAppointmentDeleted     = "appointment.deleted"
	TypeBillingCreated         = "billing.created"
	TypeBillingPaid            = "billing.paid"
)

// Channel is the broker channel all domain events are published on.
const Channel = "hospital.events"

// Envelope is the wire shape published to the broker.
type Envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// Emitter publishes domain events. Delivery is fire-and-forget: broker
// failures are logged and never returned, so a notification outage cannot
// fail a booking or a payment.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload map[string]interface{})
}

type emitter struct {
	broker messaging.Broker
	logger *zerolog.Logger
}

func NewEmitter(broker messaging.Broker, logger *zerolog.Logger) Emitter {
	return &emitter{broker: broker, logger: logger}
}

func (e *emitter) Emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	if e.broker == nil {
		return
	}

	env := Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	if err := e.broker.Publish(ctx, Channel, env); err != nil {
		e.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish domain event")
	}
}

// NopEmitter discards all events. Used by tests.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, eventType string, payload map[string]interface{}) {}
