package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medhq/hospital-api/internal/email"
	"github.com/medhq/hospital-api/internal/service/event"
	"github.com/medhq/hospital-api/pkg/messaging"
)

// Notifier consumes domain events from the broker and turns them into
// outbound mail. It is a pure consumer: it never writes back to the stores,
// and a mail failure only costs the one notification.
type Notifier struct {
	broker messaging.Broker
	mailer email.Service
	logger *zerolog.Logger
}

func NewNotifier(broker messaging.Broker, mailer email.Service, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		broker: broker,
		mailer: mailer,
		logger: logger,
	}
}

// Run subscribes to the event channel and dispatches until ctx is cancelled
// or the subscription closes.
func (n *Notifier) Run(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, event.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.Channel, err)
	}

	n.logger.Info().Str("channel", event.Channel).Msg("notifier started")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("notifier shutting down")
			return nil
		case raw, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", event.Channel)
			}
			n.dispatch(ctx, raw)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, raw []byte) {
	var env event.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		n.logger.Warn().Err(err).Msg("discarding malformed event")
		return
	}

	switch env.Type {
	case event.TypeAppointmentCreated:
		n.appointmentConfirmation(ctx, env)
	case event.TypeBillingPaid:
		n.paymentReceipt(ctx, env)
	default:
		// Other event types carry no notification.
	}
}

func (n *Notifier) appointmentConfirmation(ctx context.Context, env event.Envelope) {
	to := stringField(env.Payload, "contact_email")
	if to == "" {
		n.logger.Debug().Str("event_type", env.Type).Msg("no contact address, skipping notification")
		return
	}

	start := stringField(env.Payload, "start_time")
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		start = t.Format("Mon, 02 Jan 2006 15:04 MST")
	}

	if err := n.mailer.SendAppointmentConfirmation(ctx, to, start); err != nil {
		n.logger.Error().Err(err).Str("event_type", env.Type).Msg("failed to send confirmation")
	}
}

func (n *Notifier) paymentReceipt(ctx context.Context, env event.Envelope) {
	to := stringField(env.Payload, "contact_email")
	if to == "" {
		n.logger.Debug().Str("event_type", env.Type).Msg("no contact address, skipping notification")
		return
	}

	number := stringField(env.Payload, "bill_number")
	total, _ := env.Payload["total"].(float64)

	if err := n.mailer.SendPaymentReceipt(ctx, to, number, total); err != nil {
		n.logger.Error().Err(err).Str("event_type", env.Type).Msg("failed to send receipt")
	}
}

func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}
