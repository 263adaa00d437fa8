package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
	"github.com/menusam/partner-billing/pkg/outbox/registry"
)

type periodEnsurer interface {
	EnsurePeriod(ctx context.Context, establishmentID uuid.UUID, date time.Time) (uuid.UUID, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// TransactionConsumer opens the billing period a booked transaction belongs to. It is the only
// production path that creates open periods; the closer and rollover jobs work from there.
type TransactionConsumer struct {
	periods      periodEnsurer
	subscription receiver
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewTransactionConsumer builds the consumer for the transaction service subscription.
func NewTransactionConsumer(periods periodEnsurer, subscription receiver, logg *logger.Logger) (*TransactionConsumer, error) {
	if periods == nil {
		return nil, fmt.Errorf("period ensurer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("transaction subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventTransactionRecorded, 1, decodeTransactionRecorded)
	return &TransactionConsumer{
		periods:      periods,
		subscription: subscription,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

func decodeTransactionRecorded(raw json.RawMessage) (any, error) {
	var event payloads.TransactionRecordedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, err
	}
	if event.EstablishmentID == uuid.Nil {
		return nil, fmt.Errorf("establishment_id missing")
	}
	if event.OccurredAt.IsZero() {
		return nil, fmt.Errorf("occurred_at missing")
	}
	return &event, nil
}

// Run receives until the context is canceled.
func (c *TransactionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message is done with. Malformed messages are acked and logged since
// no redelivery can fix them; only storage failures ask for another attempt.
func (c *TransactionConsumer) handle(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})
	if !c.decoders.Handles(eventType) {
		c.logg.Debug(logCtx, "ignoring transaction event")
		return true
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable transaction event", err)
		return true
	}
	event := decoded.(*payloads.TransactionRecordedEvent)

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"transaction_id":   event.TransactionID.String(),
		"establishment_id": event.EstablishmentID.String(),
	})
	periodID, err := c.periods.EnsurePeriod(ctx, event.EstablishmentID, event.OccurredAt)
	if err != nil {
		c.logg.Error(logCtx, "ensure billing period failed", err)
		return false
	}
	c.logg.Debug(c.logg.WithField(logCtx, "period_id", periodID.String()), "billing period ensured")
	return true
}
